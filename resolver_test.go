package pbsmk

import (
	"strings"
	"testing"
)

func TestResolveConcreteClosure(t *testing.T) {
	input := `
A: B
	echo A
B: C
	echo B
C:
	echo C
`
	recipe, err := Parse(strings.NewReader(input), nil)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := Resolve(recipe, []string{"A"})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"A", "B", "C"} {
		if _, ok := plan.Target(name); !ok {
			t.Errorf("plan missing target %q", name)
		}
	}
}

func TestResolveUnknownTargetFails(t *testing.T) {
	recipe, err := Parse(strings.NewReader("A:\n\ttrue\n"), nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Resolve(recipe, []string{"nonexistent"})
	if err == nil {
		t.Fatal("expected UnresolvedTargetError, got nil")
	}
	if _, ok := err.(*UnresolvedTargetError); !ok {
		t.Fatalf("expected *UnresolvedTargetError, got %T", err)
	}
}

// TestResolvePatternMaterialisation covers Scenario C.
func TestResolvePatternMaterialisation(t *testing.T) {
	recipe, err := Parse(strings.NewReader("compress-%:\n\tgzip ${pm_target_match}\n"), nil)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := Resolve(recipe, []string{"compress-foo"})
	if err != nil {
		t.Fatal(err)
	}
	tgt, ok := plan.Target("compress-foo")
	if !ok {
		t.Fatal("compress-foo not materialised")
	}
	if !tgt.HasMatch || tgt.Match != "foo" {
		t.Fatalf("Match = %q, HasMatch = %v, want foo/true", tgt.Match, tgt.HasMatch)
	}
	interped, err := tgt.Env.Interp(tgt.Cmds[0], false)
	if err != nil {
		t.Fatal(err)
	}
	if interped != "gzip foo" {
		t.Fatalf("interpolated command = %q, want %q", interped, "gzip foo")
	}
}

// TestResolveShortestCaptureTieBreak covers Scenario D.
func TestResolveShortestCaptureTieBreak(t *testing.T) {
	input := `
a-%:
	echo short ${pm_target_match}
a-%-b:
	echo long ${pm_target_match}
`
	recipe, err := Parse(strings.NewReader(input), nil)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := Resolve(recipe, []string{"a-x-b"})
	if err != nil {
		t.Fatal(err)
	}
	tgt, ok := plan.Target("a-x-b")
	if !ok {
		t.Fatal("a-x-b not materialised")
	}
	if tgt.Match != "x" {
		t.Fatalf("Match = %q, want %q (shortest capture, from a-%%-b)", tgt.Match, "x")
	}
}

func TestResolveDerivesEnv(t *testing.T) {
	recipe, err := Parse(strings.NewReader("A:\n\ttrue\n"), nil)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := Resolve(recipe, []string{"A"})
	if err != nil {
		t.Fatal(err)
	}
	tgt, _ := plan.Target("A")
	if v, err := tgt.Env.Get("pm_target_name"); err != nil || v != "A" {
		t.Errorf("pm_target_name = %q, %v", v, err)
	}
	if _, err := tgt.Env.Get("PBS_O_WORKDIR"); err != nil {
		t.Errorf("PBS_O_WORKDIR not set: %v", err)
	}
}
