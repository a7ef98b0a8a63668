package pbsmk

import (
	"strings"
	"testing"
)

// TestGraphBackendScenarioF matches §8 Scenario F byte-for-byte.
func TestGraphBackendScenarioF(t *testing.T) {
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

	g := NewGraphBackend()
	got := g.Render(plan)

	want := `digraph pbsmakefile {
t_0 -> t_1;
t_1 -> t_2;
t_0 [label="A"];
t_1 [label="B"];
t_2 [label="C"];
}
`
	if got != want {
		t.Fatalf("graph output mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

// TestGraphBackendRepeatable is the §8 byte-identical-graph-output
// round-trip: re-parsing the same recipe and re-rendering with a fresh
// GraphBackend must produce identical output.
func TestGraphBackendRepeatable(t *testing.T) {
	input := "A: B\n\ttrue\nB:\n\ttrue\n"

	render := func() string {
		recipe, err := Parse(strings.NewReader(input), nil)
		if err != nil {
			t.Fatal(err)
		}
		plan, err := Resolve(recipe, []string{"A"})
		if err != nil {
			t.Fatal(err)
		}
		return NewGraphBackend().Render(plan)
	}

	first := render()
	second := render()
	if first != second {
		t.Fatalf("graph output not repeatable:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestLocalBackendRunsTaskFile(t *testing.T) {
	f, cleanup := mustTaskFile(t, "echo hello-from-task\n")
	defer cleanup()

	b := NewLocalBackend()
	devnull, err := openDevNull()
	if err != nil {
		t.Fatal(err)
	}
	defer devnull.Close()
	b.Stdout = devnull
	b.Stderr = devnull

	id, err := b.Submit(SubmitRequest{Name: "t", TaskFile: f, Attrs: map[string]string{}})
	if err != nil {
		t.Fatal(err)
	}
	if id != "local" {
		t.Fatalf("id = %q, want local", id)
	}
}

func TestLocalBackendPropagatesFailure(t *testing.T) {
	f, cleanup := mustTaskFile(t, "exit 1\n")
	defer cleanup()

	b := NewLocalBackend()
	devnull, err := openDevNull()
	if err != nil {
		t.Fatal(err)
	}
	defer devnull.Close()
	b.Stdout = devnull
	b.Stderr = devnull

	_, err = b.Submit(SubmitRequest{Name: "t", TaskFile: f, Attrs: map[string]string{}})
	if err == nil {
		t.Fatal("expected BackendSubmitError, got nil")
	}
	if _, ok := err.(*BackendSubmitError); !ok {
		t.Fatalf("expected *BackendSubmitError, got %T", err)
	}
}
