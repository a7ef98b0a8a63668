package pbsmk

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// SubmitRequest carries everything a Backend needs to submit one target:
// its materialised task file, its fully-interpolated attribute set, the
// destination queue (may be empty), and any threaded dependency id from
// the post-schedule sweep.
type SubmitRequest struct {
	Name     string
	TaskFile string
	Attrs    map[string]string
	Queue    string
	LastID   string
}

// Backend is the narrow submission interface §9 calls for: "submit(name,
// task_file_path, attrs, queue, lastid) → id", hiding the scheduler
// client's wire details behind three concrete implementations.
type Backend interface {
	Submit(req SubmitRequest) (id string, err error)
}

// BatchBackend shells out to a qsub-style batch scheduler client binary.
// No PBS/Torque client library exists anywhere in the reference corpus, so
// the wire submission is modelled as an external CLI invocation — the same
// "process-wide library with a connection handle" the design notes
// describe, just reached via os/exec rather than cgo bindings.
type BatchBackend struct {
	// QsubPath is the submission binary, defaulting to "qsub" on PATH.
	QsubPath string
}

// NewBatchBackend returns a BatchBackend using qsubPath, or "qsub" if empty.
func NewBatchBackend(qsubPath string) *BatchBackend {
	if qsubPath == "" {
		qsubPath = "qsub"
	}
	return &BatchBackend{QsubPath: qsubPath}
}

func (b *BatchBackend) Submit(req SubmitRequest) (string, error) {
	args := attrsToArgs(req.Attrs, req.Queue)
	args = append(args, req.TaskFile)

	cmd := exec.Command(b.QsubPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &BackendSubmitError{Target: req.Name, Attrs: req.Attrs, Err: fmt.Errorf("%s: %w", strings.TrimSpace(stderr.String()), err)}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// attrsToArgs renders the logical attribute map as qsub-style flags, in a
// stable order so batch submissions are reproducible.
func attrsToArgs(attrs map[string]string, queue string) []string {
	var args []string
	if v, ok := attrs["N"]; ok {
		args = append(args, "-N", v)
	}
	if v, ok := attrs["v"]; ok {
		args = append(args, "-v", v)
	}
	if v, ok := attrs["depend"]; ok {
		args = append(args, "-W", "depend="+v)
	}
	if v, ok := attrs["S"]; ok {
		args = append(args, "-S", v)
	}
	if queue != "" {
		args = append(args, "-q", queue)
	}
	var lKeys []string
	for k := range attrs {
		if strings.HasPrefix(k, "l:") {
			lKeys = append(lKeys, k)
		}
	}
	sort.Strings(lKeys)
	for _, k := range lKeys {
		args = append(args, "-l", strings.TrimPrefix(k, "l:")+"="+attrs[k])
	}
	return args
}

// LocalBackend runs the task file under the host shell, inheriting the
// per-target flattened environment, and always returns the id "local".
type LocalBackend struct {
	Stdout, Stderr *os.File
}

// NewLocalBackend returns a LocalBackend writing to stdout/stderr.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{Stdout: os.Stdout, Stderr: os.Stderr}
}

func (b *LocalBackend) Submit(req SubmitRequest) (string, error) {
	cmd := exec.Command("sh", req.TaskFile)
	cmd.Env = envFromAttrs(req.Attrs)
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr
	if err := cmd.Run(); err != nil {
		return "", &BackendSubmitError{Target: req.Name, Attrs: req.Attrs, Err: err}
	}
	return "local", nil
}

// envFromAttrs decodes the var_list attribute ("k=v,k=v,...") back into a
// process environment slice for the local child.
func envFromAttrs(attrs map[string]string) []string {
	v, ok := attrs["v"]
	if !ok || v == "" {
		return os.Environ()
	}
	out := append([]string{}, os.Environ()...)
	for _, pair := range strings.Split(v, ",") {
		if pair != "" {
			out = append(out, pair)
		}
	}
	return out
}

// GraphBackend renders the resolved dependency graph as Graphviz dot text
// instead of submitting anything. Because nothing is actually dispatched,
// it does not implement Backend's ordering contract: it is driven by its
// own Render walk (below), a pre-order DFS from the requested
// targets, rather than the post-order submission Schedule — this is the
// one place this module departs from a single uniform Backend interface,
// justified in DESIGN.md.
type GraphBackend struct {
	aliases map[string]string
	order   []string
	edges   []string
}

// NewGraphBackend returns an empty GraphBackend ready for Render.
func NewGraphBackend() *GraphBackend {
	return &GraphBackend{aliases: make(map[string]string)}
}

func (g *GraphBackend) aliasFor(name string) string {
	if a, ok := g.aliases[name]; ok {
		return a
	}
	a := fmt.Sprintf("t_%d", len(g.order))
	g.aliases[name] = a
	g.order = append(g.order, name)
	return a
}

// Render walks plan depth-first, pre-order, from each requested target,
// assigning a stable alias to every target on first sight and recording
// one edge per (target, component) pair, then returns the digraph text.
func (g *GraphBackend) Render(plan *Plan) string {
	visited := make(map[string]bool)
	var walk func(name string)
	walk = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		t, ok := plan.Target(name)
		if !ok {
			return
		}
		tAlias := g.aliasFor(name)
		for _, c := range t.Components {
			cAlias := g.aliasFor(c)
			g.edges = append(g.edges, fmt.Sprintf("%s -> %s;", tAlias, cAlias))
		}
		for _, c := range t.Components {
			walk(c)
		}
	}
	for _, r := range plan.Requested {
		walk(r)
	}

	var b strings.Builder
	b.WriteString("digraph pbsmakefile {\n")
	for _, e := range g.edges {
		b.WriteString(e)
		b.WriteByte('\n')
	}
	for _, name := range g.order {
		fmt.Fprintf(&b, "%s [label=%q];\n", g.aliases[name], name)
	}
	b.WriteString("}\n")
	return b.String()
}
