package pbsmk

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	pbsmklog "github.com/pbsmk/pbsmk/internal/log"
)

// Driver walks a resolved Schedule and dispatches each target to a single
// chosen Backend, threading submission ids forward as dependency clauses.
// Task-file materialisation and banner-style progress reporting are
// adapted from mk's executeRecipe (exec.go), stripped of its concurrency:
// §5 mandates strictly sequential, single-target-at-a-time submission.
type Driver struct {
	Backend   Backend
	Queue     string
	Log       pbsmklog.Logger
	Out       io.Writer
	SubmitLog *SubmitLog // nil disables audit logging
}

// NewDriver returns a Driver dispatching through backend.
func NewDriver(backend Backend, queue string, log pbsmklog.Logger) *Driver {
	if log == nil {
		log = pbsmklog.NewNoop()
	}
	return &Driver{Backend: backend, Queue: queue, Log: log, Out: os.Stdout}
}

// Run submits every target in schedule order, then performs the
// post-schedule sweep for named-kind variants, per §4.5.
func (d *Driver) Run(plan *Plan, schedule *Schedule) error {
	scheduled := make(map[string]bool, len(schedule.Order))
	for _, t := range schedule.Order {
		if err := d.submitOne(plan, t, ""); err != nil {
			return err
		}
		scheduled[t.CanonicalKey()] = true
	}
	if err := d.postSweep(plan, scheduled); err != nil {
		return err
	}
	if d.SubmitLog != nil {
		if err := d.SubmitLog.Save(); err != nil {
			d.Log.Warn("submission audit log not saved", "error", err)
		}
	}
	return nil
}

// submitOne materialises t's task file, fills in attribute defaults,
// builds the depend clause, interpolates, splits the resource list, and
// dispatches to the backend. Implements §4.5 steps 1-7.
func (d *Driver) submitOne(plan *Plan, t *Target, lastID string) error {
	taskFile, cleanup, err := writeTaskFile(t)
	if err != nil {
		return err
	}
	defer cleanup()

	t.Attrs["N"] = firstNonEmpty(t.Attrs["N"], t.Name)
	if t.Attrs["S"] == "" {
		t.Attrs["S"] = "/bin/sh"
	}
	t.Attrs["v"] = firstNonEmpty(t.Attrs["v"], t.Env.VarListString())

	depend := buildDependClause(plan, t, lastID)
	if depend != "" {
		t.Attrs["depend"] = depend
	}

	interped, err := interpAttrs(t)
	if err != nil {
		return err
	}
	interped = splitResourceList(interped)

	queue := d.Queue
	if q, ok := interped["queue"]; ok {
		queue = q
		delete(interped, "queue")
	}

	id, err := d.Backend.Submit(SubmitRequest{
		Name:     t.Name,
		TaskFile: taskFile,
		Attrs:    interped,
		Queue:    queue,
		LastID:   lastID,
	})
	if err != nil {
		return err
	}
	t.SubmissionID = id
	t.submitted = true
	d.Log.Info("target submitted", "target", t.Name, "kind", t.Kind, "id", id)
	if d.SubmitLog != nil {
		d.SubmitLog.Append(SubmissionRecord{
			Target:       t.Name,
			Kind:         t.Kind,
			SubmissionID: id,
			Depend:       interped["depend"],
			SubmittedAt:  time.Now(),
		})
	}
	fmt.Fprintf(d.Out, "%s(%s) scheduled\n", t.Name, id)
	return nil
}

// buildDependClause implements §4.5 step 3: one "kind:id" entry per
// component plus, if threaded, one for lastID — all under t's own kind.
func buildDependClause(plan *Plan, t *Target, lastID string) string {
	var parts []string
	for _, c := range t.Components {
		if dep, ok := plan.Target(c); ok && dep.SubmissionID != "" {
			parts = append(parts, t.Kind+":"+dep.SubmissionID)
		}
	}
	if lastID != "" {
		parts = append(parts, t.Kind+":"+lastID)
	}
	return strings.Join(parts, ",")
}

func interpAttrs(t *Target) (map[string]string, error) {
	out := make(map[string]string, len(t.Attrs))
	for k, v := range t.Attrs {
		interped, err := t.Env.Interp(v, false)
		if err != nil {
			return nil, err
		}
		out[k] = interped
	}
	return out, nil
}

// splitResourceList implements §4.5 step 5: the "l" attribute's
// comma-separated "res=val" entries become one "l:res" key per entry, the
// original "l" key removed.
func splitResourceList(attrs map[string]string) map[string]string {
	v, ok := attrs["l"]
	if !ok || v == "" {
		return attrs
	}
	delete(attrs, "l")
	for _, entry := range strings.Split(v, ",") {
		res, val, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		attrs["l:"+strings.TrimSpace(res)] = strings.TrimSpace(val)
	}
	return attrs
}

// postSweep implements §4.5's "Post-schedule sweep": targets carrying a
// non-default dependency kind that were not themselves scheduled are
// submitted now, with lastID set to their kind-stripped parent's
// submission id, provided that parent was scheduled. Candidates are drawn
// from the full recipe, not just the requested closure in plan — a
// ::KIND variant is typically never referenced as anyone's component, so
// it never enters the resolved Plan on its own.
func (d *Driver) postSweep(plan *Plan, scheduled map[string]bool) error {
	for _, t := range plan.Recipe.Targets() {
		if t.IsPattern || t.Kind == DefaultKind || scheduled[t.CanonicalKey()] {
			continue
		}
		parent, ok := plan.Target(t.Name)
		if !ok || !scheduled[parent.CanonicalKey()] || parent.SubmissionID == "" {
			continue
		}
		if t.Env == nil {
			deriveEnv(plan.Recipe, t)
		}
		if _, exists := plan.targets[t.CanonicalKey()]; !exists {
			plan.targets[t.CanonicalKey()] = t
		}
		if err := d.submitOne(plan, t, parent.SubmissionID); err != nil {
			return err
		}
	}
	return nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// writeTaskFile materialises t's command list as a unique, readable
// temporary file (§4.5 step 1), returning its path and a cleanup func that
// removes it. Grounded on mk's own script-to-tempfile pattern in exec.go,
// minus the parallel-output buffering that pattern also carries.
//
// Commands are parsed verbatim (§4.2 item 7) but, per §4.5 step 4 and
// Scenario C, interpolated through the target's env here, at submission
// time — the same pass that resolves the deferred pm_target_match token.
func writeTaskFile(t *Target) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "pbsmk-"+sanitizeName(t.Name)+"-*.sh")
	if err != nil {
		return "", nil, fmt.Errorf("creating task file for %q: %w", t.Name, err)
	}
	defer f.Close()

	cmds := make([]string, len(t.Cmds))
	for i, c := range t.Cmds {
		interped, ierr := t.Env.Interp(c, false)
		if ierr != nil {
			os.Remove(f.Name())
			return "", nil, ierr
		}
		cmds[i] = interped
	}
	script := strings.Join(cmds, "\n")
	if _, err := f.WriteString(script); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("writing task file for %q: %w", t.Name, err)
	}
	if err := f.Chmod(0o755); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("chmod task file for %q: %w", t.Name, err)
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

func sanitizeName(name string) string {
	return strings.NewReplacer("/", "_", " ", "_", ":", "_").Replace(name)
}
