package pbsmk

import (
	"os"
	"regexp"
	"strings"
)

// Plan is the resolved, per-build view of a Recipe: the concrete target set
// reachable from the requested build targets, with pattern targets already
// materialised and per-target environments already derived. A Plan is
// produced fresh by every Resolve call. Materialised pattern instances are
// new Targets owned by the Plan; concrete targets are the Recipe's own
// *Target values, shared rather than copied, so the Env that Resolve
// derives and the Attrs and SubmissionID that Driver.Run sets are written
// onto the Recipe's targets.
type Plan struct {
	Requested []string
	Recipe    *Recipe
	targets   map[string]*Target
	order     []string
}

// Target looks up a resolved target by canonical key.
func (p *Plan) Target(key string) (*Target, bool) {
	t, ok := p.targets[key]
	return t, ok
}

// Targets returns every resolved target in the order Resolve first reached
// it: breadth-first from the requested targets through their components,
// with materialised pattern instances in the position where they were
// encountered.
func (p *Plan) Targets() []*Target {
	out := make([]*Target, 0, len(p.order))
	for _, k := range p.order {
		out = append(out, p.targets[k])
	}
	return out
}

// Resolve closes the dependency graph reachable from requested against
// recipe: pattern targets are matched and materialised, the component
// closure is computed, and a per-target Env is derived for every surviving
// target. It implements §4.3 verbatim.
func Resolve(recipe *Recipe, requested []string) (*Plan, error) {
	plan := &Plan{
		Requested: requested,
		Recipe:    recipe,
		targets:   make(map[string]*Target),
	}

	resolved := make(map[string]bool)
	worklist := append([]string{}, requested...)

	for len(worklist) > 0 {
		name := worklist[0]
		worklist = worklist[1:]
		if resolved[name] {
			continue
		}

		t, ok := recipe.Target(name)
		if !ok {
			materialised, err := materialisePattern(recipe, name)
			if err != nil {
				return nil, err
			}
			t = materialised
		}

		resolved[name] = true
		if _, exists := plan.targets[t.CanonicalKey()]; !exists {
			plan.order = append(plan.order, t.CanonicalKey())
		}
		plan.targets[t.CanonicalKey()] = t

		for _, c := range t.Components {
			if !resolved[c] {
				worklist = append(worklist, c)
			}
		}
	}

	for _, t := range plan.targets {
		deriveEnv(recipe, t)
	}

	return plan, nil
}

// deriveEnv implements §4.3 step 5 for a single target: a fresh deep copy
// of the recipe's environment, pm_target_name set, PBS_O_WORKDIR defaulted
// to the current directory, and pm_target_match resolved if this target
// came from a pattern. Shared between Resolve's main closure and the
// driver's post-schedule sweep, which derives environments for named-kind
// targets outside the requested closure.
func deriveEnv(recipe *Recipe, t *Target) {
	cwd, _ := os.Getwd()
	env := recipe.Env.DeepCopy()
	env.Set("pm_target_name", t.Name)
	env.SetDefault("PBS_O_WORKDIR", cwd)
	if t.HasMatch {
		env.Set(deferredTargetMatch, t.Match)
	}
	t.Env = env
}

// materialisePattern implements §4.3 step 2: find every pattern target
// whose name matches name when '%' is substituted by `(\S+)$`, pick the
// shortest capture (ties broken by recipe insertion order), and deep-copy
// it into a new concrete Target with pm_target_match recorded and every
// component's '%' substituted.
func materialisePattern(recipe *Recipe, name string) (*Target, error) {
	type candidate struct {
		pattern *Target
		capture string
	}
	var best *candidate

	for _, p := range recipe.PatternTargets() {
		capture, ok := matchPattern(p.Name, name)
		if !ok {
			continue
		}
		if best == nil || len(capture) < len(best.capture) {
			best = &candidate{pattern: p, capture: capture}
		}
	}

	if best == nil {
		return nil, &UnresolvedTargetError{Target: name}
	}

	clone := &Target{
		Name:       name,
		Kind:       best.pattern.Kind,
		Components: substituteAll(best.pattern.Components, best.capture),
		Cmds:       append([]string{}, best.pattern.Cmds...),
		Attrs:      make(map[string]string, len(best.pattern.Attrs)),
		IsPattern:  false,
		HasMatch:   true,
		Match:      best.capture,
	}
	for k, v := range best.pattern.Attrs {
		clone.Attrs[k] = v
	}
	return clone, nil
}

// matchPattern reports whether concrete matches pattern (which contains
// exactly one '%'), substituting '%' with `(\S+)$` per §4.3, and returns
// the captured substring.
func matchPattern(pattern, concrete string) (string, bool) {
	idx := strings.IndexByte(pattern, '%')
	if idx < 0 {
		return "", false
	}
	prefix := regexp.QuoteMeta(pattern[:idx])
	suffix := regexp.QuoteMeta(pattern[idx+1:])
	re := regexp.MustCompile("^" + prefix + `(\S+)` + suffix + "$")
	m := re.FindStringSubmatch(concrete)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// substituteAll replaces the single '%' in every pattern-shaped name of
// names with capture, leaving non-pattern names untouched.
func substituteAll(names []string, capture string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		if isPatternName(n) {
			out[i] = strings.Replace(n, "%", capture, 1)
		} else {
			out[i] = n
		}
	}
	return out
}
