package pbsmk

// Schedule is the linear submission order produced from a Plan: for every
// edge t -> c, c precedes t. Grounded on mk's own post-order DFS (graph.go)
// and the topological walk in ci-operator's build-graph sort, adapted here
// to single-target-at-a-time sequential semantics (no parallel dispatch).
type Schedule struct {
	Order []*Target
}

// visitState tags a node's position in the current DFS path for cycle
// detection: unvisited, on the active path (grey), or finished (black).
type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// Build performs a depth-first post-order traversal from each of
// plan.Requested in turn, de-duplicating repeats across traversals, and
// returns the resulting Schedule. A node revisited while still on the
// active DFS path is a DependencyCycle.
func Build(plan *Plan) (*Schedule, error) {
	s := &scheduler{
		plan:  plan,
		state: make(map[string]visitState),
	}
	for _, name := range plan.Requested {
		if err := s.visit(name); err != nil {
			return nil, err
		}
	}
	return &Schedule{Order: s.order}, nil
}

type scheduler struct {
	plan  *Plan
	state map[string]visitState
	path  []string
	order []*Target
}

func (s *scheduler) visit(name string) error {
	switch s.state[name] {
	case visited:
		return nil
	case visiting:
		start := 0
		for i, n := range s.path {
			if n == name {
				start = i
				break
			}
		}
		cycle := append(append([]string{}, s.path[start:]...), name)
		return &DependencyCycleError{Cycle: cycle}
	}

	t, ok := s.plan.Target(name)
	if !ok {
		return &UnresolvedTargetError{Target: name}
	}

	s.state[name] = visiting
	s.path = append(s.path, name)

	for _, c := range t.Components {
		if err := s.visit(c); err != nil {
			return err
		}
	}

	s.path = s.path[:len(s.path)-1]
	s.state[name] = visited
	s.order = append(s.order, t)
	return nil
}
