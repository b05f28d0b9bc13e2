package stage

import "fmt"

// Graph maps each stage to its allowed successor stages, in order. Built
// per (tenant, template) from the template's stage sequence:
//
//   - every non-terminal stage has a forward edge to the next stage in
//     sequence, plus a direct edge to Archived (force-archive escape hatch);
//   - Archived is terminal and has no outgoing edges;
//   - self-transitions are never valid.
type Graph map[Stage][]Stage

// Build constructs a Graph from an ordered stage sequence. The sequence must
// contain no duplicates, start at Draft, and end at Archived. Releases are
// born at Draft, so a sequence starting anywhere else would leave them on a
// stage their own graph has no node for.
func Build(sequence []Stage) (Graph, error) {
	if len(sequence) == 0 {
		return nil, fmt.Errorf("stage: empty sequence")
	}
	if sequence[0] != Draft {
		return nil, fmt.Errorf("stage: sequence must start at %s, got %s", Draft, sequence[0])
	}
	if sequence[len(sequence)-1] != Archived {
		return nil, fmt.Errorf("stage: sequence must end at %s, got %s", Archived, sequence[len(sequence)-1])
	}

	seen := make(map[Stage]bool, len(sequence))
	for _, s := range sequence {
		if !known[s] {
			return nil, fmt.Errorf("stage: unknown stage %q in sequence", s)
		}
		if seen[s] {
			return nil, fmt.Errorf("stage: duplicate stage %q in sequence", s)
		}
		seen[s] = true
	}

	g := make(Graph, len(sequence))
	for i, s := range sequence {
		if s == Archived {
			g[s] = nil // terminal
			continue
		}
		next := sequence[i+1]
		if next == Archived {
			g[s] = []Stage{Archived}
		} else {
			g[s] = []Stage{next, Archived}
		}
	}
	return g, nil
}

// Default returns the graph for the canonical sequence.
func Default() Graph {
	g, err := Build(Canonical)
	if err != nil {
		// Canonical is a package constant; Build cannot fail on it.
		panic(err)
	}
	return g
}

// IsValidTransition reports whether from → to is an allowed edge. An
// unrecognized from stage is treated as invalid, never as an error.
func (g Graph) IsValidTransition(from, to Stage) bool {
	if from == to {
		return false
	}
	for _, next := range g[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next returns the allowed successors of from, in graph order. Returns nil
// for terminal or unrecognized stages.
func (g Graph) Next(from Stage) []Stage {
	return g[from]
}

// Contains reports whether s is a node of the graph.
func (g Graph) Contains(s Stage) bool {
	_, ok := g[s]
	return ok
}
