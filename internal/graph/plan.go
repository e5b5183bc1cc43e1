package graph

import (
	"sort"

	"github.com/google/uuid"

	"github.com/jonathan/b2b-migrator/internal/types"
)

// Plan is the executable ordering for a batch: waves of artifacts with no
// remaining intra-batch dependencies, plus the artifacts excluded from
// execution along with the error that excluded them.
type Plan struct {
	Waves    [][]uuid.UUID
	Excluded map[uuid.UUID]error
}

// Order flattens the waves into a single dependency-respecting sequence.
func (p *Plan) Order() []uuid.UUID {
	var order []uuid.UUID
	for _, wave := range p.Waves {
		order = append(order, wave...)
	}
	return order
}

// Plan computes the migration plan: cycle members fail atomically with
// CycleError, nodes with unresolved references fail with UnresolvedRefError,
// nodes depending on an excluded node are excluded transitively, and the
// remaining acyclic subgraph is ordered with Kahn's algorithm, wave by wave,
// tie-broken by ascending artifact id.
func (g *Graph) Plan() *Plan {
	plan := &Plan{Excluded: make(map[uuid.UUID]error)}

	for _, cycle := range g.findCycles() {
		members := make([]string, 0, len(cycle))
		for _, id := range cycle {
			members = append(members, g.memberName(id))
		}
		sort.Strings(members)
		err := &CycleError{Members: members}
		for _, id := range cycle {
			plan.Excluded[id] = err
		}
	}

	for _, id := range g.ids {
		n := g.nodes[id]
		if len(n.unresolved) > 0 {
			if _, done := plan.Excluded[id]; !done {
				plan.Excluded[id] = &UnresolvedRefError{OriginalID: n.originalID, Refs: n.unresolved}
			}
		}
	}

	// A node whose prerequisite is excluded can never be satisfied in this
	// batch; cascade the exclusion until fixpoint.
	for changed := true; changed; {
		changed = false
		for _, id := range g.ids {
			if _, done := plan.Excluded[id]; done {
				continue
			}
			n := g.nodes[id]
			for _, dep := range n.deps {
				if _, excluded := plan.Excluded[dep]; excluded {
					plan.Excluded[id] = &UnresolvedRefError{
						OriginalID: n.originalID,
						Refs:       g.refsTo(n, dep),
					}
					changed = true
					break
				}
			}
		}
	}

	plan.Waves = g.kahnWaves(plan.Excluded)
	return plan
}

// kahnWaves runs Kahn's algorithm over the non-excluded subgraph, emitting
// zero-in-degree nodes level by level.
func (g *Graph) kahnWaves(excluded map[uuid.UUID]error) [][]uuid.UUID {
	remaining := make(map[uuid.UUID]int)
	dependents := make(map[uuid.UUID][]uuid.UUID)
	for _, id := range g.ids {
		if _, skip := excluded[id]; skip {
			continue
		}
		n := g.nodes[id]
		degree := 0
		for _, dep := range n.deps {
			if _, skip := excluded[dep]; skip {
				continue
			}
			degree++
			dependents[dep] = append(dependents[dep], id)
		}
		remaining[id] = degree
	}

	var waves [][]uuid.UUID
	for len(remaining) > 0 {
		var wave []uuid.UUID
		for id, degree := range remaining {
			if degree == 0 {
				wave = append(wave, id)
			}
		}
		if len(wave) == 0 {
			// Leftover cycle that escaped detection; should not happen,
			// but never loop forever on it.
			break
		}
		sortIDs(wave)
		for _, id := range wave {
			delete(remaining, id)
			for _, dependent := range dependents[id] {
				if _, ok := remaining[dependent]; ok {
					remaining[dependent]--
				}
			}
		}
		waves = append(waves, wave)
	}
	return waves
}

// findCycles locates every dependency cycle in the batch subgraph via
// depth-first traversal; each back-edge yields the cycle's membership from
// the active stack.
func (g *Graph) findCycles() [][]uuid.UUID {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[uuid.UUID]int, len(g.ids))
	inCycle := make(map[uuid.UUID]bool)
	var stack []uuid.UUID
	var cycles [][]uuid.UUID

	var visit func(id uuid.UUID)
	visit = func(id uuid.UUID) {
		color[id] = gray
		stack = append(stack, id)

		for _, dep := range g.nodes[id].deps {
			switch color[dep] {
			case white:
				visit(dep)
			case gray:
				// Back-edge: everything on the stack from dep onward is
				// part of the cycle.
				start := len(stack) - 1
				for start >= 0 && stack[start] != dep {
					start--
				}
				var cycle []uuid.UUID
				for _, member := range stack[start:] {
					if !inCycle[member] {
						inCycle[member] = true
						cycle = append(cycle, member)
					}
				}
				if len(cycle) > 0 {
					cycles = append(cycles, cycle)
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, id := range g.ids {
		if color[id] == white {
			visit(id)
		}
	}
	return cycles
}

// refsTo returns the node's reference pointing at the given intra-batch
// dependency, for the exclusion error message.
func (g *Graph) refsTo(n *node, dep uuid.UUID) []types.EntityRef {
	if ref, ok := n.depRefs[dep]; ok {
		return []types.EntityRef{ref}
	}
	return nil
}

func (g *Graph) memberName(id uuid.UUID) string {
	if name := g.OriginalID(id); name != "" {
		return name
	}
	return id.String()
}
