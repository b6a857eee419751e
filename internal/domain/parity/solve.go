// Package parity solves almost-sure parity objectives with priorities in
// {0,1,2} on finite MDPs.
//
// The winning region is the set of nodes that reach, with probability 1, an
// end component whose maximal priority is even. Inside such a component the
// strategy plays uniformly over the component's actions; elsewhere it plays
// an action that keeps the play in the winning region and makes progress
// towards the components.
package parity

import (
	"sort"

	"github.com/corey/aswin/internal/errors"
)

// Choice is the strategy at one winning node.
type Choice struct {
	Actions []int
	// Uniform is set inside a good end component: play Actions uniformly at
	// random. Otherwise Actions holds the single reach action.
	Uniform bool
}

// Solution is the output of Solve.
type Solution struct {
	Winning []int

	// MECs is the maximal end component decomposition of the whole graph.
	MECs []EndComponent
	// Good holds the per-priority good components used as the reach target.
	Good []EndComponent

	Strategy map[int]Choice
	Reach    Reach
}

// IsWinning reports whether n is in the winning region.
func (s *Solution) IsWinning(n int) bool {
	return n >= 0 && n < len(s.Reach.Win) && s.Reach.Win[n]
}

// Solve computes the almost-sure winning region and a strategy for g.
func Solve(g Graph) (*Solution, error) {
	const op = "parity.Solve"
	n := g.NumNodes()
	if n == 0 {
		return nil, errors.Newf(errors.KindUnsolvableGraph, op, "graph has no nodes")
	}
	if g.NumActions() == 0 {
		return nil, errors.Newf(errors.KindUnsolvableGraph, op, "graph has no actions")
	}
	for v := 0; v < n; v++ {
		if p := g.Priority(v); p < 0 || p > 2 {
			return nil, errors.Newf(errors.KindUnsolvableGraph, op, "node %d has priority %d outside {0,1,2}", v, p)
		}
		for a := 0; a < g.NumActions(); a++ {
			if len(g.Succ(v, a)) == 0 {
				return nil, errors.Newf(errors.KindUnsolvableGraph, op, "node %d has no successor under action %d", v, a)
			}
		}
	}

	sol := &Solution{
		MECs:     Decompose(g, nil),
		Good:     GoodComponents(g),
		Strategy: make(map[int]Choice),
	}

	target := make([]bool, n)
	owner := make([]int, n)
	for v := range owner {
		owner[v] = -1
	}
	for i, ec := range sol.Good {
		for _, v := range ec.Nodes {
			target[v] = true
			if owner[v] < 0 {
				owner[v] = i
			}
		}
	}

	sol.Reach = AlmostSureReach(g, target)
	for v := 0; v < n; v++ {
		if !sol.Reach.Win[v] {
			continue
		}
		sol.Winning = append(sol.Winning, v)
		if i := owner[v]; i >= 0 {
			acts := append([]int(nil), sol.Good[i].Actions[v]...)
			sort.Ints(acts)
			sol.Strategy[v] = Choice{Actions: acts, Uniform: true}
			continue
		}
		sol.Strategy[v] = Choice{Actions: []int{sol.Reach.Witness[v]}}
	}
	return sol, nil
}
