package parity

import "sort"

// EndComponent is a set of nodes together with, for each node, the actions
// that keep the play inside the set. The nodes are strongly connected under
// those actions.
type EndComponent struct {
	Nodes       []int
	Actions     map[int][]int
	MaxPriority int
}

// Good reports whether the maximal priority of the component is even.
func (ec EndComponent) Good() bool { return ec.MaxPriority%2 == 0 }

// Contains reports whether n belongs to the component.
func (ec EndComponent) Contains(n int) bool {
	i := sort.SearchInts(ec.Nodes, n)
	return i < len(ec.Nodes) && ec.Nodes[i] == n
}

// Decompose returns the maximal end components of the sub-MDP induced by
// the nodes with within[n] set (nil means every node). It refines the
// candidate set until stable: split into SCCs, drop every action that may
// leave its node's SCC, drop every node left without actions.
func Decompose(g Graph, within []bool) []EndComponent {
	n := g.NumNodes()
	in := make([]bool, n)
	acts := make([][]int, n)
	for v := 0; v < n; v++ {
		if within != nil && !within[v] {
			continue
		}
		in[v] = true
	}
	for v := 0; v < n; v++ {
		if !in[v] {
			continue
		}
		for a := 0; a < g.NumActions(); a++ {
			if succ := g.Succ(v, a); len(succ) > 0 && allIn(succ, in) {
				acts[v] = append(acts[v], a)
			}
		}
		if len(acts[v]) == 0 {
			in[v] = false
		}
	}

	comp := make([]int, n)
	for {
		comps := SCCs(g, in, acts)
		for i := range comp {
			comp[i] = -1
		}
		for id, c := range comps {
			for _, v := range c {
				comp[v] = id
			}
		}

		changed := false
		for v := 0; v < n; v++ {
			if !in[v] {
				continue
			}
			kept := acts[v][:0]
			for _, a := range acts[v] {
				if staysIn(g.Succ(v, a), comp, comp[v]) {
					kept = append(kept, a)
				}
			}
			if len(kept) != len(acts[v]) {
				changed = true
			}
			acts[v] = kept
			if len(kept) == 0 {
				in[v] = false
				acts[v] = nil
			}
		}
		if !changed {
			return collect(g, comps, acts)
		}
	}
}

func allIn(succ []int, in []bool) bool {
	for _, w := range succ {
		if !in[w] {
			return false
		}
	}
	return true
}

func staysIn(succ []int, comp []int, id int) bool {
	for _, w := range succ {
		if comp[w] != id {
			return false
		}
	}
	return true
}

func collect(g Graph, comps [][]int, acts [][]int) []EndComponent {
	out := make([]EndComponent, 0, len(comps))
	for _, c := range comps {
		ec := EndComponent{
			Nodes:       c,
			Actions:     make(map[int][]int, len(c)),
			MaxPriority: -1,
		}
		for _, v := range c {
			ec.Actions[v] = append([]int(nil), acts[v]...)
			if p := g.Priority(v); p > ec.MaxPriority {
				ec.MaxPriority = p
			}
		}
		out = append(out, ec)
	}
	return out
}

// Classify splits end components into good (even maximal priority) and bad.
func Classify(ecs []EndComponent) (good, bad []EndComponent) {
	for _, ec := range ecs {
		if ec.Good() {
			good = append(good, ec)
		} else {
			bad = append(bad, ec)
		}
	}
	return good, bad
}

// GoodComponents returns, for each even priority p up to the graph's maximum,
// the maximal end components of the sub-MDP of nodes with priority <= p that
// contain a node of priority p. These are exactly the end components in
// which p is the maximal priority visited infinitely often under a uniform
// strategy. Results are ordered by p, then by smallest node.
func GoodComponents(g Graph) []EndComponent {
	n := g.NumNodes()
	maxPrio := 0
	for v := 0; v < n; v++ {
		if p := g.Priority(v); p > maxPrio {
			maxPrio = p
		}
	}

	var out []EndComponent
	within := make([]bool, n)
	for p := 0; p <= maxPrio; p += 2 {
		for v := 0; v < n; v++ {
			within[v] = g.Priority(v) <= p
		}
		for _, ec := range Decompose(g, within) {
			if ec.MaxPriority == p {
				out = append(out, ec)
			}
		}
	}
	return out
}
