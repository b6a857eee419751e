package parity

import "sort"

// Graph is a finite MDP with node priorities. Succ must return the distinct
// successors of n under a in ascending order.
type Graph interface {
	NumNodes() int
	NumActions() int
	Succ(n, a int) []int
	Priority(n int) int
}

// SCCs returns the strongly connected components of the subgraph induced by
// the nodes with in[n] set, following only the actions listed in acts[n].
// Edges to nodes outside the subgraph are ignored. Every component is sorted
// and the list is ordered by smallest member.
func SCCs(g Graph, in []bool, acts [][]int) [][]int {
	n := g.NumNodes()
	adj := make([][]int, n)
	for v := 0; v < n; v++ {
		if !in[v] {
			continue
		}
		seen := map[int]bool{}
		for _, a := range acts[v] {
			for _, w := range g.Succ(v, a) {
				if in[w] && !seen[w] {
					seen[w] = true
					adj[v] = append(adj[v], w)
				}
			}
		}
		sort.Ints(adj[v])
	}

	const unvisited = -1
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = unvisited
	}
	counter := 0
	var stack []int
	var comps [][]int

	// frame replaces the recursive call in Tarjan's algorithm.
	type frame struct {
		node  int
		edge  int // next index into adj[node]
		phase int // 0=enter, 1=edges, 2=after child, 3=finish
		child int
	}

	for root := 0; root < n; root++ {
		if !in[root] || index[root] != unvisited {
			continue
		}
		calls := []frame{{node: root}}
		for len(calls) > 0 {
			f := &calls[len(calls)-1]
			switch f.phase {
			case 0:
				index[f.node] = counter
				low[f.node] = counter
				counter++
				stack = append(stack, f.node)
				onStack[f.node] = true
				f.phase = 1

			case 1:
				pushed := false
				for f.edge < len(adj[f.node]) {
					w := adj[f.node][f.edge]
					f.edge++
					if index[w] == unvisited {
						f.phase = 2
						f.child = w
						calls = append(calls, frame{node: w})
						pushed = true
						break
					}
					if onStack[w] && index[w] < low[f.node] {
						low[f.node] = index[w]
					}
				}
				if !pushed {
					f.phase = 3
				}

			case 2:
				if low[f.child] < low[f.node] {
					low[f.node] = low[f.child]
				}
				f.phase = 1

			case 3:
				if low[f.node] == index[f.node] {
					var comp []int
					for {
						w := stack[len(stack)-1]
						stack = stack[:len(stack)-1]
						onStack[w] = false
						comp = append(comp, w)
						if w == f.node {
							break
						}
					}
					sort.Ints(comp)
					comps = append(comps, comp)
				}
				calls = calls[:len(calls)-1]
			}
		}
	}

	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })
	return comps
}
