package parity

// Reach is the result of AlmostSureReach.
type Reach struct {
	// Win marks the nodes from which the target is reached with probability 1.
	Win []bool
	// Rank is the fixpoint round that added the node (0 for targets, -1 if
	// not winning).
	Rank []int
	// Witness is the smallest action that keeps every successor winning and
	// reaches a node of smaller rank (-1 for targets and losing nodes).
	Witness []int
}

// AlmostSureReach computes the nodes from which some strategy reaches target
// with probability 1.
//
// The outer loop is a greatest fixpoint over a candidate set W. For a fixed
// W, the inner loop is the least fixpoint R: targets in W first, then every
// node with an action whose successors all lie in W and at least one of
// which is already in R. Nodes of W outside R cannot reach the target while
// staying in W and are removed; the loop ends when R = W.
func AlmostSureReach(g Graph, target []bool) Reach {
	n := g.NumNodes()
	nA := g.NumActions()

	w := make([]bool, n)
	for v := range w {
		w[v] = true
	}

	rank := make([]int, n)
	witness := make([]int, n)
	for {
		for v := 0; v < n; v++ {
			rank[v] = -1
			witness[v] = -1
		}

		// safe[v] lists the actions that cannot leave W.
		safe := make([][]int, n)
		for v := 0; v < n; v++ {
			if !w[v] {
				continue
			}
			for a := 0; a < nA; a++ {
				if succ := g.Succ(v, a); len(succ) > 0 && allIn(succ, w) {
					safe[v] = append(safe[v], a)
				}
			}
		}

		var layer []int
		for v := 0; v < n; v++ {
			if w[v] && target[v] {
				rank[v] = 0
				layer = append(layer, v)
			}
		}
		for round := 1; len(layer) > 0; round++ {
			layer = layer[:0]
			for v := 0; v < n; v++ {
				if !w[v] || rank[v] >= 0 {
					continue
				}
				for _, a := range safe[v] {
					if reachesRanked(g.Succ(v, a), rank, round) {
						layer = append(layer, v)
						witness[v] = a
						break
					}
				}
			}
			for _, v := range layer {
				rank[v] = round
			}
		}

		changed := false
		for v := 0; v < n; v++ {
			if w[v] && rank[v] < 0 {
				w[v] = false
				changed = true
			}
		}
		if !changed {
			return Reach{Win: w, Rank: rank, Witness: witness}
		}
	}
}

// reachesRanked reports whether some successor was ranked before round.
func reachesRanked(succ []int, rank []int, round int) bool {
	for _, u := range succ {
		if rank[u] >= 0 && rank[u] < round {
			return true
		}
	}
	return false
}
