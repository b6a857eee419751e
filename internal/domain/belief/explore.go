// Package belief explores the belief-support MDP of a POMDP (or of a POMDP ×
// automaton product) forward from its initial support.
//
// Nodes live in an arena indexed by id with a side map from the canonical
// support key to id. Exploration is breadth-first; node ids follow discovery
// order, so identical inputs always produce identical graphs, including when
// layers are expanded by several workers.
package belief

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/corey/aswin/internal/errors"
	"github.com/corey/aswin/internal/ports"
)

// Budget bounds one exploration. Zero values mean unlimited.
type Budget struct {
	MaxNodes int
	Timeout  time.Duration
}

// Options configures Explore.
type Options struct {
	Budget Budget

	// Workers > 1 expands each BFS layer concurrently.
	Workers int

	// MaxDepth > 0 stops expansion at that depth. Nodes at the bound are
	// kept with Frontier set and no outgoing edges.
	MaxDepth int

	// Roots replaces the initial support of dyn. All roots are enqueued at
	// depth 0 in order; the first becomes MDP.Initial.
	Roots []Support
}

// Edge is one observation-labelled successor of a node under an action.
type Edge struct {
	Obs int
	To  int
}

// Node is one belief support of the explored MDP.
type Node struct {
	ID       int
	Support  Support
	Priority int
	Depth    int
	Frontier bool

	// Edges[a] lists the successors under action a, sorted by observation.
	Edges [][]Edge
}

// MDP is the explored belief-support MDP.
type MDP struct {
	Nodes   []Node
	Actions []string
	Initial int
	Roots   []int

	index map[string]int
	succ  [][][]int
}

// Stats summarises an MDP.
type Stats struct {
	Nodes      int
	Edges      int
	MaxSupport int
	MaxDepth   int
	Frontier   int
}

type group struct {
	obs     int
	support Support
}

type explorer struct {
	ctx   context.Context
	dyn   ports.Dynamics
	opts  Options
	start time.Time
	mdp   *MDP
}

// Explore builds the belief-support MDP reachable from the initial support.
// It fails with an *errors.ExplosionError when the budget is exhausted and
// with ctx.Err() on cancellation; no partial MDP is returned.
func Explore(ctx context.Context, dyn ports.Dynamics, opts Options) (*MDP, error) {
	nA := dyn.NumActions()
	mdp := &MDP{
		Actions: make([]string, nA),
		index:   make(map[string]int),
	}
	for a := 0; a < nA; a++ {
		mdp.Actions[a] = dyn.ActionName(a)
	}
	ex := &explorer{ctx: ctx, dyn: dyn, opts: opts, start: time.Now(), mdp: mdp}

	roots := opts.Roots
	if len(roots) == 0 {
		roots = []Support{NewSupport(dyn.Initial())}
	}
	var layer []int
	for _, root := range roots {
		id, fresh := ex.add(NewSupport(root), 0)
		if fresh {
			layer = append(layer, id)
		}
		mdp.Roots = append(mdp.Roots, id)
	}
	mdp.Initial = mdp.Roots[0]
	if err := ex.checkBudget(); err != nil {
		return nil, err
	}

	for len(layer) > 0 {
		expanded, err := ex.expandLayer(layer)
		if err != nil {
			return nil, err
		}
		var next []int
		for i, id := range layer {
			groups := expanded[i]
			if groups == nil {
				continue
			}
			depth := mdp.Nodes[id].Depth + 1
			edges := make([][]Edge, nA)
			for a, gs := range groups {
				edges[a] = make([]Edge, 0, len(gs))
				for _, g := range gs {
					to, fresh := ex.add(g.support, depth)
					if fresh {
						next = append(next, to)
					}
					edges[a] = append(edges[a], Edge{Obs: g.obs, To: to})
				}
			}
			mdp.Nodes[id].Edges = edges
			if err := ex.checkBudget(); err != nil {
				return nil, err
			}
		}
		layer = next
	}

	mdp.finalize()
	return mdp, nil
}

// add interns a support, returning its id and whether it is new.
func (ex *explorer) add(s Support, depth int) (int, bool) {
	key := s.Key()
	if id, ok := ex.mdp.index[key]; ok {
		return id, false
	}
	prio := 0
	for _, ps := range s {
		if p := ex.dyn.Priority(ps); p > prio {
			prio = p
		}
	}
	id := len(ex.mdp.Nodes)
	ex.mdp.Nodes = append(ex.mdp.Nodes, Node{
		ID:       id,
		Support:  s,
		Priority: prio,
		Depth:    depth,
		Frontier: ex.opts.MaxDepth > 0 && depth >= ex.opts.MaxDepth,
	})
	ex.mdp.index[key] = id
	return id, true
}

func (ex *explorer) checkBudget() error {
	if err := ex.ctx.Err(); err != nil {
		return err
	}
	b := ex.opts.Budget
	if b.MaxNodes > 0 && len(ex.mdp.Nodes) > b.MaxNodes {
		return &errors.ExplosionError{
			NodesExplored: len(ex.mdp.Nodes),
			Limit:         b.MaxNodes,
			Elapsed:       time.Since(ex.start),
			Reason:        "max nodes",
		}
	}
	if b.Timeout > 0 {
		if elapsed := time.Since(ex.start); elapsed > b.Timeout {
			return &errors.ExplosionError{
				NodesExplored: len(ex.mdp.Nodes),
				Limit:         b.MaxNodes,
				Elapsed:       elapsed,
				Reason:        "timeout",
			}
		}
	}
	return nil
}

// expandLayer computes the successor groups of every node in layer. Frontier
// nodes yield nil. The result is indexed like layer.
func (ex *explorer) expandLayer(layer []int) ([][][]group, error) {
	out := make([][][]group, len(layer))
	supports := make([]Support, len(layer))
	for i, id := range layer {
		if !ex.mdp.Nodes[id].Frontier {
			supports[i] = ex.mdp.Nodes[id].Support
		}
	}

	if ex.opts.Workers <= 1 || len(layer) == 1 {
		for i, s := range supports {
			if s == nil {
				continue
			}
			if err := ex.checkBudget(); err != nil {
				return nil, err
			}
			out[i] = expand(ex.dyn, s)
		}
		return out, nil
	}

	g, ctx := errgroup.WithContext(ex.ctx)
	g.SetLimit(ex.opts.Workers)
	for i, s := range supports {
		if s == nil {
			continue
		}
		i, s := i, s
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = expand(ex.dyn, s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ex.ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if err := ex.checkBudget(); err != nil {
		return nil, err
	}
	return out, nil
}

// expand groups the successors of s under each action by observation.
func expand(dyn ports.Dynamics, s Support) [][]group {
	nA := dyn.NumActions()
	out := make([][]group, nA)
	for a := 0; a < nA; a++ {
		byObs := map[int][]ports.ProductState{}
		for _, ps := range s {
			for _, tr := range dyn.Step(ps, a) {
				if tr.P <= 0 {
					continue
				}
				byObs[tr.Obs] = append(byObs[tr.Obs], tr.Next)
			}
		}
		obs := make([]int, 0, len(byObs))
		for o := range byObs {
			obs = append(obs, o)
		}
		sort.Ints(obs)
		gs := make([]group, len(obs))
		for i, o := range obs {
			gs[i] = group{obs: o, support: NewSupport(byObs[o])}
		}
		out[a] = gs
	}
	return out
}

func (m *MDP) finalize() {
	m.succ = make([][][]int, len(m.Nodes))
	for n := range m.Nodes {
		m.succ[n] = make([][]int, len(m.Actions))
		for a, edges := range m.Nodes[n].Edges {
			seen := make(map[int]bool, len(edges))
			var ids []int
			for _, e := range edges {
				if !seen[e.To] {
					seen[e.To] = true
					ids = append(ids, e.To)
				}
			}
			sort.Ints(ids)
			m.succ[n][a] = ids
		}
	}
}

// NumNodes returns the number of belief supports.
func (m *MDP) NumNodes() int { return len(m.Nodes) }

// NumActions returns the number of actions.
func (m *MDP) NumActions() int { return len(m.Actions) }

// Succ returns the distinct successors of n under a, ascending.
func (m *MDP) Succ(n, a int) []int { return m.succ[n][a] }

// Priority returns the maximal product-state priority in n's support.
func (m *MDP) Priority(n int) int { return m.Nodes[n].Priority }

// Lookup returns the id of a support.
func (m *MDP) Lookup(s Support) (int, bool) {
	id, ok := m.index[NewSupport(s).Key()]
	return id, ok
}

// Stats summarises the graph.
func (m *MDP) Stats() Stats {
	st := Stats{Nodes: len(m.Nodes)}
	for _, n := range m.Nodes {
		for _, edges := range n.Edges {
			st.Edges += len(edges)
		}
		if len(n.Support) > st.MaxSupport {
			st.MaxSupport = len(n.Support)
		}
		if n.Depth > st.MaxDepth {
			st.MaxDepth = n.Depth
		}
		if n.Frontier {
			st.Frontier++
		}
	}
	return st
}
