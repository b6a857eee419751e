// Package synthesis runs the full pipeline: product construction,
// belief-support exploration and parity solving, and projects the result
// back onto POMDP states.
package synthesis

import (
	"context"
	"sort"
	"time"

	"github.com/corey/aswin/internal/domain/belief"
	"github.com/corey/aswin/internal/domain/parity"
	"github.com/corey/aswin/internal/domain/product"
	"github.com/corey/aswin/internal/domain/revealing"
	"github.com/corey/aswin/internal/logging"
	"github.com/corey/aswin/internal/ports"
)

// Options configures Run.
type Options struct {
	Budget    belief.Budget
	Workers   int
	LabelMode product.LabelMode

	// CheckRevealing runs the strongly-revealing check on the input first
	// and records a warning when it fails. The solve proceeds either way.
	CheckRevealing bool
	Lookahead      int

	Logger *logging.Logger
	// Observe, when set, is called after each stage with its duration.
	Observe func(stage string, d time.Duration)
}

// StrategyEntry is the choice at one winning belief support.
type StrategyEntry struct {
	Node    int
	Support []string
	Actions []string
	Uniform bool
}

// Result is the output of a solve.
type Result struct {
	Product  *product.Product
	MDP      *belief.MDP
	Solution *parity.Solution

	// WinningStates are the POMDP states whose singleton support wins.
	WinningStates        []string
	WinningProductStates []string
	InitialWinning       bool
	NodesExplored        int

	Strategy []StrategyEntry
	Warnings []string
}

// Run solves the almost-sure parity objective given by aut on p.
func Run(ctx context.Context, p *ports.POMDP, aut *ports.Automaton, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NopLogger()
	}
	observe := opts.Observe
	if observe == nil {
		observe = func(string, time.Duration) {}
	}
	res := &Result{}

	if opts.CheckRevealing {
		start := time.Now()
		rep, err := revealing.Check(ctx, p, revealing.Options{Lookahead: opts.Lookahead, Budget: opts.Budget})
		if err != nil {
			return nil, err
		}
		observe("reveal", time.Since(start))
		if !rep.Revealing {
			msg := "model is not strongly revealing: " + rep.Violations[0].String()
			res.Warnings = append(res.Warnings, msg)
			log.WithPhase("reveal").Warn("not strongly revealing", "violations", len(rep.Violations))
		}
	}

	start := time.Now()
	pr, err := product.Build(p, aut, product.Options{LabelMode: opts.LabelMode})
	if err != nil {
		return nil, err
	}
	observe("product", time.Since(start))
	log.WithPhase("product").Debug("product built",
		"states", pr.NumStates(), "initial", len(pr.Initial()), "mode", pr.Mode().String(),
		"elapsed", time.Since(start).String())
	res.Product = pr

	start = time.Now()
	mdp, err := belief.Explore(ctx, pr, belief.Options{Budget: opts.Budget, Workers: opts.Workers})
	if err != nil {
		return nil, err
	}
	observe("explore", time.Since(start))
	stats := mdp.Stats()
	log.WithPhase("explore").Debug("belief supports explored",
		"nodes", stats.Nodes, "edges", stats.Edges, "max_support", stats.MaxSupport,
		"elapsed", time.Since(start).String())
	res.MDP = mdp
	res.NodesExplored = stats.Nodes

	start = time.Now()
	sol, err := parity.Solve(mdp)
	if err != nil {
		return nil, err
	}
	observe("solve", time.Since(start))
	good, bad := parity.Classify(sol.MECs)
	log.WithPhase("solve").Debug("parity solved",
		"winning", len(sol.Winning), "good_mecs", len(good), "bad_mecs", len(bad),
		"elapsed", time.Since(start).String())
	res.Solution = sol

	project(res, p)
	return res, nil
}

func project(res *Result, p *ports.POMDP) {
	pr, mdp, sol := res.Product, res.MDP, res.Solution
	res.InitialWinning = sol.IsWinning(mdp.Initial)

	winState := map[int]bool{}
	var prodNames []string
	for _, n := range sol.Winning {
		support := mdp.Nodes[n].Support
		if len(support) == 1 {
			winState[support[0].State] = true
			prodNames = append(prodNames, pr.Name(support[0]))
		}

		choice := sol.Strategy[n]
		actions := make([]string, len(choice.Actions))
		for i, a := range choice.Actions {
			actions[i] = mdp.Actions[a]
		}
		res.Strategy = append(res.Strategy, StrategyEntry{
			Node:    n,
			Support: support.Names(pr),
			Actions: actions,
			Uniform: choice.Uniform,
		})
	}
	for s, name := range p.States {
		if winState[s] {
			res.WinningStates = append(res.WinningStates, name)
		}
	}
	sort.Strings(prodNames)
	res.WinningProductStates = prodNames
}

// ToRun converts the result into its persisted form.
func (r *Result) ToRun() *ports.Run {
	run := &ports.Run{
		Model:          r.Product.POMDP().Name,
		Automaton:      r.Product.Automaton().Name,
		Nodes:          r.NodesExplored,
		Edges:          r.MDP.Stats().Edges,
		InitialWinning: r.InitialWinning,
		WinningStates:  append([]string(nil), r.WinningStates...),
		WinningNodes:   append([]int(nil), r.Solution.Winning...),
		Supports:       make([][]ports.ProductState, len(r.MDP.Nodes)),
	}
	for i, n := range r.MDP.Nodes {
		run.Supports[i] = append([]ports.ProductState(nil), n.Support...)
	}
	for _, e := range r.Strategy {
		run.Strategy = append(run.Strategy, ports.StrategyEntry{
			Node:    e.Node,
			Actions: append([]string(nil), e.Actions...),
			Uniform: e.Uniform,
		})
	}
	return run
}
