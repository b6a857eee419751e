// Package product builds the synchronous product of a POMDP with a
// deterministic parity automaton.
//
// A product state (s, q) moves under action a to (s', q') with observation o
// and probability T(s,a,s')·Z(a,s',o). The automaton reads the labels of the
// successor state (LabelSuccessor) or of the emitted observation
// (LabelObservation). The automaton is normalised to state-based priorities
// first, so Priority((s,q)) is the priority of q.
package product

import (
	"fmt"

	"github.com/corey/aswin/internal/domain/automaton"
	"github.com/corey/aswin/internal/domain/pomdp"
	"github.com/corey/aswin/internal/errors"
	"github.com/corey/aswin/internal/ports"
)

// LabelMode selects which labels drive the automaton.
type LabelMode int

const (
	// LabelAuto uses LabelObservation when the POMDP has observation labels
	// and LabelSuccessor otherwise.
	LabelAuto LabelMode = iota
	LabelSuccessor
	LabelObservation
)

func (m LabelMode) String() string {
	switch m {
	case LabelSuccessor:
		return "successor"
	case LabelObservation:
		return "observation"
	default:
		return "auto"
	}
}

// ParseLabelMode parses "auto", "successor" or "observation".
func ParseLabelMode(s string) (LabelMode, error) {
	switch s {
	case "", "auto":
		return LabelAuto, nil
	case "successor":
		return LabelSuccessor, nil
	case "observation":
		return LabelObservation, nil
	}
	return LabelAuto, fmt.Errorf("unknown label mode %q (want auto, successor or observation)", s)
}

// Options configures Build.
type Options struct {
	LabelMode LabelMode
}

// Product is the immutable POMDP × automaton product. It implements
// ports.Dynamics.
type Product struct {
	pomdp *ports.POMDP
	aut   *ports.Automaton
	mode  LabelMode

	// delta[q][x] is the automaton successor of q on the labels of x, where
	// x is a POMDP state or an observation depending on mode.
	delta   [][]int
	initial []ports.ProductState
}

const opBuild = "product.Build"

// Build validates both inputs and precomputes the automaton transition for
// every (automaton state, label source) pair.
func Build(p *ports.POMDP, aut *ports.Automaton, opts Options) (*Product, error) {
	if err := pomdp.Validate(p); err != nil {
		return nil, err
	}
	if err := automaton.Validate(aut); err != nil {
		return nil, err
	}
	norm := automaton.Normalize(aut)

	mode := opts.LabelMode
	if mode == LabelAuto {
		mode = LabelSuccessor
		if p.ObsLabels != nil {
			mode = LabelObservation
		}
	}
	if mode == LabelObservation && p.ObsLabels == nil {
		return nil, errors.Newf(errors.KindMalformedPOMDP, opBuild, "observation label mode needs observation labels")
	}
	if mode == LabelSuccessor && p.Labels == nil {
		return nil, errors.Newf(errors.KindMalformedPOMDP, opBuild, "successor label mode needs state labels")
	}

	pr := &Product{pomdp: p, aut: norm, mode: mode}
	if err := pr.buildDelta(); err != nil {
		return nil, err
	}

	q0 := norm.Initial
	for _, s := range pomdp.StartSupport(p) {
		q := q0
		if mode == LabelSuccessor {
			q = pr.delta[q0][s]
		}
		pr.initial = append(pr.initial, ports.ProductState{State: s, Aut: q})
	}
	return pr, nil
}

func (pr *Product) buildDelta() error {
	propMap := automaton.PropIndex(pr.aut, pr.pomdp.Props)

	var sources [][]int
	var names []string
	if pr.mode == LabelObservation {
		sources, names = pr.pomdp.ObsLabels, pr.pomdp.Observations
	} else {
		sources, names = pr.pomdp.Labels, pr.pomdp.States
	}

	translated := make([][]int, len(sources))
	for x, labels := range sources {
		for _, ap := range labels {
			if id := propMap[ap]; id >= 0 {
				translated[x] = append(translated[x], id)
			}
		}
	}

	pr.delta = make([][]int, len(pr.aut.States))
	for q := range pr.aut.States {
		pr.delta[q] = make([]int, len(sources))
		for x := range sources {
			to, _, err := automaton.Step(pr.aut, q, translated[x])
			if err != nil {
				e := errors.Newf(errors.KindMalformedAutomaton, opBuild, "no unique transition").
					WithAutState(pr.aut.States[q])
				if pr.mode == LabelObservation {
					e.WithObservation(names[x])
				} else {
					e.WithState(names[x])
				}
				e.Err = err
				return e
			}
			pr.delta[q][x] = to
		}
	}
	return nil
}

// Mode returns the resolved label mode.
func (pr *Product) Mode() LabelMode { return pr.mode }

// POMDP returns the underlying model.
func (pr *Product) POMDP() *ports.POMDP { return pr.pomdp }

// Automaton returns the normalised automaton.
func (pr *Product) Automaton() *ports.Automaton { return pr.aut }

// NumActions returns the number of POMDP actions.
func (pr *Product) NumActions() int { return len(pr.pomdp.Actions) }

// ActionName returns the name of action a.
func (pr *Product) ActionName(a int) string { return pr.pomdp.Actions[a] }

// Initial returns the initial product support.
func (pr *Product) Initial() []ports.ProductState {
	return append([]ports.ProductState(nil), pr.initial...)
}

// Step returns the joint outcomes of a from ps, ordered by successor state
// then observation.
func (pr *Product) Step(ps ports.ProductState, a int) []ports.Transition {
	out := pomdp.Joint(pr.pomdp, ps.State, a)
	for i := range out {
		x := out[i].Next.State
		if pr.mode == LabelObservation {
			x = out[i].Obs
		}
		out[i].Next.Aut = pr.delta[ps.Aut][x]
	}
	return out
}

// Priority returns the priority of the automaton component.
func (pr *Product) Priority(ps ports.ProductState) int {
	return pr.aut.StatePriority[ps.Aut]
}

// Name formats ps as "<state>-<autstate>".
func (pr *Product) Name(ps ports.ProductState) string {
	return fmt.Sprintf("%s-%s", pr.pomdp.States[ps.State], pr.aut.States[ps.Aut])
}

// NumStates returns the size of the full product state space.
func (pr *Product) NumStates() int {
	return len(pr.pomdp.States) * len(pr.aut.States)
}
