// Package pomdp holds validation and traversal helpers for ports.POMDP.
//
// The raw model implements ports.Dynamics through NewDynamics so the
// belief-support explorer can run on it directly (used by the revealing
// checker) without building a product.
package pomdp

import (
	"fmt"
	"math"
	"sort"

	"github.com/corey/aswin/internal/errors"
	"github.com/corey/aswin/internal/ports"
)

const opValidate = "pomdp.Validate"

// Validate checks that every transition and observation row exists, indexes
// valid ids, and sums to 1 within ports.Tolerance. The first violation is
// returned as a MalformedPOMDP error naming the offending identifiers.
func Validate(p *ports.POMDP) error {
	if p == nil {
		return errors.Newf(errors.KindMalformedPOMDP, opValidate, "nil model")
	}
	nS, nA, nO := len(p.States), len(p.Actions), len(p.Observations)
	if nS == 0 || nA == 0 || nO == 0 {
		return errors.Newf(errors.KindMalformedPOMDP, opValidate,
			"need at least one state, action and observation (got %d/%d/%d)", nS, nA, nO)
	}

	if len(p.Trans) != nS {
		return errors.Newf(errors.KindMalformedPOMDP, opValidate, "transition table has %d rows, want %d", len(p.Trans), nS)
	}
	for s := range p.Trans {
		if len(p.Trans[s]) != nA {
			return errors.Newf(errors.KindMalformedPOMDP, opValidate, "missing transition rows").
				WithState(p.States[s])
		}
		for a, row := range p.Trans[s] {
			if err := checkDist(row, nS, "next state"); err != nil {
				return errors.Newf(errors.KindMalformedPOMDP, opValidate, "transition: %v", err).
					WithState(p.States[s]).WithAction(p.Actions[a])
			}
		}
	}

	if len(p.Obs) != nA {
		return errors.Newf(errors.KindMalformedPOMDP, opValidate, "observation table has %d rows, want %d", len(p.Obs), nA)
	}
	for a := range p.Obs {
		if len(p.Obs[a]) != nS {
			return errors.Newf(errors.KindMalformedPOMDP, opValidate, "missing observation rows").
				WithAction(p.Actions[a])
		}
		for s, row := range p.Obs[a] {
			if err := checkDist(row, nO, "observation"); err != nil {
				return errors.Newf(errors.KindMalformedPOMDP, opValidate, "observation: %v", err).
					WithState(p.States[s]).WithAction(p.Actions[a])
			}
		}
	}

	if err := checkDist(p.Start, nS, "start state"); err != nil {
		return errors.Newf(errors.KindMalformedPOMDP, opValidate, "start: %v", err)
	}

	if p.Labels != nil && len(p.Labels) != nS {
		return errors.Newf(errors.KindMalformedPOMDP, opValidate, "labels cover %d states, want %d", len(p.Labels), nS)
	}
	if p.ObsLabels != nil && len(p.ObsLabels) != nO {
		return errors.Newf(errors.KindMalformedPOMDP, opValidate, "observation labels cover %d observations, want %d", len(p.ObsLabels), nO)
	}
	for _, labels := range [][][]int{p.Labels, p.ObsLabels} {
		for _, set := range labels {
			for _, ap := range set {
				if ap < 0 || ap >= len(p.Props) {
					return errors.Newf(errors.KindMalformedPOMDP, opValidate, "unknown atomic proposition id %d", ap)
				}
			}
		}
	}
	return nil
}

func checkDist(d ports.Dist, n int, what string) error {
	if len(d) == 0 {
		return fmt.Errorf("empty distribution")
	}
	prev := -1
	for _, m := range d {
		if m.ID < 0 || m.ID >= n {
			return fmt.Errorf("%s id %d out of range", what, m.ID)
		}
		if m.ID <= prev {
			return fmt.Errorf("%s ids not strictly increasing", what)
		}
		if m.P < 0 || math.IsNaN(m.P) {
			return fmt.Errorf("negative mass on %s %d", what, m.ID)
		}
		prev = m.ID
	}
	if sum := d.Sum(); math.Abs(sum-1) > ports.Tolerance {
		return fmt.Errorf("mass sums to %.6f", sum)
	}
	return nil
}

// Clone returns a deep copy of p.
func Clone(p *ports.POMDP) *ports.POMDP {
	out := &ports.POMDP{
		Name:         p.Name,
		States:       append([]string(nil), p.States...),
		Actions:      append([]string(nil), p.Actions...),
		Observations: append([]string(nil), p.Observations...),
		Props:        append([]string(nil), p.Props...),
		Start:        append(ports.Dist(nil), p.Start...),
		Labels:       cloneSets(p.Labels),
		ObsLabels:    cloneSets(p.ObsLabels),
	}
	out.Trans = make([][]ports.Dist, len(p.Trans))
	for s, rows := range p.Trans {
		out.Trans[s] = make([]ports.Dist, len(rows))
		for a, row := range rows {
			out.Trans[s][a] = append(ports.Dist(nil), row...)
		}
	}
	out.Obs = make([][]ports.Dist, len(p.Obs))
	for a, rows := range p.Obs {
		out.Obs[a] = make([]ports.Dist, len(rows))
		for s, row := range rows {
			out.Obs[a][s] = append(ports.Dist(nil), row...)
		}
	}
	return out
}

func cloneSets(sets [][]int) [][]int {
	if sets == nil {
		return nil
	}
	out := make([][]int, len(sets))
	for i, s := range sets {
		if s != nil {
			out[i] = append(make([]int, 0, len(s)), s...)
		}
	}
	return out
}

// StartSupport returns the states with positive initial probability.
func StartSupport(p *ports.POMDP) []int {
	return p.Start.Support()
}

// StateIndex returns the id of the named state, or -1.
func StateIndex(p *ports.POMDP, name string) int {
	return indexOf(p.States, name)
}

// ActionIndex returns the id of the named action, or -1.
func ActionIndex(p *ports.POMDP, name string) int {
	return indexOf(p.Actions, name)
}

// ObsIndex returns the id of the named observation, or -1.
func ObsIndex(p *ports.POMDP, name string) int {
	return indexOf(p.Observations, name)
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// Joint returns the (next state, observation) outcomes of (s, a) with
// positive probability, ordered by next state then observation.
func Joint(p *ports.POMDP, s, a int) []ports.Transition {
	var out []ports.Transition
	for _, next := range p.Trans[s][a] {
		if next.P <= 0 {
			continue
		}
		for _, o := range p.Obs[a][next.ID] {
			if o.P <= 0 {
				continue
			}
			out = append(out, ports.Transition{
				Next: ports.ProductState{State: next.ID},
				Obs:  o.ID,
				P:    next.P * o.P,
			})
		}
	}
	return out
}

// Dynamics adapts a raw POMDP to ports.Dynamics. Every product state has
// Aut = 0 and priority 0.
type Dynamics struct {
	p *ports.POMDP
}

// NewDynamics wraps p. The model must already be valid.
func NewDynamics(p *ports.POMDP) *Dynamics {
	return &Dynamics{p: p}
}

// NumActions returns the number of actions.
func (d *Dynamics) NumActions() int { return len(d.p.Actions) }

// ActionName returns the name of action a.
func (d *Dynamics) ActionName(a int) string { return d.p.Actions[a] }

// Initial returns the start support.
func (d *Dynamics) Initial() []ports.ProductState {
	support := StartSupport(d.p)
	out := make([]ports.ProductState, len(support))
	for i, s := range support {
		out[i] = ports.ProductState{State: s}
	}
	return out
}

// Step returns the joint outcomes of action a from s.
func (d *Dynamics) Step(s ports.ProductState, a int) []ports.Transition {
	return Joint(d.p, s.State, a)
}

// Priority is constant 0 for the raw model.
func (d *Dynamics) Priority(ports.ProductState) int { return 0 }

// Name returns the state name.
func (d *Dynamics) Name(s ports.ProductState) string { return d.p.States[s.State] }

// SortedUnique sorts ints in place and removes duplicates.
func SortedUnique(xs []int) []int {
	if len(xs) < 2 {
		return xs
	}
	sort.Ints(xs)
	out := xs[:1]
	for _, x := range xs[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}
