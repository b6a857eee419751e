// Package revealing checks whether a POMDP is strongly revealing and, when it
// is not, refines its observations until it is.
//
// A belief support B is revealing if for every action a and every state s'
// that a can reach from B there is an observation o with Post(B,a,o) = {s'}.
// The POMDP is strongly revealing when every support reachable from the
// initial support, or from any single state, is revealing.
package revealing

import (
	"context"
	"fmt"
	"sort"

	"github.com/corey/aswin/internal/domain/belief"
	"github.com/corey/aswin/internal/domain/pomdp"
	"github.com/corey/aswin/internal/errors"
	"github.com/corey/aswin/internal/ports"
)

// Options bounds the check.
type Options struct {
	// Lookahead > 0 only inspects supports within that many steps of a root.
	Lookahead int
	Budget    belief.Budget
}

// Violation names a support, action and successor state that no
// observation isolates.
type Violation struct {
	Node    int
	Support []string
	Action  string
	State   string
}

func (v Violation) String() string {
	return fmt.Sprintf("support %v action %s: state %s is never observed alone", v.Support, v.Action, v.State)
}

// Report is the outcome of Check.
type Report struct {
	Revealing  bool
	Violations []Violation
	// Nodes is the number of supports inspected.
	Nodes int
	// Frontier counts supports left unexpanded because of Lookahead.
	Frontier int
}

// split records an (action, observation) pair emitted by several states of
// one reachable post-support.
type split struct{ action, obs int }

// Check inspects the supports reachable in p. The input is not modified.
func Check(ctx context.Context, p *ports.POMDP, opts Options) (*Report, error) {
	rep, _, err := analyse(ctx, p, opts)
	return rep, err
}

// IsStronglyRevealing reports whether Check finds no violation.
func IsStronglyRevealing(ctx context.Context, p *ports.POMDP, opts Options) (bool, error) {
	rep, err := Check(ctx, p, opts)
	if err != nil {
		return false, err
	}
	return rep.Revealing, nil
}

func analyse(ctx context.Context, p *ports.POMDP, opts Options) (*Report, map[split]bool, error) {
	if err := pomdp.Validate(p); err != nil {
		return nil, nil, err
	}
	dyn := pomdp.NewDynamics(p)

	roots := []belief.Support{belief.NewSupport(dyn.Initial())}
	for s := range p.States {
		roots = append(roots, belief.Singleton(ports.ProductState{State: s}))
	}
	mdp, err := belief.Explore(ctx, dyn, belief.Options{
		Budget:   opts.Budget,
		MaxDepth: opts.Lookahead,
		Roots:    roots,
	})
	if err != nil {
		return nil, nil, err
	}

	stats := mdp.Stats()
	rep := &Report{Nodes: stats.Nodes, Frontier: stats.Frontier}
	ambiguous := map[split]bool{}
	for _, node := range mdp.Nodes {
		for a := range p.Actions {
			groups := postByObs(dyn, node.Support, a)

			alone := map[int]bool{}
			reached := map[int]bool{}
			for o, states := range groups {
				for _, s := range states {
					reached[s] = true
				}
				if len(states) == 1 {
					alone[states[0]] = true
				} else {
					ambiguous[split{a, o}] = true
				}
			}

			var missing []int
			for s := range reached {
				if !alone[s] {
					missing = append(missing, s)
				}
			}
			sort.Ints(missing)
			for _, s := range missing {
				rep.Violations = append(rep.Violations, Violation{
					Node:    node.ID,
					Support: stateNames(p, node.Support),
					Action:  p.Actions[a],
					State:   p.States[s],
				})
			}
		}
	}
	rep.Revealing = len(rep.Violations) == 0
	return rep, ambiguous, nil
}

// postByObs maps each observation to the successor states it leaves possible.
func postByObs(dyn *pomdp.Dynamics, b belief.Support, a int) map[int][]int {
	groups := map[int][]int{}
	for _, ps := range b {
		for _, tr := range dyn.Step(ps, a) {
			groups[tr.Obs] = append(groups[tr.Obs], tr.Next.State)
		}
	}
	for o, states := range groups {
		groups[o] = pomdp.SortedUnique(states)
	}
	return groups
}

func stateNames(p *ports.POMDP, b belief.Support) []string {
	ids := b.States()
	out := make([]string, len(ids))
	for i, s := range ids {
		out[i] = p.States[s]
	}
	return out
}

// MakeStronglyRevealing returns a strongly revealing copy of p. If p already
// is, the copy is unchanged. Otherwise every (action, observation) pair that
// some reachable post-support shares between states is split: under that
// action each emitting state s' sends its mass to a fresh observation
// "<obs>|<s'>" instead. States, actions, transitions, the start
// distribution and state labels are kept as they are.
//
// When the result still fails the check it is returned together with a
// TransformationFailed error.
func MakeStronglyRevealing(ctx context.Context, p *ports.POMDP, opts Options) (*ports.POMDP, error) {
	const op = "revealing.MakeStronglyRevealing"
	rep, ambiguous, err := analyse(ctx, p, opts)
	if err != nil {
		return nil, err
	}
	out := pomdp.Clone(p)
	if rep.Revealing {
		return out, nil
	}

	keys := make([]split, 0, len(ambiguous))
	for k := range ambiguous {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].action != keys[j].action {
			return keys[i].action < keys[j].action
		}
		return keys[i].obs < keys[j].obs
	})

	fresh := map[string]int{}
	obsFor := func(o, s int) int {
		name := p.Observations[o] + "|" + p.States[s]
		if id, ok := fresh[name]; ok {
			return id
		}
		id := len(out.Observations)
		out.Observations = append(out.Observations, name)
		if out.ObsLabels != nil {
			out.ObsLabels = append(out.ObsLabels, append([]int(nil), p.ObsLabels[o]...))
		}
		fresh[name] = id
		return id
	}

	for _, k := range keys {
		for s := range p.States {
			row := out.Obs[k.action][s]
			mass := row.Prob(k.obs)
			if mass <= 0 {
				continue
			}
			moved := make(map[int]float64, len(row))
			for _, m := range row {
				if m.ID != k.obs {
					moved[m.ID] += m.P
				}
			}
			moved[obsFor(k.obs, s)] += mass
			out.Obs[k.action][s] = ports.DistFromMap(moved)
		}
	}

	after, _, err := analyse(ctx, out, opts)
	if err != nil {
		return nil, err
	}
	if !after.Revealing {
		return out, errors.Newf(errors.KindTransformationFailed, op,
			"%d violations remain after splitting %d observation pairs", len(after.Violations), len(keys)).
			WithAction(after.Violations[0].Action).WithState(after.Violations[0].State)
	}
	return out, nil
}
