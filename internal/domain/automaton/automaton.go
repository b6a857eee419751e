// Package automaton evaluates and checks deterministic parity automata with
// guarded edges and priorities in {0,1,2}.
package automaton

import (
	"fmt"
	"sort"
	"strings"

	"github.com/corey/aswin/internal/errors"
	"github.com/corey/aswin/internal/ports"
)

// MaxProps bounds the number of propositions Validate will enumerate.
const MaxProps = 20

// MaxPriority is the largest priority accepted on edges and states.
const MaxPriority = 2

// Eval reports whether valuation satisfies g. Propositions beyond the end of
// valuation read as false.
func Eval(g ports.Guard, valuation []bool) bool {
	for _, cube := range g {
		if evalCube(cube, valuation) {
			return true
		}
	}
	return false
}

func evalCube(c ports.Cube, valuation []bool) bool {
	for ap, want := range c {
		got := ap < len(valuation) && valuation[ap]
		if got != want {
			return false
		}
	}
	return true
}

// Valuation converts a list of true proposition ids into a dense valuation.
func Valuation(trueProps []int, n int) []bool {
	v := make([]bool, n)
	for _, ap := range trueProps {
		if ap >= 0 && ap < n {
			v[ap] = true
		}
	}
	return v
}

// Step returns the target and edge priority of the unique edge leaving q
// whose guard holds for the given true propositions.
func Step(aut *ports.Automaton, q int, trueProps []int) (to, priority int, err error) {
	v := Valuation(trueProps, len(aut.Props))
	match := -1
	for i, e := range aut.Edges {
		if e.From != q || !Eval(e.Guard, v) {
			continue
		}
		if match >= 0 {
			return 0, 0, errors.Newf(errors.KindMalformedAutomaton, "automaton.Step",
				"nondeterministic on %s", formatValuation(aut.Props, v)).WithAutState(aut.States[q])
		}
		match = i
	}
	if match < 0 {
		return 0, 0, errors.Newf(errors.KindMalformedAutomaton, "automaton.Step",
			"no edge for %s", formatValuation(aut.Props, v)).WithAutState(aut.States[q])
	}
	return aut.Edges[match].To, aut.Edges[match].Priority, nil
}

// Validate checks indices and priorities, then enumerates every valuation of
// the propositions used in guards to confirm each state has exactly one
// enabled edge.
func Validate(aut *ports.Automaton) error {
	const op = "automaton.Validate"
	if aut == nil || len(aut.States) == 0 {
		return errors.Newf(errors.KindMalformedAutomaton, op, "automaton has no states")
	}
	n := len(aut.States)
	if aut.Initial < 0 || aut.Initial >= n {
		return errors.Newf(errors.KindMalformedAutomaton, op, "initial state %d out of range", aut.Initial)
	}
	if aut.StatePriority != nil {
		if len(aut.StatePriority) != n {
			return errors.Newf(errors.KindMalformedAutomaton, op,
				"state priorities cover %d states, want %d", len(aut.StatePriority), n)
		}
		for q, p := range aut.StatePriority {
			if p < 0 || p > MaxPriority {
				return errors.Newf(errors.KindMalformedAutomaton, op, "priority %d outside {0,1,2}", p).
					WithAutState(aut.States[q])
			}
		}
	}

	used := map[int]bool{}
	for i, e := range aut.Edges {
		if e.From < 0 || e.From >= n || e.To < 0 || e.To >= n {
			return errors.Newf(errors.KindMalformedAutomaton, op, "edge %d references unknown state", i)
		}
		if e.Priority < 0 || e.Priority > MaxPriority {
			return errors.Newf(errors.KindMalformedAutomaton, op, "edge %d priority %d outside {0,1,2}", i, e.Priority).
				WithAutState(aut.States[e.From])
		}
		for _, cube := range e.Guard {
			for ap := range cube {
				if ap < 0 || ap >= len(aut.Props) {
					return errors.Newf(errors.KindMalformedAutomaton, op, "edge %d uses unknown proposition %d", i, ap).
						WithAutState(aut.States[e.From])
				}
				used[ap] = true
			}
		}
	}
	if len(used) > MaxProps {
		return errors.Newf(errors.KindMalformedAutomaton, op,
			"%d propositions in guards, at most %d supported", len(used), MaxProps)
	}

	aps := make([]int, 0, len(used))
	for ap := range used {
		aps = append(aps, ap)
	}
	sort.Ints(aps)

	outgoing := make([][]ports.Edge, n)
	for _, e := range aut.Edges {
		outgoing[e.From] = append(outgoing[e.From], e)
	}

	v := make([]bool, len(aut.Props))
	for q := 0; q < n; q++ {
		for mask := 0; mask < 1<<len(aps); mask++ {
			for i, ap := range aps {
				v[ap] = mask&(1<<i) != 0
			}
			enabled := 0
			for _, e := range outgoing[q] {
				if Eval(e.Guard, v) {
					enabled++
				}
			}
			switch {
			case enabled == 0:
				return errors.Newf(errors.KindMalformedAutomaton, op, "incomplete: no edge for %s",
					formatValuation(aut.Props, v)).WithAutState(aut.States[q])
			case enabled > 1:
				return errors.Newf(errors.KindMalformedAutomaton, op, "nondeterministic: %d edges for %s",
					enabled, formatValuation(aut.Props, v)).WithAutState(aut.States[q])
			}
		}
	}
	return nil
}

func formatValuation(props []string, v []bool) string {
	parts := make([]string, len(props))
	for i, name := range props {
		if i < len(v) && v[i] {
			parts[i] = name
		} else {
			parts[i] = "!" + name
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Normalize returns an equivalent automaton with state-based priorities.
// When StatePriority is already set the result is a copy. Otherwise every
// state q is split into copies q@p, one per priority p of an edge entering
// it; the initial copy carries priority 0. Only copies reachable from the
// initial one are kept.
func Normalize(aut *ports.Automaton) *ports.Automaton {
	if aut.StatePriority != nil {
		return clone(aut)
	}

	type key struct{ q, p int }
	ids := map[key]int{}
	var order []key
	add := func(k key) int {
		if id, ok := ids[k]; ok {
			return id
		}
		id := len(order)
		ids[k] = id
		order = append(order, k)
		return id
	}

	outgoing := make([][]ports.Edge, len(aut.States))
	for _, e := range aut.Edges {
		outgoing[e.From] = append(outgoing[e.From], e)
	}

	out := &ports.Automaton{
		Name:  aut.Name,
		Props: append([]string(nil), aut.Props...),
	}
	out.Initial = add(key{aut.Initial, 0})
	for i := 0; i < len(order); i++ {
		k := order[i]
		for _, e := range outgoing[k.q] {
			to := add(key{e.To, e.Priority})
			out.Edges = append(out.Edges, ports.Edge{
				From: i, To: to, Priority: e.Priority, Guard: cloneGuard(e.Guard),
			})
		}
	}
	out.States = make([]string, len(order))
	out.StatePriority = make([]int, len(order))
	for i, k := range order {
		out.States[i] = fmt.Sprintf("%s@%d", aut.States[k.q], k.p)
		out.StatePriority[i] = k.p
	}
	return out
}

func clone(aut *ports.Automaton) *ports.Automaton {
	out := &ports.Automaton{
		Name:          aut.Name,
		States:        append([]string(nil), aut.States...),
		Initial:       aut.Initial,
		Props:         append([]string(nil), aut.Props...),
		StatePriority: append([]int(nil), aut.StatePriority...),
		Edges:         make([]ports.Edge, len(aut.Edges)),
	}
	for i, e := range aut.Edges {
		e.Guard = cloneGuard(e.Guard)
		out.Edges[i] = e
	}
	return out
}

func cloneGuard(g ports.Guard) ports.Guard {
	if g == nil {
		return nil
	}
	out := make(ports.Guard, len(g))
	for i, c := range g {
		cube := make(ports.Cube, len(c))
		for ap, v := range c {
			cube[ap] = v
		}
		out[i] = cube
	}
	return out
}

// PropIndex maps each name in props to its index in aut.Props, or -1 when
// the automaton does not mention it.
func PropIndex(aut *ports.Automaton, props []string) []int {
	byName := make(map[string]int, len(aut.Props))
	for i, name := range aut.Props {
		byName[name] = i
	}
	out := make([]int, len(props))
	for i, name := range props {
		if id, ok := byName[name]; ok {
			out[i] = id
		} else {
			out[i] = -1
		}
	}
	return out
}
