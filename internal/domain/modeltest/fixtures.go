// Package modeltest builds small POMDPs and automata shared by tests across
// the domain packages.
package modeltest

import (
	"fmt"

	"github.com/corey/aswin/internal/ports"
)

func point(id int) ports.Dist { return ports.Dist{{ID: id, P: 1}} }

// RevealingToy has states L and R that never move under the single action
// "wait" and always emit obsL or obsR. Proposition p0 holds in L only.
func RevealingToy() *ports.POMDP {
	return &ports.POMDP{
		Name:         "revealing-toy",
		States:       []string{"L", "R"},
		Actions:      []string{"wait"},
		Observations: []string{"obsL", "obsR"},
		Props:        []string{"p0"},
		Trans: [][]ports.Dist{
			{point(0)},
			{point(1)},
		},
		Obs: [][]ports.Dist{
			{point(0), point(1)},
		},
		Start:  ports.Dist{{ID: 0, P: 0.5}, {ID: 1, P: 0.5}},
		Labels: [][]int{{0}, {}},
	}
}

// NeverRevealing is RevealingToy with a single observation "o" emitted
// everywhere.
func NeverRevealing() *ports.POMDP {
	p := RevealingToy()
	p.Name = "never-revealing"
	p.Observations = []string{"o"}
	p.Obs = [][]ports.Dist{{point(0), point(0)}}
	return p
}

// Ring has n states on a cycle. "cw" and "ccw" move one step with
// probability 0.9 and stay put otherwise. State s0 emits "home"; the others
// emit "even" or "odd" by index. Proposition "home" holds in s0.
func Ring(n int) *ports.POMDP {
	p := &ports.POMDP{
		Name:         fmt.Sprintf("ring-%d", n),
		Actions:      []string{"cw", "ccw"},
		Observations: []string{"home", "even", "odd"},
		Props:        []string{"home"},
	}
	p.States = make([]string, n)
	p.Trans = make([][]ports.Dist, n)
	p.Labels = make([][]int, n)
	start := make(map[int]float64, n)
	for s := 0; s < n; s++ {
		p.States[s] = fmt.Sprintf("s%d", s)
		cw, ccw := (s+1)%n, (s+n-1)%n
		p.Trans[s] = []ports.Dist{
			ports.DistFromMap(map[int]float64{s: 0.1, cw: 0.9}),
			ports.DistFromMap(map[int]float64{s: 0.1, ccw: 0.9}),
		}
		p.Labels[s] = []int{}
		start[s] = 1 / float64(n)
	}
	p.Labels[0] = []int{0}
	p.Start = ports.DistFromMap(start)

	emit := make([]ports.Dist, n)
	for s := 0; s < n; s++ {
		switch {
		case s == 0:
			emit[s] = point(0)
		case s%2 == 0:
			emit[s] = point(1)
		default:
			emit[s] = point(2)
		}
	}
	p.Obs = [][]ports.Dist{emit, emit}
	return p
}

// Tiger is the classic two-door problem. "listen" reports the tiger's side
// correctly with probability 0.85; opening a door resets the tiger
// uniformly. Proposition "safe" holds in neither state and is never set.
func Tiger() *ports.POMDP {
	reset := ports.Dist{{ID: 0, P: 0.5}, {ID: 1, P: 0.5}}
	noisy := func(correct int) ports.Dist {
		d := ports.Dist{{ID: 0, P: 0.15}, {ID: 1, P: 0.15}}
		d[correct].P = 0.85
		return d
	}
	return &ports.POMDP{
		Name:         "tiger",
		States:       []string{"tiger-left", "tiger-right"},
		Actions:      []string{"listen", "open-left", "open-right"},
		Observations: []string{"hear-left", "hear-right"},
		Props:        []string{"safe"},
		Trans: [][]ports.Dist{
			{point(0), reset, reset},
			{point(1), reset, reset},
		},
		Obs: [][]ports.Dist{
			{noisy(0), noisy(1)},
			{reset, reset},
			{reset, reset},
		},
		Start:  reset,
		Labels: [][]int{{}, {}},
	}
}

// Eventually is a state-based parity automaton for "F prop": q0 (priority 1)
// waits for prop, q1 (priority 2) is an accepting sink.
func Eventually(prop string) *ports.Automaton {
	return &ports.Automaton{
		Name:    "F " + prop,
		States:  []string{"q0", "q1"},
		Initial: 0,
		Props:   []string{prop},
		Edges: []ports.Edge{
			{From: 0, To: 0, Priority: 1, Guard: ports.Guard{{0: false}}},
			{From: 0, To: 1, Priority: 2, Guard: ports.Guard{{0: true}}},
			{From: 1, To: 1, Priority: 2, Guard: ports.Guard{{}}},
		},
		StatePriority: []int{1, 2},
	}
}

// Always is a state-based automaton for "G prop": q0 (priority 0) while prop
// holds, q1 (priority 1) a rejecting sink once it fails.
func Always(prop string) *ports.Automaton {
	return &ports.Automaton{
		Name:    "G " + prop,
		States:  []string{"q0", "q1"},
		Initial: 0,
		Props:   []string{prop},
		Edges: []ports.Edge{
			{From: 0, To: 0, Priority: 0, Guard: ports.Guard{{0: true}}},
			{From: 0, To: 1, Priority: 1, Guard: ports.Guard{{0: false}}},
			{From: 1, To: 1, Priority: 1, Guard: ports.Guard{{}}},
		},
		StatePriority: []int{0, 1},
	}
}

// Trivial is a one-state automaton with a true self-loop of priority p.
func Trivial(p int) *ports.Automaton {
	return &ports.Automaton{
		Name:          fmt.Sprintf("trivial-%d", p),
		States:        []string{"q"},
		Edges:         []ports.Edge{{Priority: p, Guard: ports.Guard{{}}}},
		StatePriority: []int{p},
	}
}
