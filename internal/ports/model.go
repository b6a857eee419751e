package ports

import "sort"

// Tolerance is the slack allowed when checking that a distribution sums to 1.
const Tolerance = 1e-6

// Mass is one entry of a finite probability distribution.
type Mass struct {
	ID int
	P  float64
}

// Dist is a sparse distribution over integer ids, sorted by ID.
// Entries with zero mass are never stored.
type Dist []Mass

// Sum returns the total probability mass.
func (d Dist) Sum() float64 {
	total := 0.0
	for _, m := range d {
		total += m.P
	}
	return total
}

// Prob returns the mass on id (0 when absent).
func (d Dist) Prob(id int) float64 {
	i := sort.Search(len(d), func(i int) bool { return d[i].ID >= id })
	if i < len(d) && d[i].ID == id {
		return d[i].P
	}
	return 0
}

// Support returns the ids carrying positive mass, in ascending order.
func (d Dist) Support() []int {
	out := make([]int, 0, len(d))
	for _, m := range d {
		if m.P > 0 {
			out = append(out, m.ID)
		}
	}
	return out
}

// DistFromMap builds a sorted Dist, dropping non-positive entries.
func DistFromMap(m map[int]float64) Dist {
	d := make(Dist, 0, len(m))
	for id, p := range m {
		if p > 0 {
			d = append(d, Mass{ID: id, P: p})
		}
	}
	sort.Slice(d, func(i, j int) bool { return d[i].ID < d[j].ID })
	return d
}

// POMDP is a finite partially observable Markov decision process.
//
// Trans is indexed [state][action] and gives the distribution over next
// states. Obs is indexed [action][next state] and gives the distribution over
// observations emitted on arrival. Labels maps each state to the atomic
// propositions (indices into Props) that hold there. ObsLabels, when set,
// labels observations instead and switches the product to observation-based
// automaton updates.
type POMDP struct {
	Name         string
	States       []string
	Actions      []string
	Observations []string
	Props        []string

	Trans [][]Dist
	Obs   [][]Dist
	Start Dist

	Labels    [][]int
	ObsLabels [][]int
}

// Cube is a conjunction of literals: proposition id -> required value.
// An empty cube is true.
type Cube map[int]bool

// Guard is a disjunction of cubes. An empty guard is false.
type Guard []Cube

// Edge is one guarded automaton transition.
type Edge struct {
	From     int
	To       int
	Priority int
	Guard    Guard
}

// Automaton is an edge-labelled parity automaton with priorities in {0,1,2}
// under the max-even acceptance rule. When StatePriority is set the
// acceptance is state-based and edge priorities are ignored.
type Automaton struct {
	Name          string
	States        []string
	Initial       int
	Props         []string
	Edges         []Edge
	StatePriority []int
}

// ProductState pairs a POMDP state with an automaton state. Raw POMDP
// exploration uses Aut = 0 throughout.
type ProductState struct {
	State int
	Aut   int
}

// Less orders product states by POMDP state, then automaton state.
func (p ProductState) Less(o ProductState) bool {
	if p.State != o.State {
		return p.State < o.State
	}
	return p.Aut < o.Aut
}

// Transition is one joint (successor, observation) outcome of an action.
type Transition struct {
	Next ProductState
	Obs  int
	P    float64
}

// Dynamics is the single capability the belief-support explorer needs:
// given a (product) state and an action, yield the successor distribution
// paired with observations. Implemented by the raw POMDP and by the
// POMDP x automaton product.
type Dynamics interface {
	NumActions() int
	ActionName(a int) string
	Initial() []ProductState
	Step(s ProductState, action int) []Transition
	Priority(s ProductState) int
	Name(s ProductState) string
}

// Translator converts a temporal-logic formula into a completed,
// deterministic parity automaton. Implementations wrap an external automata
// library; the core never translates formulas itself.
type Translator interface {
	Translate(formula string, props []string) (*Automaton, error)
}
