package automaton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/aswin/internal/domain/modeltest"
	"github.com/corey/aswin/internal/errors"
	"github.com/corey/aswin/internal/ports"
)

func TestEval(t *testing.T) {
	g := ports.Guard{{0: true, 1: false}, {2: true}}

	assert.True(t, Eval(g, []bool{true, false, false}))
	assert.True(t, Eval(g, []bool{false, true, true}))
	assert.False(t, Eval(g, []bool{true, true, false}))
	assert.True(t, Eval(g, []bool{true}), "missing propositions read as false")

	assert.False(t, Eval(nil, []bool{true}), "empty guard is false")
	assert.True(t, Eval(ports.Guard{{}}, nil), "empty cube is true")
}

func TestValidate_Fixtures(t *testing.T) {
	for _, aut := range []*ports.Automaton{
		modeltest.Eventually("p0"),
		modeltest.Always("safe"),
		modeltest.Trivial(2),
	} {
		assert.NoError(t, Validate(aut), aut.Name)
	}
}

func TestValidate_Incomplete(t *testing.T) {
	aut := modeltest.Eventually("p0")
	aut.Edges = aut.Edges[1:] // q0 has no edge for !p0

	err := Validate(aut)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMalformedAutomaton))

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "q0", e.AutState)
	assert.Contains(t, err.Error(), "{!p0}")
}

func TestValidate_Nondeterministic(t *testing.T) {
	aut := modeltest.Eventually("p0")
	aut.Edges = append(aut.Edges, ports.Edge{From: 1, To: 0, Priority: 1, Guard: ports.Guard{{0: true}}})

	err := Validate(aut)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nondeterministic")
	assert.Contains(t, err.Error(), "aut=q1")
}

func TestValidate_BadPriority(t *testing.T) {
	aut := modeltest.Trivial(3)
	aut.StatePriority = nil
	assert.True(t, errors.Is(Validate(aut), errors.ErrMalformedAutomaton))

	aut = modeltest.Trivial(0)
	aut.StatePriority = []int{4}
	assert.True(t, errors.Is(Validate(aut), errors.ErrMalformedAutomaton))
}

func TestStep(t *testing.T) {
	aut := modeltest.Eventually("p0")

	to, prio, err := Step(aut, 0, []int{0})
	require.NoError(t, err)
	assert.Equal(t, 1, to)
	assert.Equal(t, 2, prio)

	to, prio, err = Step(aut, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, to)
	assert.Equal(t, 1, prio)

	broken := modeltest.Eventually("p0")
	broken.Edges = broken.Edges[:1]
	_, _, err = Step(broken, 0, []int{0})
	assert.True(t, errors.Is(err, errors.ErrMalformedAutomaton))
}

func TestNormalize_KeepsStatePriorities(t *testing.T) {
	aut := modeltest.Eventually("p0")
	norm := Normalize(aut)
	assert.Equal(t, aut, norm)

	norm.Edges[0].Guard[0][0] = true
	assert.False(t, aut.Edges[0].Guard[0][0], "normalize must not alias guards")
}

func TestNormalize_SplitsByIncomingPriority(t *testing.T) {
	// Edge-based "GF p": every p-edge has priority 2, others 1.
	aut := &ports.Automaton{
		States: []string{"q"},
		Props:  []string{"p"},
		Edges: []ports.Edge{
			{From: 0, To: 0, Priority: 2, Guard: ports.Guard{{0: true}}},
			{From: 0, To: 0, Priority: 1, Guard: ports.Guard{{0: false}}},
		},
	}
	require.NoError(t, Validate(aut))

	norm := Normalize(aut)
	require.NoError(t, Validate(norm))
	assert.Equal(t, []string{"q@0", "q@2", "q@1"}, norm.States)
	assert.Equal(t, []int{0, 2, 1}, norm.StatePriority)
	assert.Equal(t, 0, norm.Initial)

	to, _, err := Step(norm, 2, []int{0})
	require.NoError(t, err)
	assert.Equal(t, "q@2", norm.States[to])
}

func TestPropIndex(t *testing.T) {
	aut := &ports.Automaton{Props: []string{"b", "a"}}
	assert.Equal(t, []int{1, -1, 0}, PropIndex(aut, []string{"a", "c", "b"}))
}
