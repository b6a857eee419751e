package modelfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/aswin/internal/domain/modeltest"
	"github.com/corey/aswin/internal/errors"
)

const toyDoc = `
name: revealing-toy
states: [L, R]
actions: [wait]
observations: [obsL, obsR]
props: [p0]
start: {L: 0.5, R: 0.5}
transitions:
  - {from: "*", action: wait, to: L, p: 1}
observe:
  - {action: "*", state: L, obs: obsL, p: 1}
  - {action: "*", state: R, obs: obsR, p: 1}
labels: {L: [p0]}
`

const eventuallyDoc = `
formula: "F   p0"
states: [q0, q1]
initial: q0
props: [p0]
priorities: {q0: 1, q1: 2}
edges:
  - {from: q0, to: q0, priority: 1, guard: [["!p0"]]}
  - {from: q0, to: q1, priority: 2, guard: [[p0]]}
  - {from: q1, to: q1, priority: 2, guard: [[]]}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDecodePOMDP_Toy(t *testing.T) {
	doc := strings.Replace(toyDoc, `{from: "*", action: wait, to: L, p: 1}`,
		"{from: L, action: wait, to: L, p: 1}\n  - {from: R, action: wait, to: R, p: 1}", 1)

	p, err := DecodePOMDP(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, modeltest.RevealingToy(), p)
}

func TestDecodePOMDP_JSON(t *testing.T) {
	doc := `{
  "states": ["a"], "actions": ["x"], "observations": ["o"],
  "start": {"a": 1},
  "transitions": [{"from": "a", "action": "x", "to": "a", "p": 1}],
  "observe": [{"action": "x", "state": "a", "obs": "o", "p": 1}]
}`
	p, err := DecodePOMDP(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, p.States)
	assert.Equal(t, []string{}, p.Props)
	assert.Equal(t, [][]int{{}}, p.Labels)
	assert.Nil(t, p.ObsLabels)
}

func TestDecodePOMDP_ObsLabels(t *testing.T) {
	doc := toyDoc + "obs_labels: {obsL: [p0]}\n"
	p, err := DecodePOMDP(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0}, {}}, p.ObsLabels)
}

func TestDecodePOMDP_Malformed(t *testing.T) {
	cases := map[string]string{
		"not yaml":        "states: [",
		"empty":           "",
		"missing states":  strings.Replace(toyDoc, "states: [L, R]", "", 1),
		"duplicate state": strings.Replace(toyDoc, "states: [L, R]", "states: [L, L]", 1),
		"bad probability": strings.Replace(toyDoc, "to: L, p: 1", "to: L, p: 2", 1),
		"unknown target":  strings.Replace(toyDoc, "to: L, p: 1", "to: X, p: 1", 1),
		"unknown action":  strings.Replace(toyDoc, "action: wait, to", "action: jump, to", 1),
		"unknown obs":     strings.Replace(toyDoc, "obs: obsR", "obs: obsX", 1),
		"unknown label":   strings.Replace(toyDoc, "{L: [p0]}", "{L: [p9]}", 1),
		"unknown start":   strings.Replace(toyDoc, "{L: 0.5, R: 0.5}", "{L: 0.5, Z: 0.5}", 1),
		"mass too small":  strings.Replace(toyDoc, "{L: 0.5, R: 0.5}", "{L: 0.5, R: 0.4}", 1),
		"missing row":     strings.Replace(toyDoc, "  - {action: \"*\", state: R, obs: obsR, p: 1}\n", "", 1),
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePOMDP(strings.NewReader(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrMalformedPOMDP), "got %v", err)
		})
	}
}

func TestDecodePOMDP_ErrorNamesState(t *testing.T) {
	doc := strings.Replace(toyDoc, `{from: "*", action: wait, to: L, p: 1}`,
		"{from: L, action: wait, to: L, p: 1}\n  - {from: R, action: wait, to: R, p: 0.5}", 1)
	_, err := DecodePOMDP(strings.NewReader(doc))
	require.Error(t, err)

	var perr *errors.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "R", perr.State)
	assert.Equal(t, "wait", perr.Action)
}

func TestEncodePOMDP_Roundtrip(t *testing.T) {
	tiger := modeltest.Tiger()
	var buf bytes.Buffer
	require.NoError(t, EncodePOMDP(&buf, tiger))

	back, err := DecodePOMDP(&buf)
	require.NoError(t, err)
	assert.Equal(t, tiger, back)

	withObs := modeltest.RevealingToy()
	withObs.ObsLabels = [][]int{{0}, {}}
	buf.Reset()
	require.NoError(t, EncodePOMDP(&buf, withObs))
	assert.Contains(t, buf.String(), "obs_labels:")
	back, err = DecodePOMDP(&buf)
	require.NoError(t, err)
	assert.Equal(t, withObs, back)
}

func TestLoadPOMDP_NamesFromFile(t *testing.T) {
	dir := t.TempDir()
	doc := strings.Replace(toyDoc, "name: revealing-toy\n", "", 1)
	path := writeFile(t, dir, "corridor.yaml", doc)

	p, err := LoadPOMDP(path)
	require.NoError(t, err)
	assert.Equal(t, "corridor", p.Name)

	_, err = LoadPOMDP(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDecodeAutomaton_Eventually(t *testing.T) {
	aut, err := DecodeAutomaton(strings.NewReader(eventuallyDoc))
	require.NoError(t, err)
	assert.Equal(t, modeltest.Eventually("p0"), aut)
}

func TestDecodeAutomaton_EdgePriorities(t *testing.T) {
	doc := strings.Replace(eventuallyDoc, "priorities: {q0: 1, q1: 2}\n", "", 1)
	aut, err := DecodeAutomaton(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Nil(t, aut.StatePriority)
	assert.Equal(t, 2, aut.Edges[1].Priority)
}

func TestDecodeAutomaton_Malformed(t *testing.T) {
	cases := map[string]string{
		"no edges":         "states: [q]\ninitial: q\n",
		"unknown initial":  strings.Replace(eventuallyDoc, "initial: q0", "initial: qx", 1),
		"unknown prop":     strings.Replace(eventuallyDoc, `[["!p0"]]`, `[["!p1"]]`, 1),
		"contradiction":    strings.Replace(eventuallyDoc, `[["!p0"]]`, `[["!p0", p0]]`, 1),
		"bad priority":     strings.Replace(eventuallyDoc, "{q0: 1, q1: 2}", "{q0: 1, q1: 3}", 1),
		"missing priority": strings.Replace(eventuallyDoc, "{q0: 1, q1: 2}", "{q0: 1}", 1),
		"incomplete":       strings.Replace(eventuallyDoc, `[["!p0"]]`, `[[p0]]`, 1),
		"empty guard":      strings.Replace(eventuallyDoc, `guard: [[]]`, `guard: []`, 1),
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeAutomaton(strings.NewReader(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrMalformedAutomaton), "got %v", err)
		})
	}
}

func TestLibrary_Translate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "eventually.yaml", eventuallyDoc)
	writeFile(t, dir, "unnamed.yaml", strings.Replace(eventuallyDoc, `formula: "F   p0"`, "", 1))
	writeFile(t, dir, "notes.txt", "ignored")

	lib, err := NewLibrary(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"F p0"}, lib.Formulas())

	aut, err := lib.Translate(" F p0 ", []string{"p0", "p1"})
	require.NoError(t, err)
	assert.Equal(t, "F p0", aut.Name)

	_, err = lib.Translate("G p0", []string{"p0"})
	assert.True(t, errors.Is(err, errors.ErrMalformedAutomaton))

	_, err = lib.Translate("F p0", []string{"other"})
	assert.True(t, errors.Is(err, errors.ErrMalformedAutomaton))
}

func TestLibrary_DuplicateFormula(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", eventuallyDoc)
	writeFile(t, dir, "b.yml", eventuallyDoc)

	_, err := NewLibrary(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate formula")
}
