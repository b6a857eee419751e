// Package modelfile reads and writes POMDP and automaton documents.
//
// Documents are YAML; JSON is accepted too since yaml.v3 parses it as a
// YAML subset. Structural requirements are declared as validator tags and
// checked before the document is converted to the ports types, so a
// document that decodes always names known states, actions and
// observations. Probability sums are checked afterwards by pomdp.Validate.
package modelfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/corey/aswin/internal/domain/automaton"
	"github.com/corey/aswin/internal/domain/pomdp"
	"github.com/corey/aswin/internal/errors"
	"github.com/corey/aswin/internal/ports"
)

// Wildcard matches every state or action in transitions and observe rows.
const Wildcard = "*"

var validate = validator.New(validator.WithRequiredStructEnabled())

const (
	opDecodePOMDP     = "modelfile.DecodePOMDP"
	opDecodeAutomaton = "modelfile.DecodeAutomaton"
)

// pomdpDoc is the document form of a POMDP.
type pomdpDoc struct {
	Name         string              `yaml:"name,omitempty"`
	States       []string            `yaml:"states" validate:"required,min=1,unique,dive,required"`
	Actions      []string            `yaml:"actions" validate:"required,min=1,unique,dive,required"`
	Observations []string            `yaml:"observations" validate:"required,min=1,unique,dive,required"`
	Props        []string            `yaml:"props,omitempty" validate:"omitempty,unique,dive,required"`
	Start        map[string]float64  `yaml:"start" validate:"required,min=1,dive,gte=0,lte=1"`
	Transitions  []transitionDoc     `yaml:"transitions" validate:"required,min=1,dive"`
	Observe      []observeDoc        `yaml:"observe" validate:"required,min=1,dive"`
	Labels       map[string][]string `yaml:"labels,omitempty"`
	ObsLabels    map[string][]string `yaml:"obs_labels,omitempty"`
}

type transitionDoc struct {
	From   string  `yaml:"from" validate:"required"`
	Action string  `yaml:"action" validate:"required"`
	To     string  `yaml:"to" validate:"required"`
	P      float64 `yaml:"p" validate:"gt=0,lte=1"`
}

type observeDoc struct {
	Action string  `yaml:"action" validate:"required"`
	State  string  `yaml:"state" validate:"required"`
	Obs    string  `yaml:"obs" validate:"required"`
	P      float64 `yaml:"p" validate:"gt=0,lte=1"`
}

// automatonDoc is the document form of a parity automaton.
type automatonDoc struct {
	Name       string         `yaml:"name,omitempty"`
	Formula    string         `yaml:"formula,omitempty"`
	States     []string       `yaml:"states" validate:"required,min=1,unique,dive,required"`
	Initial    string         `yaml:"initial" validate:"required"`
	Props      []string       `yaml:"props,omitempty" validate:"omitempty,unique,dive,required"`
	Priorities map[string]int `yaml:"priorities,omitempty" validate:"omitempty,dive,gte=0,lte=2"`
	Edges      []edgeDoc      `yaml:"edges" validate:"required,min=1,dive"`
}

type edgeDoc struct {
	From     string     `yaml:"from" validate:"required"`
	To       string     `yaml:"to" validate:"required"`
	Priority int        `yaml:"priority" validate:"gte=0,lte=2"`
	Guard    [][]string `yaml:"guard" validate:"required,min=1"`
}

// LoadPOMDP reads a POMDP document. The model is named after the file when
// the document has no name.
func LoadPOMDP(path string) (*ports.POMDP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	p, err := DecodePOMDP(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = baseName(path)
	}
	return p, nil
}

// LoadAutomaton reads an automaton document. The automaton is named after
// its formula, or the file, when the document has no name.
func LoadAutomaton(path string) (*ports.Automaton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	aut, _, err := decodeAutomaton(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if aut.Name == "" {
		aut.Name = baseName(path)
	}
	return aut, nil
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DecodePOMDP parses and validates a POMDP document.
func DecodePOMDP(r io.Reader) (*ports.POMDP, error) {
	var doc pomdpDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.KindMalformedPOMDP, opDecodePOMDP, err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, errors.Wrap(errors.KindMalformedPOMDP, opDecodePOMDP, err)
	}
	p, err := doc.model()
	if err != nil {
		return nil, err
	}
	if err := pomdp.Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *pomdpDoc) model() (*ports.POMDP, error) {
	p := &ports.POMDP{
		Name:         d.Name,
		States:       d.States,
		Actions:      d.Actions,
		Observations: d.Observations,
		Props:        d.Props,
	}
	if p.Props == nil {
		p.Props = []string{}
	}
	nS, nA := len(p.States), len(p.Actions)
	states, actions := index(p.States), index(p.Actions)
	obs, props := index(p.Observations), index(p.Props)

	malformed := func(format string, args ...any) *errors.Error {
		return errors.Newf(errors.KindMalformedPOMDP, opDecodePOMDP, format, args...)
	}

	start := make(map[int]float64, len(d.Start))
	for name, prob := range d.Start {
		s, ok := states[name]
		if !ok {
			return nil, malformed("start names unknown state %q", name)
		}
		start[s] = prob
	}
	p.Start = ports.DistFromMap(start)

	trans := make([][]map[int]float64, nS)
	for s := range trans {
		trans[s] = make([]map[int]float64, nA)
		for a := range trans[s] {
			trans[s][a] = map[int]float64{}
		}
	}
	for i, t := range d.Transitions {
		froms, ok := expand(t.From, states, nS)
		if !ok {
			return nil, malformed("transition %d: unknown state %q", i, t.From).WithState(t.From)
		}
		acts, ok := expand(t.Action, actions, nA)
		if !ok {
			return nil, malformed("transition %d: unknown action %q", i, t.Action).WithAction(t.Action)
		}
		to, ok := states[t.To]
		if !ok {
			return nil, malformed("transition %d: unknown target %q", i, t.To).WithState(t.To)
		}
		for _, s := range froms {
			for _, a := range acts {
				trans[s][a][to] += t.P
			}
		}
	}
	p.Trans = make([][]ports.Dist, nS)
	for s := range trans {
		p.Trans[s] = make([]ports.Dist, nA)
		for a := range trans[s] {
			p.Trans[s][a] = ports.DistFromMap(trans[s][a])
		}
	}

	emit := make([][]map[int]float64, nA)
	for a := range emit {
		emit[a] = make([]map[int]float64, nS)
		for s := range emit[a] {
			emit[a][s] = map[int]float64{}
		}
	}
	for i, o := range d.Observe {
		acts, ok := expand(o.Action, actions, nA)
		if !ok {
			return nil, malformed("observe %d: unknown action %q", i, o.Action).WithAction(o.Action)
		}
		targets, ok := expand(o.State, states, nS)
		if !ok {
			return nil, malformed("observe %d: unknown state %q", i, o.State).WithState(o.State)
		}
		id, ok := obs[o.Obs]
		if !ok {
			return nil, malformed("observe %d: unknown observation %q", i, o.Obs).WithObservation(o.Obs)
		}
		for _, a := range acts {
			for _, s := range targets {
				emit[a][s][id] += o.P
			}
		}
	}
	p.Obs = make([][]ports.Dist, nA)
	for a := range emit {
		p.Obs[a] = make([]ports.Dist, nS)
		for s := range emit[a] {
			p.Obs[a][s] = ports.DistFromMap(emit[a][s])
		}
	}

	p.Labels = make([][]int, nS)
	for s := range p.Labels {
		p.Labels[s] = []int{}
	}
	for name, names := range d.Labels {
		s, ok := states[name]
		if !ok {
			return nil, malformed("labels name unknown state %q", name).WithState(name)
		}
		ids, err := propIDs(names, props)
		if err != nil {
			return nil, malformed("labels: %v", err).WithState(name)
		}
		p.Labels[s] = ids
	}

	if d.ObsLabels != nil {
		p.ObsLabels = make([][]int, len(p.Observations))
		for o := range p.ObsLabels {
			p.ObsLabels[o] = []int{}
		}
		for name, names := range d.ObsLabels {
			o, ok := obs[name]
			if !ok {
				return nil, malformed("obs_labels name unknown observation %q", name).WithObservation(name)
			}
			ids, err := propIDs(names, props)
			if err != nil {
				return nil, malformed("obs_labels: %v", err).WithObservation(name)
			}
			p.ObsLabels[o] = ids
		}
	}
	return p, nil
}

func index(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, n := range names {
		m[n] = i
	}
	return m
}

// expand resolves a name, or the wildcard, to ids.
func expand(name string, ids map[string]int, n int) ([]int, bool) {
	if name == Wildcard {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, true
	}
	id, ok := ids[name]
	if !ok {
		return nil, false
	}
	return []int{id}, true
}

func propIDs(names []string, props map[string]int) ([]int, error) {
	ids := make([]int, 0, len(names))
	for _, n := range names {
		id, ok := props[n]
		if !ok {
			return nil, fmt.Errorf("unknown proposition %q", n)
		}
		ids = append(ids, id)
	}
	return pomdp.SortedUnique(ids), nil
}

// EncodePOMDP writes p as a document that DecodePOMDP reads back to an
// equal model.
func EncodePOMDP(w io.Writer, p *ports.POMDP) error {
	doc := pomdpDoc{
		Name:         p.Name,
		States:       p.States,
		Actions:      p.Actions,
		Observations: p.Observations,
		Props:        p.Props,
		Start:        make(map[string]float64, len(p.Start)),
	}
	for _, m := range p.Start {
		doc.Start[p.States[m.ID]] = m.P
	}
	for s, row := range p.Trans {
		for a, dist := range row {
			for _, m := range dist {
				doc.Transitions = append(doc.Transitions, transitionDoc{
					From: p.States[s], Action: p.Actions[a], To: p.States[m.ID], P: m.P,
				})
			}
		}
	}
	for a, row := range p.Obs {
		for s, dist := range row {
			for _, m := range dist {
				doc.Observe = append(doc.Observe, observeDoc{
					Action: p.Actions[a], State: p.States[s], Obs: p.Observations[m.ID], P: m.P,
				})
			}
		}
	}
	doc.Labels = labelMap(p.Labels, p.States, p.Props)
	if p.ObsLabels != nil {
		doc.ObsLabels = labelMap(p.ObsLabels, p.Observations, p.Props)
		if doc.ObsLabels == nil {
			doc.ObsLabels = map[string][]string{}
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode %s: %w", p.Name, err)
	}
	return enc.Close()
}

func labelMap(labels [][]int, names, props []string) map[string][]string {
	var out map[string][]string
	for i, ids := range labels {
		if len(ids) == 0 {
			continue
		}
		if out == nil {
			out = map[string][]string{}
		}
		for _, id := range ids {
			out[names[i]] = append(out[names[i]], props[id])
		}
	}
	return out
}

// DecodeAutomaton parses and validates an automaton document.
func DecodeAutomaton(r io.Reader) (*ports.Automaton, error) {
	aut, _, err := decodeAutomaton(r)
	return aut, err
}

// decodeAutomaton also returns the formula the document declares, if any.
func decodeAutomaton(r io.Reader) (*ports.Automaton, string, error) {
	var doc automatonDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, "", errors.Wrap(errors.KindMalformedAutomaton, opDecodeAutomaton, err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, "", errors.Wrap(errors.KindMalformedAutomaton, opDecodeAutomaton, err)
	}
	aut, err := doc.model()
	if err != nil {
		return nil, "", err
	}
	if err := automaton.Validate(aut); err != nil {
		return nil, "", err
	}
	return aut, normalizeFormula(doc.Formula), nil
}

func (d *automatonDoc) model() (*ports.Automaton, error) {
	malformed := func(format string, args ...any) *errors.Error {
		return errors.Newf(errors.KindMalformedAutomaton, opDecodeAutomaton, format, args...)
	}

	aut := &ports.Automaton{
		Name:   d.Name,
		States: d.States,
		Props:  d.Props,
	}
	if aut.Name == "" {
		aut.Name = normalizeFormula(d.Formula)
	}
	if aut.Props == nil {
		aut.Props = []string{}
	}
	states, props := index(aut.States), index(aut.Props)

	q0, ok := states[d.Initial]
	if !ok {
		return nil, malformed("unknown initial state %q", d.Initial).WithAutState(d.Initial)
	}
	aut.Initial = q0

	if d.Priorities != nil {
		aut.StatePriority = make([]int, len(aut.States))
		for i, name := range aut.States {
			prio, ok := d.Priorities[name]
			if !ok {
				return nil, malformed("state has no priority").WithAutState(name)
			}
			aut.StatePriority[i] = prio
		}
		for name := range d.Priorities {
			if _, ok := states[name]; !ok {
				return nil, malformed("priority for unknown state %q", name).WithAutState(name)
			}
		}
	}

	for i, e := range d.Edges {
		from, ok := states[e.From]
		if !ok {
			return nil, malformed("edge %d: unknown state %q", i, e.From).WithAutState(e.From)
		}
		to, ok := states[e.To]
		if !ok {
			return nil, malformed("edge %d: unknown state %q", i, e.To).WithAutState(e.To)
		}
		guard := make(ports.Guard, 0, len(e.Guard))
		for _, literals := range e.Guard {
			cube := ports.Cube{}
			for _, lit := range literals {
				name, want := strings.TrimPrefix(lit, "!"), !strings.HasPrefix(lit, "!")
				id, ok := props[name]
				if !ok {
					return nil, malformed("edge %d: unknown proposition %q", i, name).WithAutState(e.From)
				}
				if prev, seen := cube[id]; seen && prev != want {
					return nil, malformed("edge %d: contradictory literal %q", i, lit).WithAutState(e.From)
				}
				cube[id] = want
			}
			guard = append(guard, cube)
		}
		aut.Edges = append(aut.Edges, ports.Edge{From: from, To: to, Priority: e.Priority, Guard: guard})
	}
	return aut, nil
}

// normalizeFormula collapses whitespace so lookups ignore formatting.
func normalizeFormula(f string) string {
	return strings.Join(strings.Fields(f), " ")
}
