package modelfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/corey/aswin/internal/errors"
	"github.com/corey/aswin/internal/ports"
)

const opTranslate = "modelfile.Library.Translate"

// Library is a ports.Translator over automata translated ahead of time.
// Each automaton document in the library directory declares the formula it
// recognises; Translate looks the formula up instead of running an automata
// tool.
type Library struct {
	byFormula map[string]*ports.Automaton
	source    map[string]string // formula → file
}

// NewLibrary loads every automaton document in dir that declares a formula.
// Documents without a formula are skipped. Two documents declaring the same
// formula are an error.
func NewLibrary(dir string) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read library %q: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	lib := &Library{
		byFormula: make(map[string]*ports.Automaton),
		source:    make(map[string]string),
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		aut, formula, err := decodeAutomaton(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if formula == "" {
			continue
		}
		if prev, ok := lib.source[formula]; ok {
			return nil, fmt.Errorf("duplicate formula %q (first in %s, again in %s)", formula, prev, entry.Name())
		}
		lib.byFormula[formula] = aut
		lib.source[formula] = entry.Name()
	}
	return lib, nil
}

// Formulas lists the formulas the library can translate, sorted.
func (l *Library) Formulas() []string {
	out := make([]string, 0, len(l.byFormula))
	for f := range l.byFormula {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Translate returns the automaton stored for formula. Every proposition the
// automaton reads must be one of props.
func (l *Library) Translate(formula string, props []string) (*ports.Automaton, error) {
	key := normalizeFormula(formula)
	aut, ok := l.byFormula[key]
	if !ok {
		return nil, errors.Newf(errors.KindMalformedAutomaton, opTranslate,
			"no automaton for formula %q in library", key)
	}
	known := index(props)
	for _, name := range aut.Props {
		if _, ok := known[name]; !ok {
			return nil, errors.Newf(errors.KindMalformedAutomaton, opTranslate,
				"formula %q reads proposition %q the model does not define", key, name)
		}
	}
	return aut, nil
}

var _ ports.Translator = (*Library)(nil)
