package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/corey/aswin/internal/adapters/fsnotify"
	"github.com/corey/aswin/internal/adapters/modelfile"
	"github.com/corey/aswin/internal/ports"
)

// WatchFunc receives the outcome of each re-solve triggered by a change.
// res is nil when err is set.
type WatchFunc func(path string, res *SolveResult, err error)

// watchSession holds the automaton shared by every re-solve in one Watch.
type watchSession struct {
	app     *App
	autPath string
	onRun   WatchFunc
	tmpl    SolveRequest

	mu  sync.Mutex
	aut *ports.Automaton
}

// Watch re-solves every POMDP document under dir when it changes, against
// the automaton at automatonPath. Edits to the automaton itself reload it.
// Deleted documents are skipped. Blocks until ctx is done.
func (a *App) Watch(ctx context.Context, dir, automatonPath string, onRun WatchFunc) error {
	return a.WatchWith(ctx, dir, automatonPath, SolveRequest{}, onRun)
}

// WatchWith is Watch with solve options taken from tmpl. The Models of tmpl
// are ignored.
func (a *App) WatchWith(ctx context.Context, dir, automatonPath string, tmpl SolveRequest, onRun WatchFunc) error {
	if onRun == nil {
		onRun = func(string, *SolveResult, error) {}
	}
	autAbs, err := filepath.Abs(automatonPath)
	if err != nil {
		return err
	}
	aut, err := modelfile.LoadAutomaton(autAbs)
	if err != nil {
		return err
	}
	tmpl.Models = Models{}

	s := &watchSession{app: a, autPath: autAbs, onRun: onRun, tmpl: tmpl, aut: aut}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer w.Stop()
	if err := w.Watch(dir, s.onChange); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	a.Logger.WithPhase("watch").Info("watching", "dir", dir, "automaton", aut.Name)

	<-ctx.Done()
	return nil
}

func (s *watchSession) onChange(path string) {
	log := s.app.Logger.WithPhase("watch")
	if _, err := os.Stat(path); err != nil {
		log.Debug("skipping removed document", "path", path)
		return
	}

	if path == s.autPath {
		aut, err := modelfile.LoadAutomaton(path)
		if err != nil {
			log.Warn("automaton reload failed", "path", path, "err", err.Error())
			s.onRun(path, nil, err)
			return
		}
		s.mu.Lock()
		s.aut = aut
		s.mu.Unlock()
		log.Info("automaton reloaded", "automaton", aut.Name)
		return
	}

	s.mu.Lock()
	aut := s.aut
	s.mu.Unlock()

	req := s.tmpl
	req.Models = Models{POMDPPath: path, Automaton: aut}
	res, err := s.app.Solve(context.Background(), req)
	s.onRun(path, res, err)
}
