// Package app wires together all adapters and domain logic.
// It provides the operations behind every aswin command: solve, explore,
// reveal, watch and run history.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/corey/aswin/internal/adapters/bbolt"
	"github.com/corey/aswin/internal/adapters/modelfile"
	"github.com/corey/aswin/internal/adapters/telemetry"
	"github.com/corey/aswin/internal/config"
	"github.com/corey/aswin/internal/domain/belief"
	"github.com/corey/aswin/internal/domain/product"
	"github.com/corey/aswin/internal/domain/status"
	"github.com/corey/aswin/internal/domain/synthesis"
	"github.com/corey/aswin/internal/errors"
	"github.com/corey/aswin/internal/logging"
	"github.com/corey/aswin/internal/ports"
)

// ErrStorageDisabled is returned by run-history operations when storage is off.
var ErrStorageDisabled = errors.New("run storage is disabled (storage.enabled=false)")

// App is the top-level container wiring all components together.
type App struct {
	Workspace string
	Paths     *Paths
	Settings  *config.Config

	Store   ports.RunStore // nil when storage is disabled
	Logger  *logging.Logger
	Metrics *Metrics
	Tracer  *telemetry.Tracer

	mu        sync.Mutex // serializes solves (watch callbacks race with each other)
	closeOnce sync.Once
	closers   []func() error
	now       func() time.Time
}

// Config holds initialization parameters for the App.
type Config struct {
	Workspace string         // directory holding .aswin/ (required)
	Settings  *config.Config // nil = config.Load(.aswin/)

	LogWriter   io.Writer      // optional: logs go here instead of .aswin/log/
	TraceWriter io.Writer      // stdout span exporter destination (default: os.Stdout)
	Store       ports.RunStore // optional: overrides the bbolt store
}

// New creates an App with all dependencies wired.
func New(cfg Config) (*App, error) {
	if cfg.Workspace == "" {
		return nil, fmt.Errorf("workspace required")
	}
	paths := NewPaths(cfg.Workspace)
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create %s: %w", paths.Root, err)
	}
	if _, err := paths.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", paths.Root, err)
	}

	settings := cfg.Settings
	if settings == nil {
		loaded, err := config.Load(paths.Root)
		if err != nil {
			return nil, err
		}
		settings = loaded
	} else if err := settings.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		Workspace: cfg.Workspace,
		Paths:     paths,
		Settings:  settings,
		Metrics:   NewMetrics(),
		now:       time.Now,
	}

	if cfg.LogWriter != nil {
		a.Logger = logging.NewWriterLogger(cfg.LogWriter, settings.Logging.Level)
	} else {
		logger, err := logging.NewLogger(paths.LogDir, settings.Logging.Level)
		if err != nil {
			return nil, err
		}
		a.Logger = logger
	}
	a.closers = append(a.closers, a.Logger.Close)

	traceOut := cfg.TraceWriter
	if traceOut == nil {
		traceOut = os.Stdout
	}
	tracer, err := telemetry.New(settings.Telemetry.Trace, "aswin", traceOut)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Tracer = tracer
	a.closers = append(a.closers, func() error { return tracer.Shutdown(context.Background()) })

	switch {
	case cfg.Store != nil:
		a.Store = cfg.Store
	case settings.Storage.Enabled:
		store, err := bbolt.NewStore(paths.DB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
	}
	return a, nil
}

// Close flushes spans and releases the store and log file. Safe to call
// multiple times.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// Models names the inputs of a solve. Preloaded models take precedence over
// paths. The automaton comes from AutomatonPath, or from Formula looked up in
// the automaton library at LibraryDir.
type Models struct {
	POMDPPath     string
	AutomatonPath string
	Formula       string
	LibraryDir    string

	POMDP     *ports.POMDP
	Automaton *ports.Automaton
}

func (m Models) load() (*ports.POMDP, *ports.Automaton, error) {
	p := m.POMDP
	if p == nil {
		if m.POMDPPath == "" {
			return nil, nil, fmt.Errorf("no POMDP given")
		}
		loaded, err := modelfile.LoadPOMDP(m.POMDPPath)
		if err != nil {
			return nil, nil, err
		}
		p = loaded
	}

	aut := m.Automaton
	switch {
	case aut != nil:
	case m.AutomatonPath != "":
		loaded, err := modelfile.LoadAutomaton(m.AutomatonPath)
		if err != nil {
			return nil, nil, err
		}
		aut = loaded
	case m.Formula != "":
		if m.LibraryDir == "" {
			return nil, nil, fmt.Errorf("formula %q needs an automaton library", m.Formula)
		}
		lib, err := modelfile.NewLibrary(m.LibraryDir)
		if err != nil {
			return nil, nil, err
		}
		translated, err := lib.Translate(m.Formula, p.Props)
		if err != nil {
			return nil, nil, err
		}
		aut = translated
	default:
		return nil, nil, fmt.Errorf("no automaton given (path or formula)")
	}
	return p, aut, nil
}

// modelName names the POMDP before it is loaded.
func (m Models) modelName() string {
	if m.POMDP != nil {
		return m.POMDP.Name
	}
	return baseName(m.POMDPPath)
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SolveRequest configures one solve.
type SolveRequest struct {
	Models
	LabelMode      product.LabelMode
	CheckRevealing bool
	NoStore        bool
}

// SolveResult is the outcome of Solve.
type SolveResult struct {
	Run    *ports.Run
	Result *synthesis.Result
	Stored bool
}

func (a *App) budget() belief.Budget {
	return belief.Budget{
		MaxNodes: a.Settings.Explore.MaxNodes,
		Timeout:  a.Settings.Explore.Timeout,
	}
}

// Solve runs the full pipeline, stores the run and updates status.json.
func (a *App) Solve(ctx context.Context, req SolveRequest) (*SolveResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.now()
	p, aut, err := req.load()
	if err != nil {
		a.fail(req.modelName(), err, start)
		return nil, err
	}
	log := a.Logger.WithModel(p.Name)

	ctx, end := a.Tracer.Start(ctx, "solve",
		attribute.String("aswin.model", p.Name),
		attribute.String("aswin.automaton", aut.Name))
	res, err := synthesis.Run(ctx, p, aut, synthesis.Options{
		Budget:         a.budget(),
		Workers:        a.Settings.Explore.Workers,
		LabelMode:      req.LabelMode,
		CheckRevealing: req.CheckRevealing,
		Lookahead:      a.Settings.Reveal.Lookahead,
		Logger:         log,
		Observe: func(stage string, d time.Duration) {
			a.Metrics.ObserveStage(stage, d)
			a.Tracer.RecordStage(ctx, stage, d)
		},
	})
	end(err)
	if err != nil {
		var ex *errors.ExplosionError
		if errors.As(err, &ex) {
			a.Metrics.ExploredNodes.Set(float64(ex.NodesExplored))
		}
		log.Error("solve failed", "err", err.Error())
		a.fail(p.Name, err, start)
		return nil, err
	}

	run := res.ToRun()
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	run.ID = id.String()
	run.CreatedAt = start
	run.Elapsed = a.now().Sub(start)

	out := &SolveResult{Run: run, Result: res}
	if a.Store != nil && !req.NoStore {
		if err := a.Store.SaveRun(run.Model, run); err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
		out.Stored = true
	}

	sd := status.Generate(run, res.Warnings)
	a.Metrics.ExploredNodes.Set(float64(run.Nodes))
	a.Metrics.Runs.WithLabelValues(sd.Result).Inc()
	a.writeStatus(sd)
	a.dumpMetrics()

	log.Info("solve finished",
		"run", run.ID, "result", sd.Result, "nodes", run.Nodes,
		"winning_states", len(run.WinningStates), "elapsed", run.Elapsed.String())
	return out, nil
}

// fail records a failed solve in metrics and status.json.
func (a *App) fail(model string, err error, at time.Time) {
	a.Metrics.Runs.WithLabelValues(status.ResultFailed).Inc()
	a.writeStatus(status.Failed(model, err, at.Unix()))
	a.dumpMetrics()
}

func (a *App) writeStatus(sd *status.StatusData) {
	if err := status.WriteJSON(a.Paths.Status, sd); err != nil {
		a.Logger.Warn("write status failed", "path", a.Paths.Status, "err", err.Error())
	}
}

func (a *App) dumpMetrics() {
	path := a.Settings.Telemetry.MetricsFile
	if path == "" {
		return
	}
	if err := a.Metrics.WriteTextfile(path); err != nil {
		a.Logger.Warn("write metrics failed", "path", path, "err", err.Error())
	}
}

// LastStatus returns the summary of the most recent solve, or nil if none ran.
func (a *App) LastStatus() (*status.StatusData, error) {
	return status.ReadJSON(a.Paths.Status)
}
