package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/aswin/internal/adapters/modelfile"
	"github.com/corey/aswin/internal/config"
	"github.com/corey/aswin/internal/domain/modeltest"
	"github.com/corey/aswin/internal/domain/status"
	"github.com/corey/aswin/internal/errors"
)

// newTestApp creates an App in a temp workspace with logs captured in memory.
func newTestApp(t *testing.T, tweak func(*config.Config)) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	if tweak != nil {
		tweak(cfg)
	}
	var logs bytes.Buffer
	a, err := New(Config{Workspace: t.TempDir(), Settings: cfg, LogWriter: &logs})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, &logs
}

func toyRequest() SolveRequest {
	return SolveRequest{Models: Models{
		POMDP:     modeltest.RevealingToy(),
		Automaton: modeltest.Eventually("p0"),
	}}
}

func TestNew_RequiresWorkspace(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Explore.Workers = 0
	_, err := New(Config{Workspace: t.TempDir(), Settings: cfg, LogWriter: &bytes.Buffer{}})
	assert.Error(t, err)
}

func TestNew_LoadsConfigFile(t *testing.T) {
	ws := t.TempDir()
	paths := NewPaths(ws)
	require.NoError(t, paths.EnsureDirs())
	require.NoError(t, os.WriteFile(paths.Config, []byte("explore:\n  max_nodes: 7\n"), 0644))

	a, err := New(Config{Workspace: ws, LogWriter: &bytes.Buffer{}})
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, 7, a.Settings.Explore.MaxNodes)
	assert.NotNil(t, a.Store)
}

func TestClose_Idempotent(t *testing.T) {
	a, _ := newTestApp(t, nil)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestSolve_Toy(t *testing.T) {
	a, logs := newTestApp(t, nil)

	out, err := a.Solve(context.Background(), toyRequest())
	require.NoError(t, err)
	require.True(t, out.Stored)

	run := out.Run
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "revealing-toy", run.Model)
	assert.Equal(t, 3, run.Nodes)
	assert.Equal(t, []string{"L"}, run.WinningStates)
	assert.False(t, run.InitialWinning)

	stored, err := a.Run("revealing-toy", run.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, run.WinningStates, stored.WinningStates)

	sd, err := a.LastStatus()
	require.NoError(t, err)
	require.NotNil(t, sd)
	assert.Equal(t, status.ResultLosing, sd.Result)
	assert.Equal(t, run.ID, sd.RunID)
	assert.Equal(t, []string{"L"}, sd.TopStates)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.Runs.WithLabelValues(status.ResultLosing)))
	assert.Equal(t, 3.0, testutil.ToFloat64(a.Metrics.ExploredNodes))
	assert.Contains(t, logs.String(), "solve finished")
}

func TestSolve_Winning(t *testing.T) {
	a, _ := newTestApp(t, nil)

	out, err := a.Solve(context.Background(), SolveRequest{Models: Models{
		POMDP:     modeltest.Ring(4),
		Automaton: modeltest.Eventually("home"),
	}})
	require.NoError(t, err)
	assert.True(t, out.Run.InitialWinning)
	assert.Len(t, out.Run.WinningStates, 4)

	sd, err := a.LastStatus()
	require.NoError(t, err)
	assert.Equal(t, status.ResultWinning, sd.Result)
}

func TestSolve_NoStore(t *testing.T) {
	a, _ := newTestApp(t, nil)
	req := toyRequest()
	req.NoStore = true

	out, err := a.Solve(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, out.Stored)

	runs, err := a.Runs("revealing-toy")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSolve_StorageDisabled(t *testing.T) {
	a, _ := newTestApp(t, func(c *config.Config) { c.Storage.Enabled = false })
	assert.Nil(t, a.Store)

	out, err := a.Solve(context.Background(), toyRequest())
	require.NoError(t, err)
	assert.False(t, out.Stored)

	_, err = a.Runs("revealing-toy")
	assert.ErrorIs(t, err, ErrStorageDisabled)
	_, err = a.Models()
	assert.ErrorIs(t, err, ErrStorageDisabled)
	assert.ErrorIs(t, a.DeleteRuns("revealing-toy"), ErrStorageDisabled)
}

func TestSolve_Explosion(t *testing.T) {
	a, _ := newTestApp(t, func(c *config.Config) { c.Explore.MaxNodes = 2 })

	_, err := a.Solve(context.Background(), SolveRequest{Models: Models{
		POMDP:     modeltest.Ring(8),
		Automaton: modeltest.Eventually("home"),
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStateSpaceExplosion)

	var ex *errors.ExplosionError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, float64(ex.NodesExplored), testutil.ToFloat64(a.Metrics.ExploredNodes))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.Runs.WithLabelValues(status.ResultFailed)))

	sd, err := a.LastStatus()
	require.NoError(t, err)
	assert.Equal(t, status.ResultFailed, sd.Result)
	assert.Equal(t, "ring-8", sd.Model)
	assert.NotEmpty(t, sd.Error)
}

func TestSolve_MissingModel(t *testing.T) {
	a, _ := newTestApp(t, nil)

	_, err := a.Solve(context.Background(), SolveRequest{Models: Models{
		POMDPPath: filepath.Join(t.TempDir(), "gone.yaml"),
		Automaton: modeltest.Eventually("p0"),
	}})
	require.Error(t, err)

	sd, err := a.LastStatus()
	require.NoError(t, err)
	assert.Equal(t, "gone", sd.Model)
}

func TestSolve_FromFiles(t *testing.T) {
	a, _ := newTestApp(t, nil)
	dir := t.TempDir()

	pomdpPath := filepath.Join(dir, "toy.yaml")
	f, err := os.Create(pomdpPath)
	require.NoError(t, err)
	require.NoError(t, modelfile.EncodePOMDP(f, modeltest.RevealingToy()))
	require.NoError(t, f.Close())

	lib := filepath.Join(dir, "automata")
	require.NoError(t, os.Mkdir(lib, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(lib, "eventually.yaml"), []byte(eventuallyDoc), 0644))

	out, err := a.Solve(context.Background(), SolveRequest{Models: Models{
		POMDPPath:  pomdpPath,
		Formula:    "F p0",
		LibraryDir: lib,
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"L"}, out.Run.WinningStates)
}

func TestModels_NoAutomaton(t *testing.T) {
	_, _, err := Models{POMDP: modeltest.RevealingToy()}.load()
	assert.Error(t, err)

	_, _, err = Models{POMDP: modeltest.RevealingToy(), Formula: "F p0"}.load()
	assert.Error(t, err)
}

func TestRuns_History(t *testing.T) {
	a, _ := newTestApp(t, nil)
	ctx := context.Background()

	first, err := a.Solve(ctx, toyRequest())
	require.NoError(t, err)
	second, err := a.Solve(ctx, toyRequest())
	require.NoError(t, err)

	runs, err := a.Runs("revealing-toy")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.Run.ID, runs[0].ID)
	assert.Equal(t, second.Run.ID, runs[1].ID)

	latest, err := a.LatestRun("revealing-toy")
	require.NoError(t, err)
	assert.Equal(t, second.Run.ID, latest.ID)

	models, err := a.Models()
	require.NoError(t, err)
	assert.Equal(t, []string{"revealing-toy"}, models)

	require.NoError(t, a.DeleteRuns("revealing-toy"))
	runs, err = a.Runs("revealing-toy")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestExplore_Toy(t *testing.T) {
	a, _ := newTestApp(t, nil)

	out, err := a.Explore(context.Background(), ExploreRequest{Models: toyRequest().Models})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Stats.Nodes)
	assert.Equal(t, 0, out.Stats.Frontier)
	assert.Equal(t, 3.0, testutil.ToFloat64(a.Metrics.ExploredNodes))
}

func TestExplore_MaxDepth(t *testing.T) {
	a, _ := newTestApp(t, nil)

	out, err := a.Explore(context.Background(), ExploreRequest{
		Models:   Models{POMDP: modeltest.Ring(6), Automaton: modeltest.Eventually("home")},
		MaxDepth: 1,
	})
	require.NoError(t, err)
	assert.Positive(t, out.Stats.Frontier)
	assert.LessOrEqual(t, out.Stats.MaxDepth, 1)
}

func TestReveal_CheckOnly(t *testing.T) {
	a, _ := newTestApp(t, nil)

	res, err := a.Reveal(context.Background(), RevealRequest{POMDP: modeltest.RevealingToy()})
	require.NoError(t, err)
	assert.True(t, res.Report.Revealing)
	assert.Nil(t, res.Transformed)
	assert.Empty(t, res.OutputPath)
}

func TestReveal_Transform(t *testing.T) {
	a, _ := newTestApp(t, nil)

	res, err := a.Reveal(context.Background(), RevealRequest{
		POMDP:     modeltest.NeverRevealing(),
		Transform: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Report.Revealing)
	assert.NoError(t, res.TransformErr)
	require.NotNil(t, res.Transformed)
	assert.Equal(t, "never-revealing-revealing", res.Transformed.Name)
	assert.Equal(t, filepath.Join(a.Paths.OutDir, "never-revealing-revealing.yaml"), res.OutputPath)

	written, err := modelfile.LoadPOMDP(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, res.Transformed.Observations, written.Observations)
	for _, o := range written.Observations[1:] {
		assert.True(t, strings.HasPrefix(o, "o|"), o)
	}

	again, err := a.Reveal(context.Background(), RevealRequest{POMDPPath: res.OutputPath})
	require.NoError(t, err)
	assert.True(t, again.Report.Revealing)
}

func TestReveal_CustomOutput(t *testing.T) {
	a, _ := newTestApp(t, nil)
	out := filepath.Join(t.TempDir(), "fixed.yaml")

	res, err := a.Reveal(context.Background(), RevealRequest{
		POMDP:     modeltest.NeverRevealing(),
		Transform: true,
		Output:    out,
	})
	require.NoError(t, err)
	assert.Equal(t, out, res.OutputPath)
	assert.FileExists(t, out)
}

func TestMetricsFile(t *testing.T) {
	metrics := filepath.Join(t.TempDir(), "aswin.prom")
	a, _ := newTestApp(t, func(c *config.Config) { c.Telemetry.MetricsFile = metrics })

	_, err := a.Solve(context.Background(), toyRequest())
	require.NoError(t, err)

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `aswin_runs_total{result="losing"} 1`)
	assert.Contains(t, string(data), "aswin_stage_duration_seconds")
}

const eventuallyDoc = `
formula: "F p0"
states: [q0, q1]
initial: q0
props: [p0]
priorities: {q0: 1, q1: 2}
edges:
  - {from: q0, to: q0, priority: 1, guard: [["!p0"]]}
  - {from: q0, to: q1, priority: 2, guard: [[p0]]}
  - {from: q1, to: q1, priority: 2, guard: [[]]}
`
