package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/aswin/internal/adapters/modelfile"
	"github.com/corey/aswin/internal/app"
	"github.com/corey/aswin/internal/domain/modeltest"
	"github.com/corey/aswin/internal/errors"
)

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

// setupWorkspace writes the toy POMDP and the "F p0" automaton.
func setupWorkspace(t *testing.T) (dir, pomdpPath, autPath string) {
	t.Helper()
	dir = t.TempDir()
	pomdpPath = filepath.Join(dir, "toy.yaml")
	var sb strings.Builder
	require.NoError(t, modelfile.EncodePOMDP(&sb, modeltest.RevealingToy()))
	require.NoError(t, os.WriteFile(pomdpPath, []byte(sb.String()), 0644))
	autPath = filepath.Join(dir, "eventually.yaml")
	require.NoError(t, os.WriteFile(autPath, []byte(eventuallyDoc), 0644))
	return dir, pomdpPath, autPath
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append(args, "--no-color"))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSolveCommand(t *testing.T) {
	dir, pomdpPath, autPath := setupWorkspace(t)

	out, err := execute(t, "solve", "-C", dir, pomdpPath, autPath, "--strategy")
	require.NoError(t, err)
	assert.Contains(t, out, "revealing-toy × F p0")
	assert.Contains(t, out, "✗ losing")
	assert.Contains(t, out, "Winning states: L")
	assert.Contains(t, out, "Strategy")

	out, err = execute(t, "runs", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "revealing-toy")

	out, err = execute(t, "runs", "-C", dir, "revealing-toy", "--show", "latest")
	require.NoError(t, err)
	assert.Contains(t, out, "Supports:")
}

func TestSolveCommand_Explosion(t *testing.T) {
	dir, pomdpPath, autPath := setupWorkspace(t)

	_, err := execute(t, "solve", "-C", dir, pomdpPath, autPath, "--max-nodes", "1", "--no-store")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStateSpaceExplosion)
	assert.Contains(t, FormatError(err), "--max-nodes 2")
	rootCmd.PersistentFlags().Set("max-nodes", "0")
	rootCmd.PersistentFlags().Lookup("max-nodes").Changed = false
}

func TestRevealCommand(t *testing.T) {
	dir, pomdpPath, _ := setupWorkspace(t)

	out, err := execute(t, "reveal", "-C", dir, pomdpPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ strongly revealing")
}

func TestModelsFromArgs(t *testing.T) {
	m, err := modelsFromArgs([]string{"p.yaml", "a.yaml"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, app.Models{POMDPPath: "p.yaml", AutomatonPath: "a.yaml"}, m)

	m, err = modelsFromArgs([]string{"p.yaml"}, "F p0", "lib")
	require.NoError(t, err)
	assert.Equal(t, "F p0", m.Formula)
	assert.Equal(t, "lib", m.LibraryDir)

	_, err = modelsFromArgs([]string{"p.yaml"}, "F p0", "")
	assert.Error(t, err)
	_, err = modelsFromArgs([]string{"p.yaml", "a.yaml"}, "F p0", "lib")
	assert.Error(t, err)
	_, err = modelsFromArgs([]string{"p.yaml"}, "", "")
	assert.Error(t, err)
}

func TestFormatError(t *testing.T) {
	assert.Empty(t, FormatError(nil))

	ex := &errors.ExplosionError{NodesExplored: 1001, Limit: 1000, Reason: "max nodes"}
	msg := FormatError(fmt.Errorf("solve: %w", ex))
	assert.Contains(t, msg, "1001 belief supports explored, limit 1000")
	assert.Contains(t, msg, "--max-nodes 2000")

	slow := &errors.ExplosionError{NodesExplored: 5, Elapsed: 3 * time.Second, Reason: "timeout"}
	assert.Contains(t, FormatError(slow), "--timeout 6s")

	bad := errors.Newf(errors.KindMalformedPOMDP, "pomdp.Validate", "mass %.2f", 0.5)
	assert.Contains(t, FormatError(bad), "must sum to 1")

	assert.Equal(t, "error: plain", FormatError(errors.New("plain")))
}

func TestFormatSolve_Plain(t *testing.T) {
	st := newStyles(false)
	assert.Equal(t, "✓ winning", verdict(st, true))
	assert.Equal(t, "(none)", stateList(st, nil))
	assert.Equal(t, "a b", stateList(st, []string{"a", "b"}))
}
