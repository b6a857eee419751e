package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaths(t *testing.T) {
	p := NewPaths("/work")
	assert.Equal(t, filepath.Join("/work", ".aswin"), p.Root)
	assert.Equal(t, filepath.Join("/work", ".aswin", "aswin.db"), p.DB)
	assert.Equal(t, filepath.Join("/work", ".aswin", "status.json"), p.Status)
	assert.Equal(t, filepath.Join("/work", ".aswin", "config.yaml"), p.Config)
	assert.Equal(t, filepath.Join("/work", ".aswin", "log"), p.LogDir)
	assert.Equal(t, filepath.Join("/work", ".aswin", "log", "aswin.log"), p.Log)
	assert.Equal(t, filepath.Join("/work", ".aswin", "out"), p.OutDir)
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	p := NewPaths(dir)

	// First call creates directories.
	require.NoError(t, p.EnsureDirs())
	for _, d := range []string{p.Root, p.LogDir, p.OutDir} {
		info, err := os.Stat(d)
		require.NoError(t, err, "dir %s should exist", d)
		assert.True(t, info.IsDir())
	}

	// Second call is idempotent.
	require.NoError(t, p.EnsureDirs())
}

func TestMigrate_FreshInstall(t *testing.T) {
	p := NewPaths(t.TempDir())
	require.NoError(t, p.EnsureDirs())

	count, err := p.Migrate()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMigrate_FlatLog(t *testing.T) {
	p := NewPaths(t.TempDir())
	require.NoError(t, p.EnsureDirs())
	require.NoError(t, os.WriteFile(filepath.Join(p.Root, "aswin.log"), []byte("old"), 0644))

	count, err := p.Migrate()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	data, err := os.ReadFile(p.Log)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	// Second call: source gone -> count=0.
	count, err = p.Migrate()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMigrate_NoOverwrite(t *testing.T) {
	p := NewPaths(t.TempDir())
	require.NoError(t, p.EnsureDirs())
	require.NoError(t, os.WriteFile(filepath.Join(p.Root, "aswin.log"), []byte("old"), 0644))
	require.NoError(t, os.WriteFile(p.Log, []byte("new"), 0644))

	count, err := p.Migrate()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	data, err := os.ReadFile(p.Log)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}
