package app

import (
	"os"
	"path/filepath"

	"github.com/corey/aswin/internal/config"
	"github.com/corey/aswin/internal/domain/status"
	"github.com/corey/aswin/internal/logging"
)

// DataDirName is the per-workspace data directory.
const DataDirName = ".aswin"

// Paths holds all resolved filesystem paths for the .aswin/ directory.
type Paths struct {
	Root   string // .aswin/
	DB     string // .aswin/aswin.db
	Status string // .aswin/status.json
	Config string // .aswin/config.yaml

	LogDir string // .aswin/log/
	Log    string // .aswin/log/aswin.log

	OutDir string // .aswin/out/ (transformed models)
}

// NewPaths constructs all resolved paths from a workspace root directory.
func NewPaths(workspace string) *Paths {
	root := filepath.Join(workspace, DataDirName)
	return &Paths{
		Root:   root,
		DB:     filepath.Join(root, "aswin.db"),
		Status: filepath.Join(root, status.StatusFile),
		Config: config.File(root),

		LogDir: filepath.Join(root, "log"),
		Log:    filepath.Join(root, "log", logging.LogFile),

		OutDir: filepath.Join(root, "out"),
	}
}

// EnsureDirs creates all subdirectories under .aswin/. Idempotent.
func (p *Paths) EnsureDirs() error {
	for _, d := range []string{p.Root, p.LogDir, p.OutDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Migrate moves a log file left at the top of .aswin/ into log/. Returns the
// number of files moved. Idempotent: skips if the source is missing or the
// destination already exists.
func (p *Paths) Migrate() (int, error) {
	oldPath := filepath.Join(p.Root, logging.LogFile)
	if _, err := os.Stat(oldPath); err != nil {
		return 0, nil
	}
	if _, err := os.Stat(p.Log); err == nil {
		return 0, nil
	}
	if err := os.Rename(oldPath, p.Log); err != nil {
		return 0, err
	}
	return 1, nil
}
