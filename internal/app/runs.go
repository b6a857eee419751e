package app

import "github.com/corey/aswin/internal/ports"

// Models lists every model with stored runs.
func (a *App) Models() ([]string, error) {
	if a.Store == nil {
		return nil, ErrStorageDisabled
	}
	return a.Store.Models()
}

// Runs lists the stored runs of a model, oldest first.
func (a *App) Runs(model string) ([]ports.RunSummary, error) {
	if a.Store == nil {
		return nil, ErrStorageDisabled
	}
	return a.Store.ListRuns(model)
}

// Run loads one stored run. Returns nil, nil if it does not exist.
func (a *App) Run(model, id string) (*ports.Run, error) {
	if a.Store == nil {
		return nil, ErrStorageDisabled
	}
	return a.Store.LoadRun(model, id)
}

// LatestRun loads the most recent run of a model.
func (a *App) LatestRun(model string) (*ports.Run, error) {
	if a.Store == nil {
		return nil, ErrStorageDisabled
	}
	return a.Store.LatestRun(model)
}

// DeleteRuns removes every stored run of a model.
func (a *App) DeleteRuns(model string) error {
	if a.Store == nil {
		return ErrStorageDisabled
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Logger.WithModel(model).Info("runs deleted")
	return a.Store.DeleteModel(model)
}
