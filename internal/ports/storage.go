// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Domain logic depends
// only on these interfaces and plain data types, never on concrete implementations.
package ports

import "time"

// RunStore persists solver runs to durable storage.
// The backing store (bbolt) is model-scoped: each model name gets its own
// namespace. Concurrent reads are safe; writes are serialized by the adapter.
//
// Crash safety: SaveRun must be transactional. A crash mid-write must not
// corrupt previously committed runs.
type RunStore interface {
	// SaveRun persists one run under the given model name.
	SaveRun(model string, run *Run) error

	// LoadRun retrieves a run by id. Returns nil, nil if it does not exist.
	LoadRun(model, id string) (*Run, error)

	// LatestRun returns the most recently stored run for a model.
	// Returns nil, nil if the model has no runs.
	LatestRun(model string) (*Run, error)

	// ListRuns returns summaries of every stored run, oldest first.
	ListRuns(model string) ([]RunSummary, error)

	// Models lists every model with stored runs.
	Models() ([]string, error)

	// DeleteModel removes all runs for a model.
	// Idempotent: deleting a nonexistent model is not an error.
	DeleteModel(model string) error
}

// Run is the persisted outcome of one solve.
type Run struct {
	ID        string
	Model     string
	Automaton string
	CreatedAt time.Time
	Elapsed   time.Duration

	Nodes          int
	Edges          int
	InitialWinning bool
	WinningStates  []string
	WinningNodes   []int

	// Supports holds the belief support of every node, indexed by node id.
	Supports [][]ProductState
	Strategy []StrategyEntry
}

// StrategyEntry records the choice at one winning belief-support node.
type StrategyEntry struct {
	Node    int
	Actions []string
	Uniform bool // true inside a good end component
}

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	ID             string
	CreatedAt      time.Time
	Nodes          int
	InitialWinning bool
	Winning        int
}
