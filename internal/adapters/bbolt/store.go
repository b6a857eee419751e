// Package bbolt implements ports.RunStore using bbolt (embedded B+ tree).
// Each model gets its own top-level bucket. Within it, the "runs" sub-bucket
// holds gob-encoded run headers and the "supports" sub-bucket holds the
// belief-support table of each run in a compact binary form. Both are keyed
// by run id; ids are time-ordered, so cursor order is creation order. Writes
// are transactional: a crash mid-write cannot corrupt committed runs.
package bbolt

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/corey/aswin/internal/ports"
)

// Bucket keys
var (
	bucketRuns     = []byte("runs")
	bucketSupports = []byte("supports")
)

// Store implements ports.RunStore backed by bbolt.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) a bbolt database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// runHeader is the gob-encoded part of a run. Supports are stored apart
// because they dominate the size.
type runHeader struct {
	ID             string
	Model          string
	Automaton      string
	CreatedAt      time.Time
	Elapsed        time.Duration
	Nodes          int
	Edges          int
	InitialWinning bool
	WinningStates  []string
	WinningNodes   []int
	Strategy       []ports.StrategyEntry
}

func headerOf(run *ports.Run) runHeader {
	return runHeader{
		ID:             run.ID,
		Model:          run.Model,
		Automaton:      run.Automaton,
		CreatedAt:      run.CreatedAt,
		Elapsed:        run.Elapsed,
		Nodes:          run.Nodes,
		Edges:          run.Edges,
		InitialWinning: run.InitialWinning,
		WinningStates:  run.WinningStates,
		WinningNodes:   run.WinningNodes,
		Strategy:       run.Strategy,
	}
}

func (h runHeader) run() *ports.Run {
	return &ports.Run{
		ID:             h.ID,
		Model:          h.Model,
		Automaton:      h.Automaton,
		CreatedAt:      h.CreatedAt,
		Elapsed:        h.Elapsed,
		Nodes:          h.Nodes,
		Edges:          h.Edges,
		InitialWinning: h.InitialWinning,
		WinningStates:  h.WinningStates,
		WinningNodes:   h.WinningNodes,
		Strategy:       h.Strategy,
	}
}

// SaveRun persists one run under the given model.
func (s *Store) SaveRun(model string, run *ports.Run) error {
	if run == nil {
		return fmt.Errorf("nil run")
	}
	if run.ID == "" {
		return fmt.Errorf("run has no id")
	}

	header, err := encodeGob(headerOf(run))
	if err != nil {
		return fmt.Errorf("encode run header: %w", err)
	}
	supports, err := encodeSupports(run.Supports)
	if err != nil {
		return fmt.Errorf("encode supports: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		mb, err := tx.CreateBucketIfNotExists([]byte(model))
		if err != nil {
			return err
		}
		rb, err := mb.CreateBucketIfNotExists(bucketRuns)
		if err != nil {
			return err
		}
		sb, err := mb.CreateBucketIfNotExists(bucketSupports)
		if err != nil {
			return err
		}
		if err := rb.Put([]byte(run.ID), header); err != nil {
			return err
		}
		return sb.Put([]byte(run.ID), supports)
	})
}

// LoadRun retrieves a run by id. Returns nil, nil if it does not exist.
func (s *Store) LoadRun(model, id string) (*ports.Run, error) {
	var header, supports []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		mb := tx.Bucket([]byte(model))
		if mb == nil {
			return nil
		}
		header, supports = readRun(mb, []byte(id))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decodeRun(header, supports)
}

// LatestRun returns the most recently stored run for a model.
// Returns nil, nil if the model has no runs.
func (s *Store) LatestRun(model string) (*ports.Run, error) {
	var header, supports []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		mb := tx.Bucket([]byte(model))
		if mb == nil {
			return nil
		}
		rb := mb.Bucket(bucketRuns)
		if rb == nil {
			return nil
		}
		k, _ := rb.Cursor().Last()
		if k == nil {
			return nil
		}
		header, supports = readRun(mb, k)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decodeRun(header, supports)
}

// readRun copies the run's blobs out of the transaction (bbolt slices are
// only valid within tx).
func readRun(mb *bolt.Bucket, id []byte) (header, supports []byte) {
	if rb := mb.Bucket(bucketRuns); rb != nil {
		if v := rb.Get(id); v != nil {
			header = make([]byte, len(v))
			copy(header, v)
		}
	}
	if sb := mb.Bucket(bucketSupports); sb != nil {
		if v := sb.Get(id); v != nil {
			supports = make([]byte, len(v))
			copy(supports, v)
		}
	}
	return header, supports
}

func decodeRun(header, supports []byte) (*ports.Run, error) {
	if header == nil {
		return nil, nil
	}
	var h runHeader
	if err := decodeGob(header, &h); err != nil {
		return nil, fmt.Errorf("decode run header: %w", err)
	}
	run := h.run()
	if supports != nil {
		table, err := decodeSupports(supports)
		if err != nil {
			return nil, fmt.Errorf("decode supports: %w", err)
		}
		run.Supports = table
	}
	return run, nil
}

// ListRuns returns summaries of every stored run, oldest first.
func (s *Store) ListRuns(model string) ([]ports.RunSummary, error) {
	var out []ports.RunSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		mb := tx.Bucket([]byte(model))
		if mb == nil {
			return nil
		}
		rb := mb.Bucket(bucketRuns)
		if rb == nil {
			return nil
		}
		return rb.ForEach(func(k, v []byte) error {
			var h runHeader
			if err := decodeGob(v, &h); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			out = append(out, ports.RunSummary{
				ID:             h.ID,
				CreatedAt:      h.CreatedAt,
				Nodes:          h.Nodes,
				InitialWinning: h.InitialWinning,
				Winning:        len(h.WinningNodes),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Models lists every model with stored runs.
func (s *Store) Models() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			out = append(out, string(name))
			return nil
		})
	})
	return out, err
}

// DeleteModel removes all runs for a model.
// Idempotent: deleting a nonexistent model is not an error.
func (s *Store) DeleteModel(model string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(model)); err == bolt.ErrBucketNotFound {
			return nil // idempotent
		} else {
			return err
		}
	})
}
