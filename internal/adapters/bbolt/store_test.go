package bbolt

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/aswin/internal/ports"
)

// =============================================================================
// Run storage: save/load runs per model, crash safety, lock timeouts.
// Runs are keyed by time-ordered ids; cursor order is creation order.
// =============================================================================

// newTestStore creates a temporary bbolt store for testing.
func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

// makeTestRun creates a run shaped like the revealing toy's result.
func makeTestRun(id string) *ports.Run {
	return &ports.Run{
		ID:             id,
		Model:          "revealing-toy",
		Automaton:      "F p0",
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Elapsed:        1500 * time.Microsecond,
		Nodes:          3,
		Edges:          4,
		InitialWinning: false,
		WinningStates:  []string{"L"},
		WinningNodes:   []int{1},
		Supports: [][]ports.ProductState{
			{{State: 0, Aut: 1}, {State: 1, Aut: 0}},
			{{State: 0, Aut: 1}},
			{{State: 1, Aut: 0}},
		},
		Strategy: []ports.StrategyEntry{{Node: 1, Actions: []string{"wait"}, Uniform: true}},
	}
}

func TestStore_SaveLoadRun_Roundtrip(t *testing.T) {
	store, _ := newTestStore(t)
	original := makeTestRun("run-0001")

	require.NoError(t, store.SaveRun("toy", original))

	loaded, err := store.LoadRun("toy", "run-0001")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, original, loaded)
}

func TestStore_LoadRun_Missing(t *testing.T) {
	store, _ := newTestStore(t)

	run, err := store.LoadRun("nope", "x")
	require.NoError(t, err)
	assert.Nil(t, run)

	require.NoError(t, store.SaveRun("toy", makeTestRun("a")))
	run, err = store.LoadRun("toy", "b")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestStore_SaveRun_Rejects(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Error(t, store.SaveRun("toy", nil))
	assert.Error(t, store.SaveRun("toy", &ports.Run{}))
	assert.Error(t, store.SaveRun("toy", &ports.Run{
		ID:       "bad",
		Supports: [][]ports.ProductState{{{State: -1}}},
	}))
}

func TestStore_LatestAndList(t *testing.T) {
	store, _ := newTestStore(t)

	latest, err := store.LatestRun("toy")
	require.NoError(t, err)
	assert.Nil(t, latest)

	for i, id := range []string{"run-0001", "run-0002", "run-0003"} {
		run := makeTestRun(id)
		run.Nodes = 10 + i
		require.NoError(t, store.SaveRun("toy", run))
	}

	latest, err = store.LatestRun("toy")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "run-0003", latest.ID)
	assert.Len(t, latest.Supports, 3)

	list, err := store.ListRuns("toy")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "run-0001", list[0].ID)
	assert.Equal(t, 12, list[2].Nodes)
	assert.Equal(t, 1, list[2].Winning)
}

func TestStore_CrashRecovery(t *testing.T) {
	// Committed runs survive close and reopen; bbolt fsyncs on commit.
	dir := t.TempDir()
	path := filepath.Join(dir, "crash.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun("toy", makeTestRun("run-0001")))
	require.NoError(t, store.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	store2, err := NewStore(path)
	require.NoError(t, err)
	defer store2.Close()

	loaded, err := store2.LoadRun("toy", "run-0001")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, []string{"L"}, loaded.WinningStates)
}

func TestStore_ModelScoped(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.SaveRun("toy", makeTestRun("a")))
	require.NoError(t, store.SaveRun("tiger", makeTestRun("b")))

	run, err := store.LoadRun("tiger", "a")
	require.NoError(t, err)
	assert.Nil(t, run, "runs of one model are invisible to another")

	models, err := store.Models()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"toy", "tiger"}, models)
}

func TestStore_DeleteModel(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.SaveRun("toy", makeTestRun("a")))
	require.NoError(t, store.SaveRun("tiger", makeTestRun("b")))

	require.NoError(t, store.DeleteModel("toy"))

	list, err := store.ListRuns("toy")
	require.NoError(t, err)
	assert.Empty(t, list)

	run, err := store.LoadRun("tiger", "b")
	require.NoError(t, err)
	assert.NotNil(t, run)

	// Delete nonexistent, idempotent
	assert.NoError(t, store.DeleteModel("nope"))
}

func TestStore_ConcurrentReads(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.SaveRun("toy", makeTestRun("a")))

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := store.LoadRun("toy", "a")
			if err != nil {
				errs <- err
				return
			}
			if run == nil || len(run.Supports) != 3 {
				errs <- fmt.Errorf("unexpected run %+v", run)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent read error: %v", err)
	}
}

func TestEncodeSupports_Roundtrip(t *testing.T) {
	table := [][]ports.ProductState{
		{},
		{{State: 7, Aut: 2}},
		{{State: 0, Aut: 0}, {State: 1 << 20, Aut: 3}},
	}
	data, err := encodeSupports(table)
	require.NoError(t, err)
	assert.Len(t, data, 4+4+(4+8)+(4+16))

	got, err := decodeSupports(data)
	require.NoError(t, err)
	assert.Equal(t, table, got)
}

func TestDecodeSupports_Corrupt(t *testing.T) {
	data, err := encodeSupports([][]ports.ProductState{{{State: 1, Aut: 1}, {State: 2, Aut: 0}}})
	require.NoError(t, err)

	for _, bad := range [][]byte{
		nil,
		data[:3],
		data[:len(data)-1],
		append(append([]byte(nil), data...), 0),
		{0xff, 0xff, 0xff, 0xff},
	} {
		_, err := decodeSupports(bad)
		assert.Error(t, err, "%x", bad)
	}
}

// =============================================================================
// Lock contention: the 1s open timeout prevents hangs
// =============================================================================

func TestStore_OpenTimeout_DoesNotHang(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.db")

	store1, err := NewStore(path)
	require.NoError(t, err)
	defer store1.Close()

	start := time.Now()
	store2, err := NewStore(path)
	elapsed := time.Since(start)

	require.Error(t, err, "second open should fail with lock timeout")
	assert.Nil(t, store2)
	assert.Contains(t, err.Error(), "bbolt open")
	assert.Contains(t, err.Error(), "timeout")
	assert.Less(t, elapsed, 3*time.Second, "should complete within 3s, not hang")
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond, "should wait ~1s for the configured timeout")
}

func TestStore_OpenAfterClose_Succeeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "released.db")

	store1, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store1.SaveRun("toy", makeTestRun("a")))
	store1.Close()

	start := time.Now()
	store2, err := NewStore(path)
	elapsed := time.Since(start)
	require.NoError(t, err)
	defer store2.Close()
	assert.Less(t, elapsed, 500*time.Millisecond, "should open instantly after lock released")

	list, err := store2.ListRuns("toy")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_ImplementsRunStore(t *testing.T) {
	var _ ports.RunStore = (*Store)(nil)
}
