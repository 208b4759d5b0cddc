package checkpoint_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/appforge/pkg/sequence/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]checkpoint.Store {
	t.Helper()
	sqlite, err := checkpoint.NewSQLiteStore(filepath.Join(t.TempDir(), "cp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]checkpoint.Store{
		"memory": checkpoint.NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func cp(runID, step string, seq int, next string) *checkpoint.Checkpoint {
	state := fmt.Sprintf(`{"step":%q}`, step)
	return checkpoint.New(runID, "create", step, seq, []byte(state), next)
}

func TestStore_SaveLatest(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Latest("run-1")
			assert.ErrorIs(t, err, checkpoint.ErrNotFound)

			require.NoError(t, store.Save(cp("run-1", "analyze_intent", 1, "generate_use_cases")))
			require.NoError(t, store.Save(
				cp("run-1", "generate_use_cases", 2, "generate_page_configs").
					WithPrevStep("analyze_intent")))

			latest, err := store.Latest("run-1")
			require.NoError(t, err)
			assert.Equal(t, "generate_use_cases", latest.Step)
			assert.Equal(t, "generate_page_configs", latest.NextStep)
			assert.Equal(t, "analyze_intent", latest.PrevStep)
			assert.Equal(t, "create", latest.Kind)
			assert.Equal(t, checkpoint.Version, latest.Version)
			assert.False(t, latest.Finished())
			assert.JSONEq(t, `{"step":"generate_use_cases"}`, string(latest.State))
		})
	}
}

func TestStore_ListOrderedBySequence(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(cp("run-1", "a", 1, "b")))
			require.NoError(t, store.Save(cp("run-1", "b", 2, "a")))
			require.NoError(t, store.Save(cp("run-1", "a", 3, "b")))

			infos, err := store.List("run-1")
			require.NoError(t, err)
			require.Len(t, infos, 2)
			assert.Equal(t, "b", infos[0].Step)
			assert.Equal(t, "a", infos[1].Step)
			assert.Equal(t, 3, infos[1].Sequence)
			assert.Equal(t, "create", infos[1].Kind)
			assert.Positive(t, infos[1].Size)

			empty, err := store.List("nope")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStore_Interrupted(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			empty, err := store.Interrupted()
			require.NoError(t, err)
			assert.Empty(t, empty)

			require.NoError(t, store.Save(cp("done", "a", 1, "b")))
			require.NoError(t, store.Save(cp("done", "b", 2, checkpoint.End)))

			older := cp("stuck-1", "a", 1, "b")
			older.Timestamp = time.Now().UTC().Add(-time.Minute)
			require.NoError(t, store.Save(older))
			require.NoError(t, store.Save(cp("stuck-2", "a", 1, "b")))
			require.NoError(t, store.Save(cp("stuck-2", "b", 2, "c")))

			infos, err := store.Interrupted()
			require.NoError(t, err)
			require.Len(t, infos, 2)
			assert.Equal(t, "stuck-1", infos[0].RunID)
			assert.Equal(t, "b", infos[0].NextStep)
			assert.Equal(t, "stuck-2", infos[1].RunID)
			assert.Equal(t, "c", infos[1].NextStep)
		})
	}
}

func TestStore_SaveValidates(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, store.Save(nil), checkpoint.ErrMissingRunID)
			assert.ErrorIs(t, store.Save(cp("", "a", 1, "b")), checkpoint.ErrMissingRunID)
			assert.ErrorIs(t, store.Save(cp("r", "", 1, "b")), checkpoint.ErrMissingRunID)
		})
	}
}

func TestStore_DeleteRun(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(cp("run-1", "a", 1, "b")))
			require.NoError(t, store.Save(cp("run-2", "a", 1, "b")))
			require.NoError(t, store.DeleteRun("run-1"))

			infos, err := store.List("run-1")
			require.NoError(t, err)
			assert.Empty(t, infos)

			_, err = store.Latest("run-2")
			assert.NoError(t, err)
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Close())
			assert.NoError(t, store.Close())
			assert.ErrorIs(t, store.Save(cp("r", "s", 1, "t")), checkpoint.ErrStoreClosed)
			_, err := store.List("r")
			assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
			_, err = store.Latest("r")
			assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
			_, err = store.Interrupted()
			assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
		})
	}
}

func TestStore_Concurrent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					runID := fmt.Sprintf("run-%d", id%5)
					step := fmt.Sprintf("step-%d", id%10)
					assert.NoError(t, store.Save(cp(runID, step, id, "next")))
					_, err := store.List(runID)
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			infos, err := store.Interrupted()
			require.NoError(t, err)
			assert.Len(t, infos, 5)
		})
	}
}

func TestSQLiteStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")

	first, err := checkpoint.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Save(cp("run-1", "a", 1, "b")))
	require.NoError(t, first.Close())

	second, err := checkpoint.NewSQLiteStore(path)
	require.NoError(t, err)
	defer second.Close()

	latest, err := second.Latest("run-1")
	require.NoError(t, err)
	assert.Equal(t, "b", latest.NextStep)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := checkpoint.NewSQLiteStore("/nonexistent/path/db.sqlite")
	assert.Error(t, err)
}
