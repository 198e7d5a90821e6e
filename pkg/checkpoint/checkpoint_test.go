package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoreason/pkg/bdi"
	"github.com/soundprediction/ontoreason/pkg/types"
)

func TestManager(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("Create manager with default directory", func(t *testing.T) {
		m, err := NewManager("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(os.TempDir(), "ontoreason-checkpoints"), m.Dir())
	})

	t.Run("Save and load", func(t *testing.T) {
		m, err := NewManager(dir)
		require.NoError(t, err)

		state := &State{
			GraphVersion: 7,
			Facts:        []types.Triple{{Subject: "rex", Predicate: "rdf:type", Object: "Dog"}},
			Cases: []bdi.Case{{
				ID: "case-1", Plan: "Learning Plan", Task: "Review", Action: "Ship",
				Solution: "ship weekly", Features: []string{"learning", "plan"},
			}},
		}
		require.NoError(t, m.Save(ctx, state))
		assert.NotEmpty(t, state.ID)
		assert.False(t, state.CreatedAt.IsZero())

		loaded, err := m.Load(ctx, state.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, uint64(7), loaded.GraphVersion)
		assert.Equal(t, state.Facts, loaded.Facts)
		require.Len(t, loaded.Cases, 1)
		assert.Equal(t, "ship weekly", loaded.Cases[0].Solution)
	})

	t.Run("Load missing checkpoint", func(t *testing.T) {
		m, err := NewManager(dir)
		require.NoError(t, err)
		loaded, err := m.Load(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("Reject path traversal", func(t *testing.T) {
		m, err := NewManager(dir)
		require.NoError(t, err)
		for _, id := range []string{"", "../etc", "a/b", `a\b`, "a\x00b"} {
			_, err := m.Path(id)
			assert.ErrorIs(t, err, ErrInvalidID, id)
		}
		assert.ErrorIs(t, m.Save(ctx, &State{ID: "../x"}), ErrInvalidID)
	})
}

func TestListLatestPrune(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	latest, err := m.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := range 3 {
		require.NoError(t, m.Save(ctx, &State{CreatedAt: base.Add(time.Duration(i) * time.Minute), GraphVersion: uint64(i)}))
	}
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), "notes.txt"), []byte("x"), 0o644))

	ids, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, NewID(base), ids[0])

	latest, err = m.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, uint64(2), latest.GraphVersion)

	removed, err := m.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	ids, err = m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{NewID(base.Add(time.Minute)), NewID(base.Add(2 * time.Minute))}, ids)

	removed, err = m.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCleanOld(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, m.Save(ctx, &State{ID: "old", CreatedAt: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, m.Save(ctx, &State{ID: "new"}))

	removed, err := m.CleanOld(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids)

	require.NoError(t, m.Delete(ctx, "new"))
	require.NoError(t, m.Delete(ctx, "new"), "deleting twice is fine")
}
