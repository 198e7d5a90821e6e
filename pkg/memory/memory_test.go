package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steppedClock() func() time.Time {
	t := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func storages(t *testing.T) map[string]Storage {
	t.Helper()
	b, err := OpenBadger(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return map[string]Storage{
		"in-memory": NewInMemoryStorage(),
		"badger":    b,
	}
}

func TestSaveAndSearch(t *testing.T) {
	for name, storage := range storages(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := New(storage, nil)
			m.now = steppedClock()

			first, err := m.SaveRecord(ctx, `{"user_goals":["Grow revenue"]}`, map[string]string{"type": "beliefs"}, "onboarder")
			require.NoError(t, err)
			require.NoError(t, m.Save(ctx, `["Grow revenue"]`, map[string]string{"type": "desires"}, "onboarder"))
			require.NoError(t, m.Save(ctx, `{"user_feedback":"slow"}`, map[string]string{"type": "beliefs"}, "support"))

			assert.NotEmpty(t, first.ID)
			assert.Equal(t, "beliefs", first.Metadata["type"])

			beliefs, err := m.Search(ctx, "BELIEFS", 0)
			require.NoError(t, err)
			require.Len(t, beliefs, 2)
			assert.Equal(t, `{"user_feedback":"slow"}`, beliefs[0].Value, "newest first")
			assert.Equal(t, first.ID, beliefs[1].ID)
			assert.True(t, beliefs[0].CreatedAt.After(beliefs[1].CreatedAt))

			revenue, err := m.Search(ctx, "grow revenue", 1)
			require.NoError(t, err)
			require.Len(t, revenue, 1)
			assert.Equal(t, "desires", revenue[0].Metadata["type"])

			byAgent, err := m.Search(ctx, "support", 0)
			require.NoError(t, err)
			assert.Len(t, byAgent, 1)

			all, err := m.Search(ctx, "", 0)
			require.NoError(t, err)
			assert.Len(t, all, 3)

			none, err := m.Search(ctx, "nothing like this", 0)
			require.NoError(t, err)
			assert.Empty(t, none)

			assert.ErrorIs(t, m.Save(ctx, "", nil, "x"), ErrEmptyValue)
		})
	}
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := OpenBadger(BadgerOptions{Dir: dir})
	require.NoError(t, err)
	m := New(b, nil)
	saved, err := m.SaveRecord(ctx, "remember me", map[string]string{"type": "intentions"}, "a")
	require.NoError(t, err)
	require.NoError(t, m.Close())

	b, err = OpenBadger(BadgerOptions{Dir: dir})
	require.NoError(t, err)
	defer b.Close()

	got, err := New(b, nil).Search(ctx, "remember", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, saved.ID, got[0].ID)
	assert.Equal(t, "intentions", got[0].Metadata["type"])
	assert.True(t, saved.CreatedAt.Equal(got[0].CreatedAt))
}

func TestSearchCancelled(t *testing.T) {
	m := New(NewInMemoryStorage(), nil)
	require.NoError(t, m.Save(context.Background(), "x", nil, ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Search(ctx, "", 0)
	assert.ErrorIs(t, err, context.Canceled)
}
