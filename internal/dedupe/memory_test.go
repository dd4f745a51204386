package dedupe_test

import (
	"context"
	"testing"
	"time"

	"github.com/DeafMist/news-indexer/backend/internal/dedupe"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestMemoryStoreSeenDuplicate(t *testing.T) {
	ctx := context.Background()
	store := dedupe.NewMemoryStore(10)

	ok, err := store.Exists(ctx, "alpha")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "alpha", time.Minute))

	ok, err = store.Exists(ctx, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := dedupe.NewMemoryStore(10).WithClock(clock.now)

	require.NoError(t, store.Set(ctx, "beta", 48*time.Hour))

	clock.advance(47 * time.Hour)
	ok, _ := store.Exists(ctx, "beta")
	require.True(t, ok)

	clock.advance(time.Hour)
	ok, _ = store.Exists(ctx, "beta")
	require.False(t, ok)
}

func TestMemoryStoreRefreshExtendsTTL(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := dedupe.NewMemoryStore(10).WithClock(clock.now)

	require.NoError(t, store.Set(ctx, "gamma", time.Hour))
	clock.advance(50 * time.Minute)
	require.NoError(t, store.Set(ctx, "gamma", time.Hour))
	clock.advance(50 * time.Minute)

	ok, _ := store.Exists(ctx, "gamma")
	require.True(t, ok)
}

func TestMemoryStoreCapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	store := dedupe.NewMemoryStore(1)

	require.NoError(t, store.Set(ctx, "first", time.Minute))
	require.NoError(t, store.Set(ctx, "second", time.Minute))

	ok, _ := store.Exists(ctx, "first")
	require.False(t, ok)
	ok, _ = store.Exists(ctx, "second")
	require.True(t, ok)
	require.Equal(t, 1, store.Len())
}

func TestMemoryStoreIncrWindow(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := dedupe.NewMemoryStore(10).WithClock(clock.now)

	for want := int64(1); want <= 3; want++ {
		n, err := store.Incr(ctx, "fail:x", time.Hour)
		require.NoError(t, err)
		require.Equal(t, want, n)
	}

	clock.advance(time.Hour)
	n, err := store.Incr(ctx, "fail:x", time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
