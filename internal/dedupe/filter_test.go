package dedupe_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/news-indexer/backend/internal/dedupe"
	"github.com/DeafMist/news-indexer/backend/internal/models"
)

func refs(locations ...string) []models.ArticleReference {
	out := make([]models.ArticleReference, 0, len(locations))
	for _, loc := range locations {
		out = append(out, models.ArticleReference{Location: loc})
	}
	return out
}

func locations(refs []models.ArticleReference) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Location)
	}
	return out
}

func newRedisFilter(t *testing.T) (*dedupe.Filter, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	store := dedupe.NewRedisStore("redis://" + srv.Addr() + "/0")
	t.Cleanup(func() { _ = store.Close() })
	return dedupe.NewFilter(store, dedupe.Options{Timeout: time.Second}, nil), srv
}

func TestKeyIsLowercaseHexMD5(t *testing.T) {
	ref := models.ArticleReference{Location: "https://example.com/a"}

	key := dedupe.Key(ref, dedupe.KeyByLocation, "")
	require.Equal(t, "cd69b81ea00cc2798797293cbc92d643", key)
	require.Len(t, key, 32)
	require.Equal(t, "nscrpr:"+key, dedupe.Key(ref, dedupe.KeyByLocation, "nscrpr:"))
}

func TestKeyStrategies(t *testing.T) {
	a := models.ArticleReference{Location: "https://example.com/a", PublicationDate: "2024-03-01"}
	b := models.ArticleReference{Location: "https://example.com/a", PublicationDate: "2024-03-02"}

	require.Equal(t, dedupe.Key(a, dedupe.KeyByLocation, ""), dedupe.Key(b, dedupe.KeyByLocation, ""))
	require.NotEqual(t, dedupe.Key(a, dedupe.KeyByLocationAndDate, ""), dedupe.Key(b, dedupe.KeyByLocationAndDate, ""))
}

func TestFilterDropsSeenAndKeepsOrder(t *testing.T) {
	ctx := context.Background()
	filter, _ := newRedisFilter(t)

	require.NoError(t, filter.MarkSeen(ctx, models.ArticleReference{Location: "https://example.com/2"}))

	kept, err := filter.Filter(ctx, refs("https://example.com/3", "https://example.com/2", "https://example.com/1"))
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/3", "https://example.com/1"}, locations(kept))
}

func TestFilterDropsRepeatsWithinBatch(t *testing.T) {
	filter := dedupe.NewFilter(dedupe.NewMemoryStore(10), dedupe.Options{}, nil)

	kept, err := filter.Filter(context.Background(), refs("https://example.com/a", "https://example.com/b", "https://example.com/a"))
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, locations(kept))
}

func TestFilterEmptyInput(t *testing.T) {
	filter := dedupe.NewFilter(dedupe.NewMemoryStore(10), dedupe.Options{}, nil)

	kept, err := filter.Filter(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, kept)
}

func TestMarkSeenWritesTTL(t *testing.T) {
	ctx := context.Background()
	filter, srv := newRedisFilter(t)
	ref := models.ArticleReference{Location: "https://example.com/ttl"}

	require.NoError(t, filter.MarkSeen(ctx, ref))
	require.Equal(t, 48*time.Hour, srv.TTL(filter.Key(ref)))

	srv.FastForward(47 * time.Hour)
	kept, err := filter.Filter(ctx, []models.ArticleReference{ref})
	require.NoError(t, err)
	require.Empty(t, kept)

	srv.FastForward(time.Hour)
	kept, err = filter.Filter(ctx, []models.ArticleReference{ref})
	require.NoError(t, err)
	require.Len(t, kept, 1)
}

func TestMarkSeenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	filter, srv := newRedisFilter(t)
	ref := models.ArticleReference{Location: "https://example.com/twice"}

	require.NoError(t, filter.MarkSeen(ctx, ref))
	srv.FastForward(10 * time.Hour)
	require.NoError(t, filter.MarkSeen(ctx, ref))

	require.Equal(t, 48*time.Hour, srv.TTL(filter.Key(ref)))
	require.Len(t, srv.Keys(), 1)
}

func TestFilterStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	filter, srv := newRedisFilter(t)
	srv.Close()

	kept, err := filter.Filter(ctx, refs("https://example.com/a"))
	require.Error(t, err)
	require.True(t, errors.Is(err, dedupe.ErrStoreUnavailable))
	require.Nil(t, kept)

	err = filter.MarkSeen(ctx, models.ArticleReference{Location: "https://example.com/a"})
	require.ErrorIs(t, err, dedupe.ErrStoreUnavailable)
	require.ErrorIs(t, filter.Ping(ctx), dedupe.ErrStoreUnavailable)
}

func TestFailureBudgetDisabledByDefault(t *testing.T) {
	filter := dedupe.NewFilter(dedupe.NewMemoryStore(10), dedupe.Options{}, nil)
	budget := dedupe.NewFailureBudget(filter, 0, time.Hour, time.Hour)

	require.False(t, budget.Enabled())
	quarantined, err := budget.RecordFailure(context.Background(), models.ArticleReference{Location: "x"})
	require.NoError(t, err)
	require.False(t, quarantined)
}

func TestFailureBudgetQuarantines(t *testing.T) {
	ctx := context.Background()
	filter, srv := newRedisFilter(t)
	budget := dedupe.NewFailureBudget(filter, 2, time.Hour, 24*time.Hour)
	ref := models.ArticleReference{Location: "https://example.com/poison"}

	quarantined, err := budget.RecordFailure(ctx, ref)
	require.NoError(t, err)
	require.False(t, quarantined)

	kept, err := filter.Filter(ctx, []models.ArticleReference{ref})
	require.NoError(t, err)
	require.Len(t, kept, 1)

	quarantined, err = budget.RecordFailure(ctx, ref)
	require.NoError(t, err)
	require.True(t, quarantined)
	require.Equal(t, 24*time.Hour, srv.TTL(filter.Key(ref)))

	kept, err = filter.Filter(ctx, []models.ArticleReference{ref})
	require.NoError(t, err)
	require.Empty(t, kept)
}
