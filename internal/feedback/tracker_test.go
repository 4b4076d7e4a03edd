package feedback_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/cache"
	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/feedback"
	"github.com/utafrali/catalog-search/internal/feedback/memory"
)

func newTracker(t *testing.T) (*feedback.Tracker, *memory.Store, *cache.MemoryStore) {
	t.Helper()

	store := memory.NewStore()
	cacheStore := cache.NewMemoryStore()
	t.Cleanup(cacheStore.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return feedback.NewTracker(store, cacheStore, logger), store, cacheStore
}

func TestTracker_TrackSearchRecordsHistoryAndBumpsAggregate(t *testing.T) {
	tracker, store, _ := newTracker(t)
	ctx := context.Background()

	tracker.TrackSearch(&domain.SearchHistoryEntry{
		Query:       "Wireless Mouse",
		ResultCount: 7,
		Actor:       domain.Actor{UserID: "u-1"},
	})
	tracker.Wait()

	history, err := store.HistoryForActor(ctx, domain.Actor{UserID: "u-1"}, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Wireless Mouse", history[0].Query)

	// The aggregate keys on the lowercased form.
	popular, err := store.PopularQueries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, "wireless mouse", popular[0].Query)
	assert.Equal(t, int64(1), popular[0].SearchCount)
}

func TestTracker_TrackSearchInvalidatesPopularityCaches(t *testing.T) {
	tracker, _, cacheStore := newTracker(t)
	ctx := context.Background()

	popularKey := cache.ParamsKey(cache.OpPopular, map[string]string{"limit": "10"})
	trendingKey := cache.ParamsKey(cache.OpTrending, map[string]string{"days": "7"})
	searchKey := cache.SearchKey(cache.OpSearch, "mouse", &domain.SearchFilters{}, 1, 20)

	require.NoError(t, cacheStore.Set(ctx, popularKey, []byte("[]"), time.Minute))
	require.NoError(t, cacheStore.Set(ctx, trendingKey, []byte("[]"), time.Minute))
	require.NoError(t, cacheStore.Set(ctx, searchKey, []byte("{}"), time.Minute))

	tracker.TrackSearch(&domain.SearchHistoryEntry{Query: "mouse", Actor: domain.Actor{SessionID: "s-1"}})
	tracker.Wait()

	_, found, _ := cacheStore.Get(ctx, popularKey)
	assert.False(t, found)
	_, found, _ = cacheStore.Get(ctx, trendingKey)
	assert.False(t, found)

	// Result caches expire by TTL instead.
	_, found, _ = cacheStore.Get(ctx, searchKey)
	assert.True(t, found)
}

func TestTracker_EmptyQueryOnlyRecordsHistory(t *testing.T) {
	tracker, store, _ := newTracker(t)
	ctx := context.Background()

	tracker.TrackSearch(&domain.SearchHistoryEntry{Query: "   ", Actor: domain.Actor{SessionID: "s-1"}})
	tracker.Wait()

	popular, err := store.PopularQueries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, popular)
}

func TestTracker_ClickOnUntrackedQueryIsDropped(t *testing.T) {
	tracker, store, _ := newTracker(t)
	ctx := context.Background()

	tracker.TrackClick("never searched")
	tracker.Wait()

	queries, total, err := store.ListPopular(ctx, "search_count", "desc", 1, 20)
	require.NoError(t, err)
	assert.Empty(t, queries)
	assert.Zero(t, total)
}

func TestTracker_ClicksAndConversionsAccumulate(t *testing.T) {
	tracker, store, _ := newTracker(t)
	ctx := context.Background()

	tracker.TrackSearch(&domain.SearchHistoryEntry{Query: "mouse", Actor: domain.Actor{SessionID: "s-1"}})
	tracker.Wait()

	tracker.TrackClick("Mouse")
	tracker.TrackClick("mouse")
	tracker.TrackConversion("MOUSE")
	tracker.Wait()

	popular, err := store.PopularQueries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, int64(2), popular[0].ClickCount)
	assert.Equal(t, int64(1), popular[0].ConversionCount)
}
