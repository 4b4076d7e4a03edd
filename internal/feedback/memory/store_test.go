package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/feedback"
)

func TestStore_ConcurrentBumpsNeverLoseCounts(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	const goroutines = 50
	const bumpsEach = 20

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < bumpsEach; i++ {
				_ = store.BumpSearchCount(ctx, "mouse")
			}
		}()
	}
	wg.Wait()

	popular, err := store.PopularQueries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, int64(goroutines*bumpsEach), popular[0].SearchCount)
}

func TestStore_HistoryGroupsAndOrdersByRecency(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	actor := domain.Actor{UserID: "u-1"}

	base := time.Now().UTC().Add(-time.Hour)
	entries := []domain.SearchHistoryEntry{
		{Query: "mouse", Actor: actor, CreatedAt: base},
		{Query: "keyboard", Actor: actor, CreatedAt: base.Add(10 * time.Minute)},
		{Query: "mouse", Actor: actor, CreatedAt: base.Add(20 * time.Minute)},
		{Query: "monitor", Actor: domain.Actor{UserID: "someone-else"}, CreatedAt: base.Add(30 * time.Minute)},
	}
	for i := range entries {
		require.NoError(t, store.RecordSearch(ctx, &entries[i]))
	}

	history, err := store.HistoryForActor(ctx, actor, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "mouse", history[0].Query)
	assert.Equal(t, 2, history[0].SearchCount)
	assert.Equal(t, "keyboard", history[1].Query)
}

func TestStore_ClearHistoryOnlyTouchesOneActor(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.RecordSearch(ctx, &domain.SearchHistoryEntry{Query: "a", Actor: domain.Actor{UserID: "u-1"}}))
	require.NoError(t, store.RecordSearch(ctx, &domain.SearchHistoryEntry{Query: "b", Actor: domain.Actor{SessionID: "s-1"}}))

	require.NoError(t, store.ClearHistory(ctx, domain.Actor{UserID: "u-1"}))

	mine, err := store.HistoryForActor(ctx, domain.Actor{UserID: "u-1"}, 10)
	require.NoError(t, err)
	assert.Empty(t, mine)

	theirs, err := store.HistoryForActor(ctx, domain.Actor{SessionID: "s-1"}, 10)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestStore_ResetCountersScopes(t *testing.T) {
	ctx := context.Background()

	seed := func() *Store {
		store := NewStore()
		require.NoError(t, store.BumpSearchCount(ctx, "mouse"))
		require.NoError(t, store.RecordClick(ctx, "mouse"))
		require.NoError(t, store.RecordConversion(ctx, "mouse"))
		return store
	}

	store := seed()
	require.NoError(t, store.ResetCounters(ctx, feedback.ResetClicks))
	queries, _, err := store.ListPopular(ctx, "search_count", "desc", 1, 10)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, int64(0), queries[0].ClickCount)
	assert.Equal(t, int64(1), queries[0].SearchCount)
	assert.Equal(t, int64(1), queries[0].ConversionCount)

	store = seed()
	require.NoError(t, store.ResetCounters(ctx, feedback.ResetAll))
	queries, _, err = store.ListPopular(ctx, "search_count", "desc", 1, 10)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, int64(0), queries[0].SearchCount)
	assert.Equal(t, int64(0), queries[0].ClickCount)
	assert.Equal(t, int64(0), queries[0].ConversionCount)
}

func TestStore_TrendingExcludesStaleQueries(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.BumpSearchCount(ctx, "fresh"))
	require.NoError(t, store.BumpSearchCount(ctx, "stale"))

	// Age the stale aggregate past the window.
	store.mu.Lock()
	store.popular["stale"].LastSearchedAt = time.Now().UTC().AddDate(0, 0, -30)
	store.mu.Unlock()

	trending, err := store.TrendingQueries(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, trending, 1)
	assert.Equal(t, "fresh", trending[0].Query)
}

func TestStore_DeleteHistoryOlderThan(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -100)
	require.NoError(t, store.RecordSearch(ctx, &domain.SearchHistoryEntry{Query: "old", Actor: domain.Actor{UserID: "u"}, CreatedAt: old}))
	require.NoError(t, store.RecordSearch(ctx, &domain.SearchHistoryEntry{Query: "new", Actor: domain.Actor{UserID: "u"}}))

	deleted, err := store.DeleteHistoryOlderThan(ctx, time.Now().UTC().AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	history, err := store.HistoryForActor(ctx, domain.Actor{UserID: "u"}, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "new", history[0].Query)
}
