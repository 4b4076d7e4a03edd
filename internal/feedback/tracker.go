package feedback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/catalog-search/internal/cache"
	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/query"
)

const defaultTrackTimeout = 5 * time.Second

// Tracker records search feedback without blocking the request path. Every
// Track call returns immediately; the write happens on a goroutine with its
// own deadline, detached from the request context so an aborted request
// still gets counted. Failures are logged and swallowed.
type Tracker struct {
	store   Store
	cache   cache.Store
	logger  *slog.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

// NewTracker creates a Tracker over the given store. The cache store may be
// the same instance the search service reads through; popularity surfaces
// are invalidated there whenever a search is tracked.
func NewTracker(store Store, cacheStore cache.Store, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:   store,
		cache:   cacheStore,
		logger:  logger,
		timeout: defaultTrackTimeout,
	}
}

// TrackSearch records one executed search: a history entry plus a search
// count bump on the aggregate. Queries that normalize to empty only produce
// the history entry. Popular and trending caches are invalidated so the
// surfaces reflect the new counts on their next miss.
func (t *Tracker) TrackSearch(entry *domain.SearchHistoryEntry) {
	stored := *entry
	t.async(func(ctx context.Context) {
		if err := t.store.RecordSearch(ctx, &stored); err != nil {
			t.logger.Warn("search history write failed", "query", stored.Query, "error", err)
		}

		aggregate := query.NormalizeAggregate(stored.Query)
		if aggregate == "" {
			return
		}
		if err := t.store.BumpSearchCount(ctx, aggregate); err != nil {
			t.logger.Warn("search count bump failed", "query", aggregate, "error", err)
			return
		}

		t.invalidatePopularity(ctx)
	})
}

// TrackClick bumps the click counter for a previously tracked query.
func (t *Tracker) TrackClick(rawQuery string) {
	aggregate := query.NormalizeAggregate(rawQuery)
	if aggregate == "" {
		return
	}
	t.async(func(ctx context.Context) {
		if err := t.store.RecordClick(ctx, aggregate); err != nil {
			t.logger.Warn("click tracking failed", "query", aggregate, "error", err)
		}
	})
}

// TrackConversion bumps the conversion counter for a previously tracked
// query.
func (t *Tracker) TrackConversion(rawQuery string) {
	aggregate := query.NormalizeAggregate(rawQuery)
	if aggregate == "" {
		return
	}
	t.async(func(ctx context.Context) {
		if err := t.store.RecordConversion(ctx, aggregate); err != nil {
			t.logger.Warn("conversion tracking failed", "query", aggregate, "error", err)
		}
	})
}

// Wait blocks until every in-flight tracking write has finished. Called
// during shutdown so counts are not lost on deploy.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) async(fn func(context.Context)) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		fn(ctx)
	}()
}

func (t *Tracker) invalidatePopularity(ctx context.Context) {
	for _, op := range []string{cache.OpPopular, cache.OpTrending} {
		if err := t.cache.DeleteByPrefix(ctx, cache.OpPrefix(op)); err != nil {
			t.logger.Warn("popularity cache invalidation failed", "operation", op, "error", err)
		}
	}
}
