package feedback

import (
	"context"
	"time"

	"github.com/utafrali/catalog-search/internal/domain"
)

// Reset scopes accepted by ResetCounters.
const (
	ResetAll         = "all"
	ResetClicks      = "clicks"
	ResetConversions = "conversions"
)

// Popular listing sort columns accepted by ListPopular. Anything outside the
// set is rejected at the HTTP boundary.
var popularSortColumns = map[string]struct{}{
	"search_count":     {},
	"click_count":      {},
	"conversion_count": {},
	"last_searched_at": {},
	"query":            {},
}

// IsValidPopularSort reports whether column is an accepted popular listing
// sort column.
func IsValidPopularSort(column string) bool {
	_, ok := popularSortColumns[column]
	return ok
}

// Store persists search feedback: the append-only history log and the
// per-query popularity aggregates.
type Store interface {
	// RecordSearch appends one history entry.
	RecordSearch(ctx context.Context, entry *domain.SearchHistoryEntry) error

	// BumpSearchCount increments the aggregate for query, creating the row
	// on first sight. The upsert is atomic under concurrent searches.
	BumpSearchCount(ctx context.Context, query string) error

	// RecordClick increments the click counter for query. Unknown queries
	// are a silent no-op; a click can only follow a tracked search.
	RecordClick(ctx context.Context, query string) error

	// RecordConversion increments the conversion counter for query. Unknown
	// queries are a silent no-op.
	RecordConversion(ctx context.Context, query string) error

	// HistoryForActor returns the actor's history grouped by query, most
	// recent first.
	HistoryForActor(ctx context.Context, actor domain.Actor, limit int) ([]domain.HistorySummary, error)

	// ClearHistory removes every history entry belonging to the actor.
	ClearHistory(ctx context.Context, actor domain.Actor) error

	// PopularQueries returns the all-time most searched queries.
	PopularQueries(ctx context.Context, limit int) ([]domain.PopularQuery, error)

	// TrendingQueries returns the most searched queries whose last search
	// falls within the trailing window.
	TrendingQueries(ctx context.Context, days, limit int) ([]domain.PopularQuery, error)

	// ListPopular returns one page of aggregates sorted by the given column
	// and order, plus the total row count. The column must come from the
	// accepted sort set.
	ListPopular(ctx context.Context, sortBy, sortOrder string, page, perPage int) ([]domain.PopularQuery, int, error)

	// SuggestQueries returns tracked queries starting with prefix, most
	// searched first. Feeds the query suggestion surface.
	SuggestQueries(ctx context.Context, prefix string, limit int) ([]string, error)

	// ZeroResultQueries returns queries that produced no matches within the
	// trailing window, grouped by query and ordered by frequency.
	ZeroResultQueries(ctx context.Context, days, limit int) ([]domain.ZeroResultQuery, error)

	// Analytics builds the admin dashboard summary.
	Analytics(ctx context.Context) (*domain.SearchAnalytics, error)

	// Performance builds the feedback counter overview and top performers.
	Performance(ctx context.Context) (*domain.SearchPerformance, error)

	// ResetCounters zeroes aggregate counters per the given scope.
	ResetCounters(ctx context.Context, scope string) error

	// DeleteHistoryOlderThan purges history entries created before cutoff
	// and returns how many were removed.
	DeleteHistoryOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
