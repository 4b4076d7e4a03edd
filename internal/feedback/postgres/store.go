package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/feedback"
	"github.com/utafrali/catalog-search/pkg/database"
)

// popularColumns is the column list shared by every aggregate query.
const popularColumns = `query, search_count, click_count, conversion_count, last_searched_at`

// Store implements feedback.Store on the search_histories and
// popular_searches tables.
type Store struct {
	pool database.DBTX
}

// NewStore creates a Postgres-backed feedback store.
func NewStore(pool database.DBTX) *Store {
	return &Store{pool: pool}
}

// RecordSearch appends one history entry. Filters are stored as JSONB so the
// zero-result report can show what was constrained.
func (s *Store) RecordSearch(ctx context.Context, entry *domain.SearchHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var filters []byte
	if entry.Filters != nil && !entry.Filters.IsZero() {
		data, err := json.Marshal(entry.Filters)
		if err != nil {
			return fmt.Errorf("marshal filters: %w", err)
		}
		filters = data
	}

	query := `
		INSERT INTO search_histories (id, user_id, session_id, query, filters, result_count, ip_address, user_agent, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		entry.ID,
		entry.Actor.UserID,
		entry.Actor.SessionID,
		entry.Query,
		filters,
		entry.ResultCount,
		entry.Client.IPAddress,
		entry.Client.UserAgent,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert search history: %w", err)
	}
	return nil
}

// BumpSearchCount upserts the aggregate row for query. The increment happens
// inside the upsert so concurrent searches never lose counts.
func (s *Store) BumpSearchCount(ctx context.Context, query string) error {
	stmt := `
		INSERT INTO popular_searches (query, search_count, click_count, conversion_count, last_searched_at)
		VALUES ($1, 1, 0, 0, now())
		ON CONFLICT (query) DO UPDATE
		SET search_count = popular_searches.search_count + 1,
		    last_searched_at = now()`

	if _, err := s.pool.Exec(ctx, stmt, query); err != nil {
		return fmt.Errorf("bump search count: %w", err)
	}
	return nil
}

// RecordClick increments the click counter. An update that matches no row is
// not an error: clicks for untracked queries are dropped.
func (s *Store) RecordClick(ctx context.Context, query string) error {
	stmt := `UPDATE popular_searches SET click_count = click_count + 1 WHERE query = $1`

	if _, err := s.pool.Exec(ctx, stmt, query); err != nil {
		return fmt.Errorf("record click: %w", err)
	}
	return nil
}

// RecordConversion increments the conversion counter. Untracked queries are
// dropped, same as clicks.
func (s *Store) RecordConversion(ctx context.Context, query string) error {
	stmt := `UPDATE popular_searches SET conversion_count = conversion_count + 1 WHERE query = $1`

	if _, err := s.pool.Exec(ctx, stmt, query); err != nil {
		return fmt.Errorf("record conversion: %w", err)
	}
	return nil
}

// HistoryForActor returns the actor's searches grouped by query, most recent
// first. Authenticated actors match on user_id, anonymous ones on session_id.
func (s *Store) HistoryForActor(ctx context.Context, actor domain.Actor, limit int) ([]domain.HistorySummary, error) {
	if actor.IsZero() {
		return []domain.HistorySummary{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	where, arg := actorClause(actor)
	query := fmt.Sprintf(`
		SELECT query, COUNT(*) AS search_count, MAX(created_at) AS last_searched_at
		FROM search_histories
		WHERE %s
		GROUP BY query
		ORDER BY last_searched_at DESC
		LIMIT $2`, where)

	rows, err := s.pool.Query(ctx, query, arg, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	summaries := make([]domain.HistorySummary, 0)
	for rows.Next() {
		var sum domain.HistorySummary
		if err := rows.Scan(&sum.Query, &sum.SearchCount, &sum.LastSearchedAt); err != nil {
			return nil, fmt.Errorf("scan history summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return summaries, nil
}

// ClearHistory removes every history entry belonging to the actor.
func (s *Store) ClearHistory(ctx context.Context, actor domain.Actor) error {
	if actor.IsZero() {
		return nil
	}

	where, arg := actorClause(actor)
	query := fmt.Sprintf(`DELETE FROM search_histories WHERE %s`, where)

	if _, err := s.pool.Exec(ctx, query, arg); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// PopularQueries returns the all-time most searched queries.
func (s *Store) PopularQueries(ctx context.Context, limit int) ([]domain.PopularQuery, error) {
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM popular_searches
		WHERE search_count > 0
		ORDER BY search_count DESC
		LIMIT $1`, popularColumns)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query popular searches: %w", err)
	}
	defer rows.Close()

	return collectPopular(rows)
}

// TrendingQueries returns the most searched queries seen within the trailing
// window.
func (s *Store) TrendingQueries(ctx context.Context, days, limit int) ([]domain.PopularQuery, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM popular_searches
		WHERE search_count > 0 AND last_searched_at >= now() - make_interval(days => $1)
		ORDER BY search_count DESC
		LIMIT $2`, popularColumns)

	rows, err := s.pool.Query(ctx, query, days, limit)
	if err != nil {
		return nil, fmt.Errorf("query trending searches: %w", err)
	}
	defer rows.Close()

	return collectPopular(rows)
}

// ListPopular returns one page of aggregates. The sort column is validated by
// the caller against the accepted set; the order is normalized here.
func (s *Store) ListPopular(ctx context.Context, sortBy, sortOrder string, page, perPage int) ([]domain.PopularQuery, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	direction := "DESC"
	if sortOrder == "asc" {
		direction = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total
		FROM popular_searches
		ORDER BY %s %s
		LIMIT $1 OFFSET $2`, popularColumns, sortBy, direction)

	rows, err := s.pool.Query(ctx, query, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list popular searches: %w", err)
	}
	defer rows.Close()

	queries := make([]domain.PopularQuery, 0)
	total := 0
	for rows.Next() {
		var pq domain.PopularQuery
		if err := rows.Scan(&pq.Query, &pq.SearchCount, &pq.ClickCount, &pq.ConversionCount, &pq.LastSearchedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan popular search: %w", err)
		}
		queries = append(queries, pq)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate popular searches: %w", err)
	}
	return queries, total, nil
}

// SuggestQueries returns tracked queries starting with prefix, most searched
// first.
func (s *Store) SuggestQueries(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT query
		FROM popular_searches
		WHERE search_count > 0 AND query LIKE $1 || '%'
		ORDER BY search_count DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, escapeLike(prefix), limit)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := make([]string, 0)
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		suggestions = append(suggestions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return suggestions, nil
}

// ZeroResultQueries groups no-match history entries from the trailing window
// by query, most frequent first.
func (s *Store) ZeroResultQueries(ctx context.Context, days, limit int) ([]domain.ZeroResultQuery, error) {
	if days <= 0 {
		days = 30
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT query, COUNT(*) AS count, MAX(created_at) AS last_searched_at
		FROM search_histories
		WHERE result_count = 0 AND created_at >= now() - make_interval(days => $1)
		GROUP BY query
		ORDER BY count DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, days, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result searches: %w", err)
	}
	defer rows.Close()

	queries := make([]domain.ZeroResultQuery, 0)
	for rows.Next() {
		var zq domain.ZeroResultQuery
		if err := rows.Scan(&zq.Query, &zq.Count, &zq.LastSearchedAt); err != nil {
			return nil, fmt.Errorf("scan zero-result search: %w", err)
		}
		queries = append(queries, zq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate zero-result searches: %w", err)
	}
	return queries, nil
}

// Analytics builds the dashboard summary with one windowed aggregate query
// over the history log plus the all-time top searches.
func (s *Store) Analytics(ctx context.Context) (result *domain.SearchAnalytics, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= date_trunc('day', now())),
			COUNT(*) FILTER (WHERE created_at >= now() - interval '7 days'),
			COUNT(*) FILTER (WHERE created_at >= now() - interval '30 days'),
			COUNT(*),
			COUNT(DISTINCT query) FILTER (WHERE created_at >= date_trunc('day', now())),
			COUNT(DISTINCT query) FILTER (WHERE created_at >= now() - interval '7 days'),
			COUNT(DISTINCT query) FILTER (WHERE created_at >= now() - interval '30 days'),
			COALESCE(AVG(result_count) FILTER (WHERE created_at >= date_trunc('day', now())), 0),
			COALESCE(AVG(result_count) FILTER (WHERE created_at >= now() - interval '7 days'), 0),
			COUNT(*) FILTER (WHERE result_count = 0 AND created_at >= date_trunc('day', now())),
			COUNT(*) FILTER (WHERE result_count = 0 AND created_at >= now() - interval '7 days')
		FROM search_histories`

	ctx, end := database.TraceQuery(ctx, "Analytics", query)
	defer func() { end(err) }()

	analytics := &domain.SearchAnalytics{}
	err = s.pool.QueryRow(ctx, query).Scan(
		&analytics.TotalSearches.Today,
		&analytics.TotalSearches.ThisWeek,
		&analytics.TotalSearches.ThisMonth,
		&analytics.TotalSearches.AllTime,
		&analytics.UniqueQueries.Today,
		&analytics.UniqueQueries.ThisWeek,
		&analytics.UniqueQueries.ThisMonth,
		&analytics.AverageResults.Today,
		&analytics.AverageResults.ThisWeek,
		&analytics.ZeroResultSearches.Today,
		&analytics.ZeroResultSearches.ThisWeek,
	)
	if err != nil {
		return nil, fmt.Errorf("query analytics: %w", err)
	}

	analytics.TopSearches, err = s.PopularQueries(ctx, 10)
	if err != nil {
		return nil, err
	}

	analytics.RecentZeroResults, err = s.recentZeroResults(ctx, 10)
	if err != nil {
		return nil, err
	}

	return analytics, nil
}

// Performance aggregates the feedback counters and picks the queries with
// the best conversion ratio among those with a meaningful sample size.
func (s *Store) Performance(ctx context.Context) (*domain.SearchPerformance, error) {
	overviewQuery := `
		SELECT
			COALESCE(SUM(search_count), 0),
			COALESCE(SUM(click_count), 0),
			COALESCE(SUM(conversion_count), 0),
			COALESCE(AVG(CASE WHEN search_count > 0 THEN click_count * 100.0 / search_count ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN click_count > 0 THEN conversion_count * 100.0 / click_count ELSE 0 END), 0)
		FROM popular_searches`

	perf := &domain.SearchPerformance{}
	err := s.pool.QueryRow(ctx, overviewQuery).Scan(
		&perf.Overview.TotalSearches,
		&perf.Overview.TotalClicks,
		&perf.Overview.TotalConversions,
		&perf.Overview.AverageCTR,
		&perf.Overview.AverageConversionRate,
	)
	if err != nil {
		return nil, fmt.Errorf("query performance overview: %w", err)
	}

	topQuery := fmt.Sprintf(`
		SELECT %s
		FROM popular_searches
		WHERE search_count >= 10 AND conversion_count > 0
		ORDER BY conversion_count::float / search_count DESC
		LIMIT 10`, popularColumns)

	rows, err := s.pool.Query(ctx, topQuery)
	if err != nil {
		return nil, fmt.Errorf("query top performers: %w", err)
	}
	defer rows.Close()

	perf.TopPerformers, err = collectPopular(rows)
	if err != nil {
		return nil, err
	}
	return perf, nil
}

// ResetCounters zeroes aggregate counters per the given scope. The scope is
// validated by the caller.
func (s *Store) ResetCounters(ctx context.Context, scope string) error {
	var stmt string
	switch scope {
	case feedback.ResetClicks:
		stmt = `UPDATE popular_searches SET click_count = 0`
	case feedback.ResetConversions:
		stmt = `UPDATE popular_searches SET conversion_count = 0`
	default:
		stmt = `UPDATE popular_searches SET search_count = 0, click_count = 0, conversion_count = 0`
	}

	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	return nil
}

// DeleteHistoryOlderThan purges history entries created before cutoff.
func (s *Store) DeleteHistoryOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM search_histories WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old history: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ───────────────────────────────── Helpers ─────────────────────────────────

// actorClause returns the WHERE fragment and argument selecting one actor's
// history rows.
func actorClause(actor domain.Actor) (string, string) {
	if actor.UserID != "" {
		return "user_id = $1", actor.UserID
	}
	return "session_id = $1", actor.SessionID
}

// escapeLike escapes the LIKE metacharacters in a user-supplied prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func (s *Store) recentZeroResults(ctx context.Context, limit int) ([]domain.RecentZeroResult, error) {
	query := `
		SELECT query, created_at
		FROM search_histories
		WHERE result_count = 0
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent zero results: %w", err)
	}
	defer rows.Close()

	results := make([]domain.RecentZeroResult, 0)
	for rows.Next() {
		var rz domain.RecentZeroResult
		if err := rows.Scan(&rz.Query, &rz.SearchedAt); err != nil {
			return nil, fmt.Errorf("scan recent zero result: %w", err)
		}
		results = append(results, rz)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent zero results: %w", err)
	}
	return results, nil
}

func collectPopular(rows pgx.Rows) ([]domain.PopularQuery, error) {
	queries := make([]domain.PopularQuery, 0)
	for rows.Next() {
		var pq domain.PopularQuery
		if err := rows.Scan(&pq.Query, &pq.SearchCount, &pq.ClickCount, &pq.ConversionCount, &pq.LastSearchedAt); err != nil {
			return nil, fmt.Errorf("scan popular search: %w", err)
		}
		queries = append(queries, pq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate popular searches: %w", err)
	}
	return queries, nil
}
