package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/feedback"
)

// Store is an in-process feedback.Store for single-instance deployments and
// tests. All operations are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	history []domain.SearchHistoryEntry
	popular map[string]*domain.PopularQuery
}

// NewStore creates an empty in-memory feedback store.
func NewStore() *Store {
	return &Store{
		popular: make(map[string]*domain.PopularQuery),
	}
}

func (s *Store) RecordSearch(_ context.Context, entry *domain.SearchHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entry
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.history = append(s.history, stored)
	return nil
}

func (s *Store) BumpSearchCount(_ context.Context, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pq, ok := s.popular[query]
	if !ok {
		pq = &domain.PopularQuery{Query: query}
		s.popular[query] = pq
	}
	pq.SearchCount++
	pq.LastSearchedAt = time.Now().UTC()
	return nil
}

func (s *Store) RecordClick(_ context.Context, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pq, ok := s.popular[query]; ok {
		pq.ClickCount++
	}
	return nil
}

func (s *Store) RecordConversion(_ context.Context, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pq, ok := s.popular[query]; ok {
		pq.ConversionCount++
	}
	return nil
}

func (s *Store) HistoryForActor(_ context.Context, actor domain.Actor, limit int) ([]domain.HistorySummary, error) {
	if actor.IsZero() {
		return []domain.HistorySummary{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	grouped := make(map[string]*domain.HistorySummary)
	for i := range s.history {
		entry := &s.history[i]
		if !matchesActor(entry, actor) {
			continue
		}
		sum, ok := grouped[entry.Query]
		if !ok {
			sum = &domain.HistorySummary{Query: entry.Query}
			grouped[entry.Query] = sum
		}
		sum.SearchCount++
		if entry.CreatedAt.After(sum.LastSearchedAt) {
			sum.LastSearchedAt = entry.CreatedAt
		}
	}

	summaries := make([]domain.HistorySummary, 0, len(grouped))
	for _, sum := range grouped {
		summaries = append(summaries, *sum)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastSearchedAt.After(summaries[j].LastSearchedAt)
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (s *Store) ClearHistory(_ context.Context, actor domain.Actor) error {
	if actor.IsZero() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.history[:0]
	for i := range s.history {
		if !matchesActor(&s.history[i], actor) {
			kept = append(kept, s.history[i])
		}
	}
	s.history = kept
	return nil
}

func (s *Store) PopularQueries(_ context.Context, limit int) ([]domain.PopularQuery, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	queries := s.snapshotPopular(func(pq *domain.PopularQuery) bool {
		return pq.SearchCount > 0
	})
	sortPopular(queries, "search_count", "desc")
	if len(queries) > limit {
		queries = queries[:limit]
	}
	return queries, nil
}

func (s *Store) TrendingQueries(_ context.Context, days, limit int) ([]domain.PopularQuery, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 {
		limit = 10
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	s.mu.Lock()
	defer s.mu.Unlock()

	queries := s.snapshotPopular(func(pq *domain.PopularQuery) bool {
		return pq.SearchCount > 0 && pq.LastSearchedAt.After(cutoff)
	})
	sortPopular(queries, "search_count", "desc")
	if len(queries) > limit {
		queries = queries[:limit]
	}
	return queries, nil
}

func (s *Store) ListPopular(_ context.Context, sortBy, sortOrder string, page, perPage int) ([]domain.PopularQuery, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	queries := s.snapshotPopular(nil)
	sortPopular(queries, sortBy, sortOrder)

	total := len(queries)
	offset := (page - 1) * perPage
	if offset >= total {
		return []domain.PopularQuery{}, total, nil
	}
	end := offset + perPage
	if end > total {
		end = total
	}
	return queries[offset:end], total, nil
}

func (s *Store) SuggestQueries(_ context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.snapshotPopular(func(pq *domain.PopularQuery) bool {
		return pq.SearchCount > 0 && strings.HasPrefix(pq.Query, prefix)
	})
	sortPopular(matched, "search_count", "desc")

	suggestions := make([]string, 0, len(matched))
	for _, pq := range matched {
		suggestions = append(suggestions, pq.Query)
		if len(suggestions) == limit {
			break
		}
	}
	return suggestions, nil
}

func (s *Store) ZeroResultQueries(_ context.Context, days, limit int) ([]domain.ZeroResultQuery, error) {
	if days <= 0 {
		days = 30
	}
	if limit <= 0 {
		limit = 20
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	s.mu.Lock()
	defer s.mu.Unlock()

	grouped := make(map[string]*domain.ZeroResultQuery)
	for i := range s.history {
		entry := &s.history[i]
		if entry.ResultCount != 0 || entry.CreatedAt.Before(cutoff) {
			continue
		}
		zq, ok := grouped[entry.Query]
		if !ok {
			zq = &domain.ZeroResultQuery{Query: entry.Query}
			grouped[entry.Query] = zq
		}
		zq.Count++
		if entry.CreatedAt.After(zq.LastSearchedAt) {
			zq.LastSearchedAt = entry.CreatedAt
		}
	}

	queries := make([]domain.ZeroResultQuery, 0, len(grouped))
	for _, zq := range grouped {
		queries = append(queries, *zq)
	}
	sort.Slice(queries, func(i, j int) bool { return queries[i].Count > queries[j].Count })
	if len(queries) > limit {
		queries = queries[:limit]
	}
	return queries, nil
}

func (s *Store) Analytics(ctx context.Context) (*domain.SearchAnalytics, error) {
	s.mu.Lock()

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)

	analytics := &domain.SearchAnalytics{}
	uniqueToday := make(map[string]struct{})
	uniqueWeek := make(map[string]struct{})
	uniqueMonth := make(map[string]struct{})
	var sumToday, sumWeek int64
	var nToday, nWeek int64

	for i := range s.history {
		entry := &s.history[i]
		analytics.TotalSearches.AllTime++
		if !entry.CreatedAt.Before(monthAgo) {
			analytics.TotalSearches.ThisMonth++
			uniqueMonth[entry.Query] = struct{}{}
		}
		if !entry.CreatedAt.Before(weekAgo) {
			analytics.TotalSearches.ThisWeek++
			uniqueWeek[entry.Query] = struct{}{}
			sumWeek += int64(entry.ResultCount)
			nWeek++
			if entry.ResultCount == 0 {
				analytics.ZeroResultSearches.ThisWeek++
			}
		}
		if !entry.CreatedAt.Before(today) {
			analytics.TotalSearches.Today++
			uniqueToday[entry.Query] = struct{}{}
			sumToday += int64(entry.ResultCount)
			nToday++
			if entry.ResultCount == 0 {
				analytics.ZeroResultSearches.Today++
			}
		}
	}

	analytics.UniqueQueries.Today = int64(len(uniqueToday))
	analytics.UniqueQueries.ThisWeek = int64(len(uniqueWeek))
	analytics.UniqueQueries.ThisMonth = int64(len(uniqueMonth))
	if nToday > 0 {
		analytics.AverageResults.Today = float64(sumToday) / float64(nToday)
	}
	if nWeek > 0 {
		analytics.AverageResults.ThisWeek = float64(sumWeek) / float64(nWeek)
	}

	recent := make([]domain.RecentZeroResult, 0)
	for i := len(s.history) - 1; i >= 0 && len(recent) < 10; i-- {
		if s.history[i].ResultCount == 0 {
			recent = append(recent, domain.RecentZeroResult{
				Query:      s.history[i].Query,
				SearchedAt: s.history[i].CreatedAt,
			})
		}
	}
	analytics.RecentZeroResults = recent

	s.mu.Unlock()

	top, err := s.PopularQueries(ctx, 10)
	if err != nil {
		return nil, err
	}
	analytics.TopSearches = top
	return analytics, nil
}

func (s *Store) Performance(_ context.Context) (*domain.SearchPerformance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	perf := &domain.SearchPerformance{}
	var ctrSum, convSum float64
	var n int64

	performers := make([]domain.PopularQuery, 0)
	for _, pq := range s.popular {
		perf.Overview.TotalSearches += pq.SearchCount
		perf.Overview.TotalClicks += pq.ClickCount
		perf.Overview.TotalConversions += pq.ConversionCount
		ctrSum += pq.CTR()
		convSum += pq.ConversionRate()
		n++

		if pq.SearchCount >= 10 && pq.ConversionCount > 0 {
			performers = append(performers, *pq)
		}
	}
	if n > 0 {
		perf.Overview.AverageCTR = ctrSum / float64(n)
		perf.Overview.AverageConversionRate = convSum / float64(n)
	}

	sort.Slice(performers, func(i, j int) bool {
		ri := float64(performers[i].ConversionCount) / float64(performers[i].SearchCount)
		rj := float64(performers[j].ConversionCount) / float64(performers[j].SearchCount)
		return ri > rj
	})
	if len(performers) > 10 {
		performers = performers[:10]
	}
	perf.TopPerformers = performers
	return perf, nil
}

func (s *Store) ResetCounters(_ context.Context, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pq := range s.popular {
		switch scope {
		case feedback.ResetClicks:
			pq.ClickCount = 0
		case feedback.ResetConversions:
			pq.ConversionCount = 0
		default:
			pq.SearchCount = 0
			pq.ClickCount = 0
			pq.ConversionCount = 0
		}
	}
	return nil
}

func (s *Store) DeleteHistoryOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.history[:0]
	var deleted int64
	for i := range s.history {
		if s.history[i].CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, s.history[i])
	}
	s.history = kept
	return deleted, nil
}

// ───────────────────────────────── Helpers ─────────────────────────────────

func matchesActor(entry *domain.SearchHistoryEntry, actor domain.Actor) bool {
	if actor.UserID != "" {
		return entry.Actor.UserID == actor.UserID
	}
	return entry.Actor.SessionID == actor.SessionID
}

func (s *Store) snapshotPopular(keep func(*domain.PopularQuery) bool) []domain.PopularQuery {
	queries := make([]domain.PopularQuery, 0, len(s.popular))
	for _, pq := range s.popular {
		if keep != nil && !keep(pq) {
			continue
		}
		queries = append(queries, *pq)
	}
	return queries
}

func sortPopular(queries []domain.PopularQuery, sortBy, sortOrder string) {
	less := func(i, j int) bool { return queries[i].SearchCount > queries[j].SearchCount }
	switch sortBy {
	case "click_count":
		less = func(i, j int) bool { return queries[i].ClickCount > queries[j].ClickCount }
	case "conversion_count":
		less = func(i, j int) bool { return queries[i].ConversionCount > queries[j].ConversionCount }
	case "last_searched_at":
		less = func(i, j int) bool { return queries[i].LastSearchedAt.After(queries[j].LastSearchedAt) }
	case "query":
		less = func(i, j int) bool { return strings.ToLower(queries[i].Query) > strings.ToLower(queries[j].Query) }
	}

	sort.SliceStable(queries, func(i, j int) bool {
		if sortOrder == "asc" {
			return less(j, i)
		}
		return less(i, j)
	})
}
