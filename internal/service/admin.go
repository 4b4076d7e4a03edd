package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/catalog-search/internal/cache"
	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/feedback"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
)

// AdminService exposes the analytics and maintenance operations of the
// search subsystem.
type AdminService struct {
	store  feedback.Store
	cache  cache.Store
	logger *slog.Logger
}

// NewAdminService creates the admin service.
func NewAdminService(store feedback.Store, cacheStore cache.Store, logger *slog.Logger) *AdminService {
	return &AdminService{
		store:  store,
		cache:  cacheStore,
		logger: logger,
	}
}

// Analytics builds the search activity dashboard.
func (s *AdminService) Analytics(ctx context.Context) (*domain.SearchAnalytics, error) {
	analytics, err := s.store.Analytics(ctx)
	if err != nil {
		return nil, backendError(err)
	}
	return analytics, nil
}

// Performance builds the feedback counter overview.
func (s *AdminService) Performance(ctx context.Context) (*domain.SearchPerformance, error) {
	perf, err := s.store.Performance(ctx)
	if err != nil {
		return nil, backendError(err)
	}
	return perf, nil
}

// ListPopular returns one page of query aggregates for the admin listing.
// The sort column must come from the accepted set.
func (s *AdminService) ListPopular(ctx context.Context, sortBy, sortOrder string, page, perPage int) ([]domain.PopularQuery, int, error) {
	if sortBy == "" {
		sortBy = "search_count"
	}
	if !feedback.IsValidPopularSort(sortBy) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unknown sort column %q", sortBy))
	}
	if sortOrder == "" {
		sortOrder = "desc"
	}
	if sortOrder != "asc" && sortOrder != "desc" {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unknown sort order %q", sortOrder))
	}
	page, perPage = normalizePage(page, perPage)

	queries, total, err := s.store.ListPopular(ctx, sortBy, sortOrder, page, perPage)
	if err != nil {
		return nil, 0, backendError(err)
	}
	return queries, total, nil
}

// ZeroResults reports queries that matched nothing within the trailing
// window. These are merchandising gaps or missing synonyms.
func (s *AdminService) ZeroResults(ctx context.Context, days, limit int) ([]domain.ZeroResultQuery, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	queries, err := s.store.ZeroResultQueries(ctx, days, limit)
	if err != nil {
		return nil, backendError(err)
	}
	return queries, nil
}

// ResetStats zeroes the aggregate counters per scope and invalidates the
// popularity caches so stale listings disappear immediately.
func (s *AdminService) ResetStats(ctx context.Context, scope string) error {
	switch scope {
	case "":
		scope = feedback.ResetAll
	case feedback.ResetAll, feedback.ResetClicks, feedback.ResetConversions:
	default:
		return apperrors.InvalidInput(fmt.Sprintf("unknown reset scope %q", scope))
	}

	if err := s.store.ResetCounters(ctx, scope); err != nil {
		return backendError(err)
	}

	for _, op := range []string{cache.OpPopular, cache.OpTrending} {
		if err := s.cache.DeleteByPrefix(ctx, cache.OpPrefix(op)); err != nil {
			s.logger.Warn("popularity cache invalidation failed", "operation", op, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "search statistics reset", slog.String("scope", scope))
	return nil
}

// CleanupHistory purges history entries older than the given number of days
// and returns how many were removed.
func (s *AdminService) CleanupHistory(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = 90
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, err := s.store.DeleteHistoryOlderThan(ctx, cutoff)
	if err != nil {
		return 0, backendError(err)
	}

	s.logger.InfoContext(ctx, "search history cleaned up",
		slog.Int64("deleted", deleted),
		slog.Int("older_than_days", days),
	)
	return deleted, nil
}

// RunRetentionJanitor purges expired history on a fixed interval until the
// context is cancelled. Run in its own goroutine.
func (s *AdminService) RunRetentionJanitor(ctx context.Context, retentionDays int, interval time.Duration) {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("retention janitor started",
		"retention_days", retentionDays,
		"interval", interval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention janitor stopped")
			return
		case <-ticker.C:
			if _, err := s.CleanupHistory(ctx, retentionDays); err != nil {
				s.logger.Error("retention cleanup failed", "error", err)
			}
		}
	}
}
