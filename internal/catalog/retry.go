package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/utafrali/catalog-search/internal/domain"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 100 * time.Millisecond
)

// RetryingIndex wraps an ItemIndex and retries failed read operations with a
// short linear backoff. Write operations pass through untouched since the
// event consumer already re-delivers on failure. Callers see only the last
// error once the attempts are exhausted.
type RetryingIndex struct {
	inner    ItemIndex
	attempts int
	delay    time.Duration
	logger   *slog.Logger
}

// NewRetryingIndex wraps inner with read-path retries. A non-positive
// attempts count falls back to the default of 3.
func NewRetryingIndex(inner ItemIndex, attempts int, logger *slog.Logger) *RetryingIndex {
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	return &RetryingIndex{
		inner:    inner,
		attempts: attempts,
		delay:    defaultRetryDelay,
		logger:   logger,
	}
}

func (r *RetryingIndex) FindActiveByText(ctx context.Context, expandedQuery string) ([]domain.ScoredItem, error) {
	return retry(ctx, r, "text search", func() ([]domain.ScoredItem, error) {
		return r.inner.FindActiveByText(ctx, expandedQuery)
	})
}

func (r *RetryingIndex) FindActiveBySubstring(ctx context.Context, normalizedQuery string) ([]domain.CatalogItem, error) {
	return retry(ctx, r, "substring search", func() ([]domain.CatalogItem, error) {
		return r.inner.FindActiveBySubstring(ctx, normalizedQuery)
	})
}

func (r *RetryingIndex) AllActive(ctx context.Context) ([]domain.CatalogItem, error) {
	return retry(ctx, r, "browse", func() ([]domain.CatalogItem, error) {
		return r.inner.AllActive(ctx)
	})
}

func (r *RetryingIndex) Index(ctx context.Context, item *domain.CatalogItem) error {
	return r.inner.Index(ctx, item)
}

func (r *RetryingIndex) Delete(ctx context.Context, id string) error {
	return r.inner.Delete(ctx, id)
}

func (r *RetryingIndex) BulkIndex(ctx context.Context, items []domain.CatalogItem) error {
	return r.inner.BulkIndex(ctx, items)
}

func (r *RetryingIndex) Ping(ctx context.Context) error {
	return r.inner.Ping(ctx)
}

// retry runs op up to r.attempts times, sleeping r.delay*attempt between
// tries. Context cancellation aborts immediately.
func retry[T any](ctx context.Context, r *RetryingIndex, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}

		if attempt < r.attempts {
			r.logger.Warn("catalog read failed, retrying",
				"operation", op,
				"attempt", attempt,
				"error", err,
			)
			select {
			case <-time.After(r.delay * time.Duration(attempt)):
			case <-ctx.Done():
				return zero, lastErr
			}
		}
	}

	return zero, lastErr
}
