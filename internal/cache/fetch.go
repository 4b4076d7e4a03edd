package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_hits_total",
			Help: "Number of result cache hits by operation.",
		},
		[]string{"operation"},
	)

	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_misses_total",
			Help: "Number of result cache misses by operation.",
		},
		[]string{"operation"},
	)

	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_errors_total",
			Help: "Number of cache backend errors by operation.",
		},
		[]string{"operation"},
	)
)

// Fetch reads a value through the cache. A hit is decoded and returned
// without calling compute. On a miss, compute runs and its result is stored
// under key with the given TTL. Cache failures on either side are logged and
// counted but never fail the request; the caller always gets a computed
// result when the cache is unavailable.
func Fetch[T any](ctx context.Context, store Store, logger *slog.Logger, op, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T

	data, found, err := store.Get(ctx, key)
	if err != nil {
		cacheErrors.WithLabelValues(op).Inc()
		logger.Warn("cache read failed, recomputing", "operation", op, "error", err)
	} else if found {
		var value T
		if err := json.Unmarshal(data, &value); err != nil {
			cacheErrors.WithLabelValues(op).Inc()
			logger.Warn("cache entry undecodable, recomputing", "operation", op, "error", err)
		} else {
			cacheHits.WithLabelValues(op).Inc()
			return value, nil
		}
	} else {
		cacheMisses.WithLabelValues(op).Inc()
	}

	value, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	data, err = json.Marshal(value)
	if err != nil {
		cacheErrors.WithLabelValues(op).Inc()
		logger.Warn("cache encode failed", "operation", op, "error", err)
		return value, nil
	}
	if err := store.Set(ctx, key, data, ttl); err != nil {
		cacheErrors.WithLabelValues(op).Inc()
		logger.Warn("cache write failed", "operation", op, "error", err)
	}

	return value, nil
}
