package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/internal/synonym"
	"github.com/utafrali/catalog-search/pkg/health"
	"github.com/utafrali/catalog-search/pkg/middleware"
)

// RouterDeps bundles the services the router exposes.
type RouterDeps struct {
	Search   *service.SearchService
	Admin    *service.AdminService
	Indexer  *service.IndexService
	Reindex  *service.ReindexService
	Synonyms *synonym.Service
	Health   *health.Handler
	CORS     middleware.CORSConfig
}

// NewRouter creates a chi router with all search routes registered.
func NewRouter(deps RouterDeps, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(deps.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("search"))
	r.Use(middleware.Tracing("search"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	searchHandler := NewSearchHandler(deps.Search, logger)
	adminHandler := NewAdminHandler(deps.Admin, deps.Indexer, deps.Reindex, deps.Synonyms, logger)

	r.Route("/api/v1/search", func(r chi.Router) {
		r.Get("/", searchHandler.Search)
		r.Get("/all", searchHandler.SearchAll)
		r.Get("/autocomplete", searchHandler.Autocomplete)
		r.Get("/suggestions", searchHandler.Suggestions)

		// Popularity listings change slowly; let clients cache them briefly.
		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(60))
			r.Get("/popular", searchHandler.Popular)
			r.Get("/trending", searchHandler.Trending)
		})

		r.Get("/history", searchHandler.History)
		r.Delete("/history", searchHandler.ClearHistory)

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Post("/track", searchHandler.Track)
		})
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Route("/search", func(r chi.Router) {
			r.Get("/analytics", adminHandler.Analytics)
			r.Get("/performance", adminHandler.Performance)
			r.Get("/popular", adminHandler.ListPopular)
			r.Get("/zero-results", adminHandler.ZeroResults)

			r.Group(func(r chi.Router) {
				r.Use(ContentTypeJSON)
				r.Post("/reset", adminHandler.ResetStats)
				r.Post("/cleanup", adminHandler.Cleanup)
				r.Post("/index", adminHandler.IndexItem)
				r.Post("/bulk", adminHandler.BulkIndex)
				r.Post("/reindex", adminHandler.Reindex)
			})
			r.Delete("/index/{id}", adminHandler.DeleteItem)
		})

		r.Route("/synonyms", func(r chi.Router) {
			r.Get("/", adminHandler.ListSynonyms)
			r.Get("/{id}", adminHandler.GetSynonym)
			r.Delete("/{id}", adminHandler.DeleteSynonym)

			r.Group(func(r chi.Router) {
				r.Use(ContentTypeJSON)
				r.Post("/", adminHandler.CreateSynonym)
				r.Put("/{id}", adminHandler.UpdateSynonym)
				r.Post("/import", adminHandler.ImportSynonyms)
			})
		})
	})

	return r
}
