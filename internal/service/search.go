package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/utafrali/catalog-search/internal/cache"
	"github.com/utafrali/catalog-search/internal/catalog"
	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/feedback"
	"github.com/utafrali/catalog-search/internal/query"
	"github.com/utafrali/catalog-search/internal/search"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
)

// Cross-entity and autocomplete surface limits.
const (
	searchAllProductLimit  = 10
	searchAllCategoryLimit = 5
	searchAllBrandLimit    = 5

	autocompleteSuggestionLimit = 5
	autocompleteProductLimit    = 4
	autocompleteCategoryLimit   = 3
	autocompleteBrandLimit      = 3

	suggestionNameLimit = 50
	minSuggestionRunes  = 2
)

// Config carries the cache TTLs of the read surfaces. Search results and
// popularity listings live longer than the keystroke-driven suggestion
// surfaces.
type Config struct {
	SearchCacheTTL  time.Duration
	SuggestCacheTTL time.Duration
}

// Tracker records feedback without blocking the request path.
type Tracker interface {
	TrackSearch(entry *domain.SearchHistoryEntry)
	TrackClick(rawQuery string)
	TrackConversion(rawQuery string)
}

// SearchService orchestrates a search request: query pre-processing, the
// ranking engine, the result cache, and feedback tracking. Tracking sits
// above the cache so cache hits still count toward popularity.
type SearchService struct {
	engine   *search.Engine
	expander *query.Expander
	taxonomy catalog.Taxonomy
	cache    cache.Store
	store    feedback.Store
	tracker  Tracker
	cfg      Config
	logger   *slog.Logger
}

// NewSearchService creates the search orchestrator.
func NewSearchService(
	engine *search.Engine,
	expander *query.Expander,
	taxonomy catalog.Taxonomy,
	cacheStore cache.Store,
	store feedback.Store,
	tracker Tracker,
	cfg Config,
	logger *slog.Logger,
) *SearchService {
	if cfg.SearchCacheTTL <= 0 {
		cfg.SearchCacheTTL = 5 * time.Minute
	}
	if cfg.SuggestCacheTTL <= 0 {
		cfg.SuggestCacheTTL = time.Minute
	}
	return &SearchService{
		engine:   engine,
		expander: expander,
		taxonomy: taxonomy,
		cache:    cacheStore,
		store:    store,
		tracker:  tracker,
		cfg:      cfg,
		logger:   logger,
	}
}

// SearchInput is the full parameter set of one search request.
type SearchInput struct {
	Query   string
	Filters domain.SearchFilters
	Page    int
	PerPage int
	Actor   domain.Actor
	Client  domain.ClientMeta
}

// Search executes one ranked, filtered, paginated product search. Identical
// requests inside the TTL window are served from the cache; the search is
// tracked either way.
func (s *SearchService) Search(ctx context.Context, input *SearchInput) (*domain.SearchResult, error) {
	if err := validateFilters(&input.Filters); err != nil {
		return nil, err
	}

	normalized := query.Normalize(input.Query, query.MaxSearchQueryLen)
	page, perPage := normalizePage(input.Page, input.PerPage)

	key := cache.SearchKey(cache.OpSearch, normalized, &input.Filters, page, perPage)
	result, err := cache.Fetch(ctx, s.cache, s.logger, cache.OpSearch, key, s.cfg.SearchCacheTTL,
		func(ctx context.Context) (*domain.SearchResult, error) {
			expanded := s.expander.Expand(ctx, normalized)
			req := &domain.SearchRequest{Query: normalized, Filters: input.Filters, Page: page, PerPage: perPage}
			return s.engine.Search(ctx, normalized, expanded, req)
		})
	if err != nil {
		return nil, backendError(err)
	}

	if normalized != "" {
		filters := input.Filters
		s.tracker.TrackSearch(&domain.SearchHistoryEntry{
			Query:       normalized,
			Filters:     &filters,
			ResultCount: result.Total,
			Actor:       input.Actor,
			Client:      input.Client,
		})
	}

	s.logger.DebugContext(ctx, "search executed",
		slog.String("query", normalized),
		slog.Int("total", result.Total),
		slog.Int64("took_ms", result.TookMs),
	)
	return result, nil
}

// SearchAll runs the cross-entity quick search: a handful of the best
// product, category, and brand matches. Not tracked and not paginated.
func (s *SearchService) SearchAll(ctx context.Context, rawQuery string) (*domain.QuickSearchResult, error) {
	normalized := query.Normalize(rawQuery, query.MaxSearchQueryLen)
	if normalized == "" {
		return emptyQuickResult(), nil
	}

	key := cache.SearchKey(cache.OpSearchAll, normalized, &domain.SearchFilters{}, 1, searchAllProductLimit)
	result, err := cache.Fetch(ctx, s.cache, s.logger, cache.OpSearchAll, key, s.cfg.SearchCacheTTL,
		func(ctx context.Context) (*domain.QuickSearchResult, error) {
			return s.quickSearch(ctx, normalized)
		})
	if err != nil {
		return nil, backendError(err)
	}
	return result, nil
}

// Autocomplete returns the surfaces shown under a search box while typing.
// Queries shorter than two runes return empty surfaces without touching any
// backend.
func (s *SearchService) Autocomplete(ctx context.Context, rawQuery string) (*domain.AutocompleteResult, error) {
	normalized := query.Normalize(rawQuery, query.MaxAutocompleteQueryLen)
	if runeCount(normalized) < minSuggestionRunes {
		return emptyAutocompleteResult(), nil
	}

	key := cache.SearchKey(cache.OpAutocomplete, normalized, &domain.SearchFilters{}, 1, autocompleteProductLimit)
	result, err := cache.Fetch(ctx, s.cache, s.logger, cache.OpAutocomplete, key, s.cfg.SuggestCacheTTL,
		func(ctx context.Context) (*domain.AutocompleteResult, error) {
			return s.autocomplete(ctx, normalized)
		})
	if err != nil {
		return nil, backendError(err)
	}
	return result, nil
}

// Suggestions returns query completion strings for a prefix, merged from
// tracked queries, product names, and category names.
func (s *SearchService) Suggestions(ctx context.Context, rawQuery string, limit int) ([]string, error) {
	normalized := query.Normalize(rawQuery, query.MaxAutocompleteQueryLen)
	if runeCount(normalized) < minSuggestionRunes {
		return []string{}, nil
	}
	if limit <= 0 || limit > 20 {
		limit = 10
	}

	key := cache.SearchKey(cache.OpSuggestions, normalized, &domain.SearchFilters{}, 1, limit)
	suggestions, err := cache.Fetch(ctx, s.cache, s.logger, cache.OpSuggestions, key, s.cfg.SuggestCacheTTL,
		func(ctx context.Context) ([]string, error) {
			return s.suggestionsFor(ctx, normalized, limit)
		})
	if err != nil {
		return nil, backendError(err)
	}
	return suggestions, nil
}

// Popular returns the all-time most searched queries.
func (s *SearchService) Popular(ctx context.Context, limit int) ([]domain.PopularQuery, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	key := cache.ParamsKey(cache.OpPopular, map[string]string{"limit": strconv.Itoa(limit)})
	queries, err := cache.Fetch(ctx, s.cache, s.logger, cache.OpPopular, key, s.cfg.SearchCacheTTL,
		func(ctx context.Context) ([]domain.PopularQuery, error) {
			return s.store.PopularQueries(ctx, limit)
		})
	if err != nil {
		return nil, backendError(err)
	}
	return queries, nil
}

// Trending returns the most searched queries of the trailing window.
func (s *SearchService) Trending(ctx context.Context, days, limit int) ([]domain.PopularQuery, error) {
	if days <= 0 || days > 90 {
		days = 7
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	key := cache.ParamsKey(cache.OpTrending, map[string]string{
		"days":  strconv.Itoa(days),
		"limit": strconv.Itoa(limit),
	})
	queries, err := cache.Fetch(ctx, s.cache, s.logger, cache.OpTrending, key, s.cfg.SearchCacheTTL,
		func(ctx context.Context) ([]domain.PopularQuery, error) {
			return s.store.TrendingQueries(ctx, days, limit)
		})
	if err != nil {
		return nil, backendError(err)
	}
	return queries, nil
}

// History returns the actor's search history grouped by query.
func (s *SearchService) History(ctx context.Context, actor domain.Actor, limit int) ([]domain.HistorySummary, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	summaries, err := s.store.HistoryForActor(ctx, actor, limit)
	if err != nil {
		return nil, backendError(err)
	}
	return summaries, nil
}

// ClearHistory removes the actor's search history.
func (s *SearchService) ClearHistory(ctx context.Context, actor domain.Actor) error {
	if err := s.store.ClearHistory(ctx, actor); err != nil {
		return backendError(err)
	}
	return nil
}

// TrackClick records that a result of the given query was clicked.
func (s *SearchService) TrackClick(rawQuery string) {
	s.tracker.TrackClick(rawQuery)
}

// TrackConversion records that a search led to a purchase.
func (s *SearchService) TrackConversion(rawQuery string) {
	s.tracker.TrackConversion(rawQuery)
}

// ───────────────────────────────── Internals ─────────────────────────────────

func (s *SearchService) quickSearch(ctx context.Context, normalized string) (*domain.QuickSearchResult, error) {
	expanded := s.expander.Expand(ctx, normalized)

	products, err := s.engine.MatchItems(ctx, normalized, expanded, searchAllProductLimit)
	if err != nil {
		return nil, err
	}

	categories, err := s.taxonomy.FindCategoriesByName(ctx, normalized, searchAllCategoryLimit)
	if err != nil {
		return nil, err
	}

	brands, err := s.taxonomy.FindBrandsByName(ctx, normalized, searchAllBrandLimit)
	if err != nil {
		return nil, err
	}

	return &domain.QuickSearchResult{
		Products:   products,
		Categories: categories,
		Brands:     brands,
	}, nil
}

func (s *SearchService) autocomplete(ctx context.Context, normalized string) (*domain.AutocompleteResult, error) {
	suggestions, err := s.suggestionsFor(ctx, normalized, autocompleteSuggestionLimit)
	if err != nil {
		return nil, err
	}

	expanded := s.expander.Expand(ctx, normalized)
	products, err := s.engine.MatchItems(ctx, normalized, expanded, autocompleteProductLimit)
	if err != nil {
		return nil, err
	}

	categories, err := s.taxonomy.FindCategoriesByName(ctx, normalized, autocompleteCategoryLimit)
	if err != nil {
		return nil, err
	}

	brands, err := s.taxonomy.FindBrandsByName(ctx, normalized, autocompleteBrandLimit)
	if err != nil {
		return nil, err
	}

	return &domain.AutocompleteResult{
		Suggestions: suggestions,
		Products:    products,
		Categories:  categories,
		Brands:      brands,
	}, nil
}

// suggestionsFor merges tracked queries, matching product names, and
// matching category names into one deduplicated suggestion list.
func (s *SearchService) suggestionsFor(ctx context.Context, normalized string, limit int) ([]string, error) {
	aggregate := query.NormalizeAggregate(normalized)

	tracked, err := s.store.SuggestQueries(ctx, aggregate, limit)
	if err != nil {
		return nil, err
	}

	expanded := s.expander.Expand(ctx, normalized)
	products, err := s.engine.MatchItems(ctx, normalized, expanded, limit)
	if err != nil {
		return nil, err
	}

	categories, err := s.taxonomy.FindCategoriesByName(ctx, normalized, searchAllCategoryLimit)
	if err != nil {
		return nil, err
	}

	suggestions := make([]string, 0, limit)
	seen := make(map[string]struct{})
	add := func(value string) {
		value = truncateRunes(value, suggestionNameLimit)
		lowered := query.NormalizeAggregate(value)
		if lowered == "" {
			return
		}
		if _, dup := seen[lowered]; dup {
			return
		}
		seen[lowered] = struct{}{}
		if len(suggestions) < limit {
			suggestions = append(suggestions, value)
		}
	}

	for _, q := range tracked {
		add(q)
	}
	for _, p := range products {
		add(p.Name)
	}
	for _, c := range categories {
		add(c.Name)
	}

	return suggestions, nil
}

// ───────────────────────────────── Helpers ─────────────────────────────────

func validateFilters(f *domain.SearchFilters) error {
	if f.SortBy != "" && !domain.IsValidSortKey(f.SortBy) {
		return apperrors.InvalidInput(fmt.Sprintf("unknown sort key %q", f.SortBy))
	}
	if f.SortOrder != "" && f.SortOrder != domain.SortAsc && f.SortOrder != domain.SortDesc {
		return apperrors.InvalidInput(fmt.Sprintf("unknown sort order %q", f.SortOrder))
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return apperrors.InvalidInput("min_price must not exceed max_price")
	}
	if f.MinPrice != nil && *f.MinPrice < 0 {
		return apperrors.InvalidInput("min_price must not be negative")
	}
	if f.MinRating != nil && (*f.MinRating < 0 || *f.MinRating > 5) {
		return apperrors.InvalidInput("min_rating must be between 0 and 5")
	}
	return nil
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

// backendError maps infrastructure failures to a 503 while letting
// structured application errors pass through.
func backendError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Unavailable("search backend", err)
}

func emptyQuickResult() *domain.QuickSearchResult {
	return &domain.QuickSearchResult{
		Products:   []domain.ScoredItem{},
		Categories: []domain.CategoryRef{},
		Brands:     []domain.BrandRef{},
	}
}

func emptyAutocompleteResult() *domain.AutocompleteResult {
	return &domain.AutocompleteResult{
		Suggestions: []string{},
		Products:    []domain.ScoredItem{},
		Categories:  []domain.CategoryRef{},
		Brands:      []domain.BrandRef{},
	}
}

func runeCount(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
