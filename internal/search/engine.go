package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/utafrali/catalog-search/internal/catalog"
	"github.com/utafrali/catalog-search/internal/domain"
)

// fallbackScoreRatio positions substring-only matches strictly below every
// full-text match: the lowest full-text score multiplied by this ratio.
const fallbackScoreRatio = 0.5

// baseFallbackScore is used when the full-text pass produced no matches at
// all and there is no score to rank below.
const baseFallbackScore = 1.0

// Engine ranks, filters, sorts and paginates catalog items. It is the pure
// core of the search service: providers supply candidates, the engine does
// everything else in memory so the behavior is identical across backends.
type Engine struct {
	index    catalog.ItemIndex
	taxonomy catalog.Taxonomy
	logger   *slog.Logger
}

// NewEngine creates an Engine over the given catalog provider and taxonomy.
func NewEngine(index catalog.ItemIndex, taxonomy catalog.Taxonomy, logger *slog.Logger) *Engine {
	return &Engine{
		index:    index,
		taxonomy: taxonomy,
		logger:   logger,
	}
}

// Search executes one ranked product search. The normalized query drives the
// substring pass and the expanded query drives the full-text pass; both are
// pre-processed by the caller. An empty query browses all active items.
func (e *Engine) Search(ctx context.Context, normalizedQuery, expandedQuery string, req *domain.SearchRequest) (*domain.SearchResult, error) {
	start := time.Now()

	candidates, err := e.collectCandidates(ctx, normalizedQuery, expandedQuery)
	if err != nil {
		return nil, err
	}

	filtered, err := e.applyFilters(ctx, candidates, &req.Filters)
	if err != nil {
		return nil, err
	}

	e.sortItems(filtered, normalizedQuery, req.Filters.SortBy, req.Filters.SortOrder)

	total := len(filtered)
	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	items := paginate(filtered, page, perPage)

	return &domain.SearchResult{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		TookMs:  time.Since(start).Milliseconds(),
	}, nil
}

// MatchItems returns the ranked candidate set without filtering or
// pagination. Quick-search and autocomplete surfaces use it to take the top
// few products.
func (e *Engine) MatchItems(ctx context.Context, normalizedQuery, expandedQuery string, limit int) ([]domain.ScoredItem, error) {
	candidates, err := e.collectCandidates(ctx, normalizedQuery, expandedQuery)
	if err != nil {
		return nil, err
	}

	sortByScore(candidates)

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// collectCandidates runs the two matching passes and unions them. The
// full-text pass owns the relevance scores; substring-only hits are appended
// with a fallback score strictly below the lowest full-text score, so a
// partial SKU match never outranks a proper text match.
func (e *Engine) collectCandidates(ctx context.Context, normalizedQuery, expandedQuery string) ([]domain.ScoredItem, error) {
	if normalizedQuery == "" {
		return e.browseAll(ctx)
	}

	fullText, err := e.index.FindActiveByText(ctx, expandedQuery)
	if err != nil {
		return nil, err
	}

	substring, err := e.index.FindActiveBySubstring(ctx, normalizedQuery)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(fullText))
	minScore := 0.0
	for i, item := range fullText {
		seen[item.ID] = struct{}{}
		if i == 0 || item.Score < minScore {
			minScore = item.Score
		}
	}

	fallback := baseFallbackScore
	if len(fullText) > 0 {
		fallback = minScore * fallbackScoreRatio
	}

	candidates := fullText
	for _, item := range substring {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		candidates = append(candidates, domain.ScoredItem{CatalogItem: item, Score: fallback})
	}

	return candidates, nil
}

// browseAll returns every active item with a zero score, newest first.
func (e *Engine) browseAll(ctx context.Context) ([]domain.ScoredItem, error) {
	items, err := e.index.AllActive(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredItem, 0, len(items))
	for _, item := range items {
		scored = append(scored, domain.ScoredItem{CatalogItem: item})
	}
	return scored, nil
}

// ───────────────────────────────── Filters ─────────────────────────────────

// applyFilters keeps only candidates satisfying every set constraint.
// Category and brand slugs are resolved through the taxonomy; an unknown
// category slug resolves to no IDs and therefore filters out everything.
func (e *Engine) applyFilters(ctx context.Context, candidates []domain.ScoredItem, filters *domain.SearchFilters) ([]domain.ScoredItem, error) {
	categoryIDs, brandIDs, err := e.resolveSlugs(ctx, filters)
	if err != nil {
		return nil, err
	}

	out := candidates[:0]
	for _, item := range candidates {
		if !matchesFilters(&item, filters, categoryIDs, brandIDs) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// resolveSlugs turns the filter slugs into ID sets. A nil set means the
// corresponding filter is not active.
func (e *Engine) resolveSlugs(ctx context.Context, filters *domain.SearchFilters) (map[string]struct{}, map[string]struct{}, error) {
	var categoryIDs, brandIDs map[string]struct{}

	if filters.CategorySlug != nil {
		ids, err := e.taxonomy.CategoryIDsBySlug(ctx, *filters.CategorySlug, true)
		if err != nil {
			return nil, nil, err
		}
		categoryIDs = toSet(ids)
	}

	if len(filters.BrandSlugs) > 0 {
		ids, err := e.taxonomy.BrandIDsBySlugs(ctx, filters.BrandSlugs)
		if err != nil {
			return nil, nil, err
		}
		brandIDs = toSet(ids)
	}

	return categoryIDs, brandIDs, nil
}

func matchesFilters(item *domain.ScoredItem, filters *domain.SearchFilters, categoryIDs, brandIDs map[string]struct{}) bool {
	if categoryIDs != nil {
		if _, ok := categoryIDs[item.CategoryID]; !ok {
			return false
		}
	}
	if brandIDs != nil {
		if _, ok := brandIDs[item.BrandID]; !ok {
			return false
		}
	}
	if filters.MinPrice != nil && item.Price < *filters.MinPrice {
		return false
	}
	if filters.MaxPrice != nil && item.Price > *filters.MaxPrice {
		return false
	}
	if filters.MinRating != nil && item.Rating < *filters.MinRating {
		return false
	}
	if filters.InStock && !item.InStock() {
		return false
	}
	if filters.OnSale && !item.OnSale() {
		return false
	}
	if filters.Featured && !item.IsFeatured {
		return false
	}
	return true
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// ────────────────────────────────── Sorting ─────────────────────────────────

// sortItems orders the candidate set in place. Relevance over an empty query
// degrades to newest-first since every score is zero. Name sorting defaults
// ascending, every other key descending, unless an explicit order is given.
func (e *Engine) sortItems(items []domain.ScoredItem, normalizedQuery, sortBy, sortOrder string) {
	if sortBy == "" {
		sortBy = domain.SortRelevance
	}
	if sortBy == domain.SortRelevance && normalizedQuery == "" {
		sortBy = domain.SortNewest
		if sortOrder == "" {
			sortOrder = domain.SortDesc
		}
	}

	asc := sortOrder == domain.SortAsc
	if sortOrder == "" {
		asc = sortBy == domain.SortName
	}

	less := lessFunc(items, sortBy)
	sort.SliceStable(items, func(i, j int) bool {
		if asc {
			return less(j, i)
		}
		return less(i, j)
	})
}

// lessFunc returns a descending comparison for the given sort key. Ties keep
// their existing relative order because the sort is stable.
func lessFunc(items []domain.ScoredItem, sortBy string) func(i, j int) bool {
	switch sortBy {
	case domain.SortPrice:
		return func(i, j int) bool { return items[i].Price > items[j].Price }
	case domain.SortName:
		return func(i, j int) bool {
			return strings.ToLower(items[i].Name) > strings.ToLower(items[j].Name)
		}
	case domain.SortNewest:
		return func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) }
	case domain.SortRating:
		return func(i, j int) bool { return items[i].Rating > items[j].Rating }
	case domain.SortPopularity:
		return func(i, j int) bool {
			pi := items[i].SalesCount*2 + items[i].ViewCount
			pj := items[j].SalesCount*2 + items[j].ViewCount
			return pi > pj
		}
	default:
		return func(i, j int) bool { return items[i].Score > items[j].Score }
	}
}

func sortByScore(items []domain.ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}

func paginate(items []domain.ScoredItem, page, perPage int) []domain.ScoredItem {
	offset := (page - 1) * perPage
	if offset >= len(items) {
		return []domain.ScoredItem{}
	}
	end := offset + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
