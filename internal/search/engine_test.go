package search

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/catalog/memory"
	"github.com/utafrali/catalog-search/internal/domain"
)

func newTestEngine(t *testing.T, items ...domain.CatalogItem) (*Engine, *memory.Taxonomy) {
	t.Helper()

	index := memory.NewItemIndex()
	require.NoError(t, index.BulkIndex(context.Background(), items))

	taxonomy := memory.NewTaxonomy()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewEngine(index, taxonomy, logger), taxonomy
}

func item(id, name, sku string, opts ...func(*domain.CatalogItem)) domain.CatalogItem {
	it := domain.CatalogItem{
		ID:        id,
		Name:      name,
		SKU:       sku,
		Price:     1000,
		Quantity:  10,
		IsActive:  true,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(&it)
	}
	return it
}

func basicRequest() *domain.SearchRequest {
	return &domain.SearchRequest{Page: 1, PerPage: 20}
}

func TestEngineSearch_RanksNameMatchesAboveSKUMatches(t *testing.T) {
	engine, _ := newTestEngine(t,
		item("1", "Wireless Mouse", "WM-100"),
		item("2", "Mouse Pad Deluxe", "MP-200"),
		item("3", "Desk Organizer", "MOUSE-X"),
	)

	result, err := engine.Search(context.Background(), "mouse", "mouse", basicRequest())
	require.NoError(t, err)

	require.Len(t, result.Items, 3)
	assert.Equal(t, 3, result.Total)

	// The SKU-only hit ranks strictly last.
	assert.Equal(t, "3", result.Items[2].ID)
	assert.Less(t, result.Items[2].Score, result.Items[1].Score)
	assert.Greater(t, result.Items[2].Score, 0.0)
}

// stubIndex returns canned candidate sets so the union logic can be tested
// independently of any provider's matching behavior.
type stubIndex struct {
	memory.ItemIndex

	fullText  []domain.ScoredItem
	substring []domain.CatalogItem
}

func (s *stubIndex) FindActiveByText(_ context.Context, _ string) ([]domain.ScoredItem, error) {
	return s.fullText, nil
}

func (s *stubIndex) FindActiveBySubstring(_ context.Context, _ string) ([]domain.CatalogItem, error) {
	return s.substring, nil
}

func TestEngineSearch_SubstringOnlyHitsScoreBelowEveryTextMatch(t *testing.T) {
	textHit := item("text", "Gaming Mouse", "GM-1")
	skuHit := item("sku", "Desk Lamp", "GMOU-77")

	index := &stubIndex{
		fullText: []domain.ScoredItem{
			{CatalogItem: textHit, Score: 4.0},
		},
		substring: []domain.CatalogItem{textHit, skuHit},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(index, memory.NewTaxonomy(), logger)

	result, err := engine.Search(context.Background(), "gmou", "gmou", basicRequest())
	require.NoError(t, err)

	// The overlapping item appears once, with its full-text score.
	require.Len(t, result.Items, 2)
	assert.Equal(t, "text", result.Items[0].ID)
	assert.Equal(t, 4.0, result.Items[0].Score)

	// The substring-only item gets a positive score strictly below the
	// lowest full-text score.
	assert.Equal(t, "sku", result.Items[1].ID)
	assert.Greater(t, result.Items[1].Score, 0.0)
	assert.Less(t, result.Items[1].Score, 4.0)
}

func TestEngineSearch_ExcludesInactiveItems(t *testing.T) {
	engine, _ := newTestEngine(t,
		item("1", "Wireless Mouse", "WM-100"),
		item("2", "Gaming Mouse", "GM-300", func(it *domain.CatalogItem) { it.IsActive = false }),
	)

	result, err := engine.Search(context.Background(), "mouse", "mouse", basicRequest())
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.Equal(t, "1", result.Items[0].ID)
}

func TestEngineSearch_EmptyQueryBrowsesNewestFirst(t *testing.T) {
	engine, _ := newTestEngine(t,
		item("old", "Alpha", "A-1", func(it *domain.CatalogItem) {
			it.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		}),
		item("new", "Beta", "B-1", func(it *domain.CatalogItem) {
			it.CreatedAt = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		}),
	)

	result, err := engine.Search(context.Background(), "", "", basicRequest())
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, "new", result.Items[0].ID)
	assert.Equal(t, "old", result.Items[1].ID)
}

func TestEngineSearch_PriceRangeIsInclusive(t *testing.T) {
	engine, _ := newTestEngine(t,
		item("1", "Cheap Mouse", "C-1", func(it *domain.CatalogItem) { it.Price = 500 }),
		item("2", "Mid Mouse", "M-1", func(it *domain.CatalogItem) { it.Price = 1000 }),
		item("3", "Pricey Mouse", "P-1", func(it *domain.CatalogItem) { it.Price = 2000 }),
	)

	min, max := int64(500), int64(1000)
	req := basicRequest()
	req.Filters.MinPrice = &min
	req.Filters.MaxPrice = &max

	result, err := engine.Search(context.Background(), "mouse", "mouse", req)
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	for _, it := range result.Items {
		assert.GreaterOrEqual(t, it.Price, min)
		assert.LessOrEqual(t, it.Price, max)
	}
}

func TestEngineSearch_StockSaleAndFeaturedFilters(t *testing.T) {
	sale := int64(3000)
	engine, _ := newTestEngine(t,
		item("stocked", "Mouse One", "S-1"),
		item("out", "Mouse Two", "S-2", func(it *domain.CatalogItem) { it.Quantity = 0 }),
		item("sale", "Mouse Three", "S-3", func(it *domain.CatalogItem) { it.ComparePrice = &sale }),
		item("featured", "Mouse Four", "S-4", func(it *domain.CatalogItem) { it.IsFeatured = true }),
	)

	req := basicRequest()
	req.Filters.InStock = true
	result, err := engine.Search(context.Background(), "mouse", "mouse", req)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)

	req = basicRequest()
	req.Filters.OnSale = true
	result, err = engine.Search(context.Background(), "mouse", "mouse", req)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "sale", result.Items[0].ID)

	req = basicRequest()
	req.Filters.Featured = true
	result, err = engine.Search(context.Background(), "mouse", "mouse", req)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "featured", result.Items[0].ID)
}

func TestEngineSearch_CategoryFilterIncludesDescendants(t *testing.T) {
	engine, taxonomy := newTestEngine(t,
		item("root", "Mouse Root", "R-1", func(it *domain.CatalogItem) { it.CategoryID = "cat-electronics" }),
		item("child", "Mouse Child", "C-1", func(it *domain.CatalogItem) { it.CategoryID = "cat-peripherals" }),
		item("other", "Mouse Other", "O-1", func(it *domain.CatalogItem) { it.CategoryID = "cat-furniture" }),
	)

	taxonomy.AddCategory(memory.Category{ID: "cat-electronics", Name: "Electronics", Slug: "electronics", IsActive: true})
	taxonomy.AddCategory(memory.Category{ID: "cat-peripherals", Name: "Peripherals", Slug: "peripherals", ParentID: "cat-electronics", IsActive: true})
	taxonomy.AddCategory(memory.Category{ID: "cat-furniture", Name: "Furniture", Slug: "furniture", IsActive: true})

	slug := "electronics"
	req := basicRequest()
	req.Filters.CategorySlug = &slug

	result, err := engine.Search(context.Background(), "mouse", "mouse", req)
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	ids := []string{result.Items[0].ID, result.Items[1].ID}
	assert.ElementsMatch(t, []string{"root", "child"}, ids)
}

func TestEngineSearch_UnknownCategorySlugMatchesNothing(t *testing.T) {
	engine, _ := newTestEngine(t,
		item("1", "Wireless Mouse", "WM-100"),
	)

	slug := "no-such-category"
	req := basicRequest()
	req.Filters.CategorySlug = &slug

	result, err := engine.Search(context.Background(), "mouse", "mouse", req)
	require.NoError(t, err)

	assert.Empty(t, result.Items)
	assert.Equal(t, 0, result.Total)
}

func TestEngineSearch_SortByPriceAscending(t *testing.T) {
	engine, _ := newTestEngine(t,
		item("mid", "Mouse A", "A-1", func(it *domain.CatalogItem) { it.Price = 1500 }),
		item("cheap", "Mouse B", "B-1", func(it *domain.CatalogItem) { it.Price = 500 }),
		item("pricey", "Mouse C", "C-1", func(it *domain.CatalogItem) { it.Price = 3000 }),
	)

	req := basicRequest()
	req.Filters.SortBy = domain.SortPrice
	req.Filters.SortOrder = domain.SortAsc

	result, err := engine.Search(context.Background(), "mouse", "mouse", req)
	require.NoError(t, err)

	require.Len(t, result.Items, 3)
	assert.Equal(t, "cheap", result.Items[0].ID)
	assert.Equal(t, "mid", result.Items[1].ID)
	assert.Equal(t, "pricey", result.Items[2].ID)
}

func TestEngineSearch_NameSortDefaultsAscending(t *testing.T) {
	engine, _ := newTestEngine(t,
		item("z", "Zebra Mouse", "Z-1"),
		item("a", "Alpha Mouse", "A-1"),
	)

	req := basicRequest()
	req.Filters.SortBy = domain.SortName

	result, err := engine.Search(context.Background(), "mouse", "mouse", req)
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, "a", result.Items[0].ID)
	assert.Equal(t, "z", result.Items[1].ID)
}

func TestEngineSearch_PopularitySortWeighsSalesOverViews(t *testing.T) {
	engine, _ := newTestEngine(t,
		item("viewed", "Mouse Views", "V-1", func(it *domain.CatalogItem) { it.ViewCount = 100 }),
		item("sold", "Mouse Sales", "S-1", func(it *domain.CatalogItem) { it.SalesCount = 60 }),
	)

	req := basicRequest()
	req.Filters.SortBy = domain.SortPopularity

	result, err := engine.Search(context.Background(), "mouse", "mouse", req)
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, "sold", result.Items[0].ID)
}

func TestEngineSearch_Pagination(t *testing.T) {
	items := make([]domain.CatalogItem, 0, 25)
	for i := 0; i < 25; i++ {
		it := item(string(rune('a'+i)), "Mouse", "SKU", func(it *domain.CatalogItem) {
			it.CreatedAt = time.Date(2025, 1, 1+i%27, 0, 0, 0, 0, time.UTC)
		})
		items = append(items, it)
	}
	engine, _ := newTestEngine(t, items...)

	req := &domain.SearchRequest{Page: 2, PerPage: 10}
	result, err := engine.Search(context.Background(), "mouse", "mouse", req)
	require.NoError(t, err)

	assert.Equal(t, 25, result.Total)
	assert.Len(t, result.Items, 10)
	assert.Equal(t, 2, result.Page)

	// Pages beyond the result set are empty, not an error.
	req = &domain.SearchRequest{Page: 9, PerPage: 10}
	result, err = engine.Search(context.Background(), "mouse", "mouse", req)
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, 25, result.Total)
}

func TestEngineSearch_PerPageIsCapped(t *testing.T) {
	engine, _ := newTestEngine(t, item("1", "Mouse", "M-1"))

	req := &domain.SearchRequest{Page: 1, PerPage: 5000}
	result, err := engine.Search(context.Background(), "mouse", "mouse", req)
	require.NoError(t, err)

	assert.Equal(t, 100, result.PerPage)
}

func TestEngineMatchItems_LimitsAndOrdersByScore(t *testing.T) {
	engine, _ := newTestEngine(t,
		item("1", "Mouse Mouse Mouse", "M-1"),
		item("2", "Mouse", "M-2"),
		item("3", "Mouse Pad", "M-3"),
	)

	matches, err := engine.MatchItems(context.Background(), "mouse", "mouse", 2)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}
