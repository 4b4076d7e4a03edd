package catalog

import (
	"context"

	"github.com/utafrali/catalog-search/internal/domain"
)

// ItemIndex is the read-only catalog provider the search core consumes.
// Implementations may be backed by Postgres full-text search, Elasticsearch,
// or in-memory storage. Write operations exist to keep the read model in
// sync with product events; the search core itself never mutates items.
type ItemIndex interface {
	// FindActiveByText runs a full-text relevance match over name, sku and
	// descriptions using the expanded query. Only active items are returned,
	// each with a score > 0 (higher = more relevant).
	FindActiveByText(ctx context.Context, expandedQuery string) ([]domain.ScoredItem, error)

	// FindActiveBySubstring finds active items whose name or sku contains the
	// normalized query as a substring. This pass catches partial tokens
	// (e.g. a SKU prefix) that a full-text tokenizer would miss.
	FindActiveBySubstring(ctx context.Context, normalizedQuery string) ([]domain.CatalogItem, error)

	// AllActive returns every active item, for empty-query browsing.
	AllActive(ctx context.Context) ([]domain.CatalogItem, error)

	// Index adds or updates a single item in the read model.
	Index(ctx context.Context, item *domain.CatalogItem) error

	// Delete removes an item from the read model by its ID.
	Delete(ctx context.Context, id string) error

	// BulkIndex adds or updates multiple items in the read model.
	BulkIndex(ctx context.Context, items []domain.CatalogItem) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// Taxonomy resolves category and brand references for filtering and for the
// cross-entity quick-search surfaces.
type Taxonomy interface {
	// CategoryIDsBySlug resolves a category slug to its ID, optionally
	// including all descendant category IDs. An unknown slug yields an
	// empty slice, which filters out everything.
	CategoryIDsBySlug(ctx context.Context, slug string, includeDescendants bool) ([]string, error)

	// BrandIDsBySlugs resolves brand slugs to IDs. Unknown slugs are skipped.
	BrandIDsBySlugs(ctx context.Context, slugs []string) ([]string, error)

	// FindCategoriesByName finds active categories whose name contains the
	// query as a substring.
	FindCategoriesByName(ctx context.Context, query string, limit int) ([]domain.CategoryRef, error)

	// FindBrandsByName finds active brands whose name contains the query as
	// a substring.
	FindBrandsByName(ctx context.Context, query string, limit int) ([]domain.BrandRef, error)
}
