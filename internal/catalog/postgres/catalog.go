package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/pkg/database"
)

// itemColumns is the column list shared by every item query.
const itemColumns = `id, name, sku, slug, description, short_description, price, compare_price,
	quantity, category_id, category_name, brand_id, brand_name, is_active, is_featured,
	rating, view_count, sales_count, image_url, created_at, updated_at`

// ItemIndex implements catalog.ItemIndex on the catalog_products read model
// using Postgres full-text search (tsvector/ts_rank).
type ItemIndex struct {
	pool database.DBTX
}

// NewItemIndex creates a Postgres-backed item index.
func NewItemIndex(pool database.DBTX) *ItemIndex {
	return &ItemIndex{pool: pool}
}

// FindActiveByText matches active items against the expanded query using the
// generated search_vector column. Expanded terms are OR-ed so any synonym can
// match; ts_rank provides the relevance score.
func (r *ItemIndex) FindActiveByText(ctx context.Context, expandedQuery string) (items []domain.ScoredItem, err error) {
	tsquery := buildTSQuery(expandedQuery)
	if tsquery == "" {
		return []domain.ScoredItem{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s, ts_rank(search_vector, query) AS score
		FROM catalog_products, to_tsquery('simple', $1) AS query
		WHERE is_active = TRUE AND search_vector @@ query
		ORDER BY score DESC`, itemColumns)

	ctx, end := database.TraceQuery(ctx, "FindActiveByText", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, tsquery)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	defer rows.Close()

	items = make([]domain.ScoredItem, 0)
	for rows.Next() {
		var (
			item  domain.CatalogItem
			score float64
		)
		if err := scanItem(rows, &item, &score); err != nil {
			return nil, fmt.Errorf("scan scored item: %w", err)
		}
		items = append(items, domain.ScoredItem{CatalogItem: item, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("full-text search rows: %w", err)
	}

	return items, nil
}

// FindActiveBySubstring matches active items whose name or sku contains the
// normalized query, catching partial tokens the full-text pass misses.
func (r *ItemIndex) FindActiveBySubstring(ctx context.Context, normalizedQuery string) ([]domain.CatalogItem, error) {
	if strings.TrimSpace(normalizedQuery) == "" {
		return []domain.CatalogItem{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM catalog_products
		WHERE is_active = TRUE AND (name ILIKE $1 OR sku ILIKE $1)
		ORDER BY name ASC`, itemColumns)

	pattern := "%" + escapeLike(normalizedQuery) + "%"

	rows, err := r.pool.Query(ctx, query, pattern)
	if err != nil {
		return nil, fmt.Errorf("substring search: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// AllActive returns every active item for empty-query browsing.
func (r *ItemIndex) AllActive(ctx context.Context) ([]domain.CatalogItem, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM catalog_products
		WHERE is_active = TRUE`, itemColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// Index inserts or updates a single item in the read model.
func (r *ItemIndex) Index(ctx context.Context, item *domain.CatalogItem) error {
	query := `
		INSERT INTO catalog_products (id, name, sku, slug, description, short_description, price, compare_price,
			quantity, category_id, category_name, brand_id, brand_name, is_active, is_featured,
			rating, view_count, sales_count, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			sku = EXCLUDED.sku,
			slug = EXCLUDED.slug,
			description = EXCLUDED.description,
			short_description = EXCLUDED.short_description,
			price = EXCLUDED.price,
			compare_price = EXCLUDED.compare_price,
			quantity = EXCLUDED.quantity,
			category_id = EXCLUDED.category_id,
			category_name = EXCLUDED.category_name,
			brand_id = EXCLUDED.brand_id,
			brand_name = EXCLUDED.brand_name,
			is_active = EXCLUDED.is_active,
			is_featured = EXCLUDED.is_featured,
			rating = EXCLUDED.rating,
			view_count = EXCLUDED.view_count,
			sales_count = EXCLUDED.sales_count,
			image_url = EXCLUDED.image_url,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		item.ID,
		item.Name,
		item.SKU,
		item.Slug,
		item.Description,
		item.ShortDescription,
		item.Price,
		item.ComparePrice,
		item.Quantity,
		item.CategoryID,
		item.CategoryName,
		item.BrandID,
		item.BrandName,
		item.IsActive,
		item.IsFeatured,
		item.Rating,
		item.ViewCount,
		item.SalesCount,
		item.ImageURL,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("index item: %w", err)
	}

	return nil
}

// Delete removes an item from the read model. Deleting an absent item is not
// an error.
func (r *ItemIndex) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM catalog_products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// BulkIndex upserts multiple items inside a single transaction.
func (r *ItemIndex) BulkIndex(ctx context.Context, items []domain.CatalogItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin bulk index tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txIndex := &ItemIndex{pool: tx}
	for i := range items {
		if err := txIndex.Index(ctx, &items[i]); err != nil {
			return fmt.Errorf("bulk index item %s: %w", items[i].ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit bulk index tx: %w", err)
	}

	return nil
}

// Ping checks backend reachability with a trivial query.
func (r *ItemIndex) Ping(ctx context.Context) error {
	var one int
	if err := r.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping catalog read model: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// buildTSQuery turns an expanded query into a tsquery expression OR-ing every
// term. Characters with tsquery syntax meaning are stripped.
func buildTSQuery(expandedQuery string) string {
	fields := strings.Fields(expandedQuery)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		term := sanitizeTerm(f)
		if term != "" {
			terms = append(terms, term)
		}
	}
	return strings.Join(terms, " | ")
}

// sanitizeTerm keeps letters and digits only, so user input cannot inject
// tsquery operators.
func sanitizeTerm(term string) string {
	var b strings.Builder
	for _, r := range term {
		if isTermRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isTermRune(r rune) bool {
	return r == '-' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		r > 127
}

// escapeLike escapes LIKE pattern metacharacters in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// scanItem scans one item row; score must be non-nil when the row carries a
// trailing relevance column.
func scanItem(rows pgx.Rows, item *domain.CatalogItem, score *float64) error {
	dest := []any{
		&item.ID,
		&item.Name,
		&item.SKU,
		&item.Slug,
		&item.Description,
		&item.ShortDescription,
		&item.Price,
		&item.ComparePrice,
		&item.Quantity,
		&item.CategoryID,
		&item.CategoryName,
		&item.BrandID,
		&item.BrandName,
		&item.IsActive,
		&item.IsFeatured,
		&item.Rating,
		&item.ViewCount,
		&item.SalesCount,
		&item.ImageURL,
		&item.CreatedAt,
		&item.UpdatedAt,
	}
	if score != nil {
		dest = append(dest, score)
	}
	return rows.Scan(dest...)
}

func collectItems(rows pgx.Rows) ([]domain.CatalogItem, error) {
	items := make([]domain.CatalogItem, 0)
	for rows.Next() {
		var item domain.CatalogItem
		if err := scanItem(rows, &item, nil); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("item rows: %w", err)
	}
	return items, nil
}

// errNoRows reports pgx.ErrNoRows, shared with the taxonomy queries.
func errNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
