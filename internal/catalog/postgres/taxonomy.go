package postgres

import (
	"context"
	"fmt"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/pkg/database"
)

// Taxonomy implements catalog.Taxonomy over the catalog_categories and
// catalog_brands read-model tables.
type Taxonomy struct {
	pool database.DBTX
}

// NewTaxonomy creates a Postgres-backed taxonomy resolver.
func NewTaxonomy(pool database.DBTX) *Taxonomy {
	return &Taxonomy{pool: pool}
}

// CategoryIDsBySlug resolves a category slug to its ID and, when requested,
// the IDs of all descendant categories via a recursive walk of parent_id.
func (r *Taxonomy) CategoryIDsBySlug(ctx context.Context, slug string, includeDescendants bool) ([]string, error) {
	if !includeDescendants {
		var id string
		err := r.pool.QueryRow(ctx,
			`SELECT id FROM catalog_categories WHERE slug = $1 AND is_active = TRUE`, slug,
		).Scan(&id)
		if err != nil {
			if errNoRows(err) {
				return []string{}, nil
			}
			return nil, fmt.Errorf("resolve category slug: %w", err)
		}
		return []string{id}, nil
	}

	query := `
		WITH RECURSIVE subtree AS (
			SELECT id FROM catalog_categories WHERE slug = $1 AND is_active = TRUE
			UNION ALL
			SELECT c.id
			FROM catalog_categories c
			JOIN subtree s ON c.parent_id = s.id
			WHERE c.is_active = TRUE
		)
		SELECT id FROM subtree`

	rows, err := r.pool.Query(ctx, query, slug)
	if err != nil {
		return nil, fmt.Errorf("resolve category subtree: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan category id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("category subtree rows: %w", err)
	}

	return ids, nil
}

// BrandIDsBySlugs resolves brand slugs to IDs. Unknown slugs are skipped.
func (r *Taxonomy) BrandIDsBySlugs(ctx context.Context, slugs []string) ([]string, error) {
	if len(slugs) == 0 {
		return []string{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id FROM catalog_brands WHERE slug = ANY($1) AND is_active = TRUE`, slugs,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve brand slugs: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, len(slugs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan brand id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("brand rows: %w", err)
	}

	return ids, nil
}

// FindCategoriesByName finds active categories by name substring, with a live
// product count for each.
func (r *Taxonomy) FindCategoriesByName(ctx context.Context, query string, limit int) ([]domain.CategoryRef, error) {
	sql := `
		SELECT c.id, c.name, c.slug,
			   (SELECT count(*) FROM catalog_products p WHERE p.category_id = c.id AND p.is_active = TRUE) AS product_count
		FROM catalog_categories c
		WHERE c.is_active = TRUE AND c.name ILIKE $1
		ORDER BY c.name ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, sql, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}
	defer rows.Close()

	refs := make([]domain.CategoryRef, 0, limit)
	for rows.Next() {
		var ref domain.CategoryRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Slug, &ref.ProductCount); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("category rows: %w", err)
	}

	return refs, nil
}

// FindBrandsByName finds active brands by name substring, with a live product
// count for each.
func (r *Taxonomy) FindBrandsByName(ctx context.Context, query string, limit int) ([]domain.BrandRef, error) {
	sql := `
		SELECT b.id, b.name, b.slug,
			   (SELECT count(*) FROM catalog_products p WHERE p.brand_id = b.id AND p.is_active = TRUE) AS product_count
		FROM catalog_brands b
		WHERE b.is_active = TRUE AND b.name ILIKE $1
		ORDER BY b.name ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, sql, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("find brands: %w", err)
	}
	defer rows.Close()

	refs := make([]domain.BrandRef, 0, limit)
	for rows.Next() {
		var ref domain.BrandRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Slug, &ref.ProductCount); err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("brand rows: %w", err)
	}

	return refs, nil
}
