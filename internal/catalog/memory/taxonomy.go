package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/utafrali/catalog-search/internal/domain"
)

// Category is a taxonomy node held by the in-memory implementation.
type Category struct {
	ID       string
	Name     string
	Slug     string
	ParentID string
	IsActive bool
}

// Brand is a brand entry held by the in-memory implementation.
type Brand struct {
	ID       string
	Name     string
	Slug     string
	IsActive bool
}

// Taxonomy is an in-memory implementation of catalog.Taxonomy backed by maps.
type Taxonomy struct {
	mu         sync.RWMutex
	categories map[string]Category
	brands     map[string]Brand
}

// NewTaxonomy creates an empty in-memory taxonomy.
func NewTaxonomy() *Taxonomy {
	return &Taxonomy{
		categories: make(map[string]Category),
		brands:     make(map[string]Brand),
	}
}

// AddCategory registers a category node.
func (t *Taxonomy) AddCategory(c Category) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.categories[c.ID] = c
}

// AddBrand registers a brand.
func (t *Taxonomy) AddBrand(b Brand) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.brands[b.ID] = b
}

// CategoryIDsBySlug resolves a slug to its category ID, walking the parent
// links to include descendants when requested.
func (t *Taxonomy) CategoryIDsBySlug(_ context.Context, slug string, includeDescendants bool) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var rootID string
	for _, c := range t.categories {
		if c.Slug == slug && c.IsActive {
			rootID = c.ID
			break
		}
	}
	if rootID == "" {
		return []string{}, nil
	}
	if !includeDescendants {
		return []string{rootID}, nil
	}

	ids := []string{rootID}
	frontier := []string{rootID}
	for len(frontier) > 0 {
		next := make([]string, 0)
		for _, c := range t.categories {
			if !c.IsActive {
				continue
			}
			for _, parent := range frontier {
				if c.ParentID == parent {
					ids = append(ids, c.ID)
					next = append(next, c.ID)
				}
			}
		}
		frontier = next
	}

	return ids, nil
}

// BrandIDsBySlugs resolves brand slugs to IDs, skipping unknown slugs.
func (t *Taxonomy) BrandIDsBySlugs(_ context.Context, slugs []string) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		for _, b := range t.brands {
			if b.Slug == slug && b.IsActive {
				ids = append(ids, b.ID)
				break
			}
		}
	}
	return ids, nil
}

// FindCategoriesByName finds active categories by name substring.
func (t *Taxonomy) FindCategoriesByName(_ context.Context, query string, limit int) ([]domain.CategoryRef, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	needle := strings.ToLower(query)
	refs := make([]domain.CategoryRef, 0)
	for _, c := range t.categories {
		if c.IsActive && strings.Contains(strings.ToLower(c.Name), needle) {
			refs = append(refs, domain.CategoryRef{ID: c.ID, Name: c.Name, Slug: c.Slug})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

// FindBrandsByName finds active brands by name substring.
func (t *Taxonomy) FindBrandsByName(_ context.Context, query string, limit int) ([]domain.BrandRef, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	needle := strings.ToLower(query)
	refs := make([]domain.BrandRef, 0)
	for _, b := range t.brands {
		if b.IsActive && strings.Contains(strings.ToLower(b.Name), needle) {
			refs = append(refs, domain.BrandRef{ID: b.ID, Name: b.Name, Slug: b.Slug})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}
