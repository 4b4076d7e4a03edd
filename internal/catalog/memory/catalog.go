package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/utafrali/catalog-search/internal/domain"
)

// ItemIndex is an in-memory implementation of catalog.ItemIndex. It scores
// text matches by weighted term occurrence over name, sku and descriptions.
// Thread-safe via sync.RWMutex; used for tests and local development.
type ItemIndex struct {
	mu    sync.RWMutex
	items map[string]domain.CatalogItem
}

// NewItemIndex creates an empty in-memory item index.
func NewItemIndex() *ItemIndex {
	return &ItemIndex{items: make(map[string]domain.CatalogItem)}
}

// FindActiveByText matches active items containing any expanded query term.
// Name matches weigh more than sku matches, which weigh more than
// description matches.
func (e *ItemIndex) FindActiveByText(_ context.Context, expandedQuery string) ([]domain.ScoredItem, error) {
	terms := strings.Fields(strings.ToLower(expandedQuery))
	if len(terms) == 0 {
		return []domain.ScoredItem{}, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	scored := make([]domain.ScoredItem, 0)
	for _, item := range e.items {
		if !item.IsActive {
			continue
		}
		score := scoreItem(item, terms)
		if score > 0 {
			scored = append(scored, domain.ScoredItem{CatalogItem: item, Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored, nil
}

// FindActiveBySubstring matches active items whose name or sku contains the
// normalized query as a substring (case-insensitive).
func (e *ItemIndex) FindActiveBySubstring(_ context.Context, normalizedQuery string) ([]domain.CatalogItem, error) {
	needle := strings.ToLower(strings.TrimSpace(normalizedQuery))
	if needle == "" {
		return []domain.CatalogItem{}, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	matched := make([]domain.CatalogItem, 0)
	for _, item := range e.items {
		if !item.IsActive {
			continue
		}
		if strings.Contains(strings.ToLower(item.Name), needle) ||
			strings.Contains(strings.ToLower(item.SKU), needle) {
			matched = append(matched, item)
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	return matched, nil
}

// AllActive returns every active item.
func (e *ItemIndex) AllActive(_ context.Context) ([]domain.CatalogItem, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	items := make([]domain.CatalogItem, 0, len(e.items))
	for _, item := range e.items {
		if item.IsActive {
			items = append(items, item)
		}
	}
	return items, nil
}

// Index adds or updates a single item.
func (e *ItemIndex) Index(_ context.Context, item *domain.CatalogItem) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.items[item.ID] = *item
	return nil
}

// Delete removes an item by its ID.
func (e *ItemIndex) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.items, id)
	return nil
}

// BulkIndex adds or updates multiple items.
func (e *ItemIndex) BulkIndex(_ context.Context, items []domain.CatalogItem) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range items {
		e.items[items[i].ID] = items[i]
	}
	return nil
}

// Ping always succeeds for the in-memory index.
func (e *ItemIndex) Ping(_ context.Context) error {
	return nil
}

// scoreItem computes a weighted term-occurrence score. Every matched term
// contributes; more matching terms score higher.
func scoreItem(item domain.CatalogItem, terms []string) float64 {
	name := strings.ToLower(item.Name)
	sku := strings.ToLower(item.SKU)
	desc := strings.ToLower(item.Description + " " + item.ShortDescription)

	var score float64
	for _, term := range terms {
		if strings.Contains(name, term) {
			score += 3
		}
		if strings.Contains(sku, term) {
			score += 2
		}
		if strings.Contains(desc, term) {
			score += 1
		}
	}
	return score
}
