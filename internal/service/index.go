package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/catalog-search/internal/catalog"
	"github.com/utafrali/catalog-search/internal/domain"
)

// IndexService keeps the catalog read model in sync: single updates from
// product events and bulk loads from reindex runs.
type IndexService struct {
	index  catalog.ItemIndex
	logger *slog.Logger
}

// NewIndexService creates an index service over the given catalog provider.
func NewIndexService(index catalog.ItemIndex, logger *slog.Logger) *IndexService {
	return &IndexService{
		index:  index,
		logger: logger,
	}
}

// IndexItemInput holds the fields of one catalog item to index.
type IndexItemInput struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	SKU              string  `json:"sku"`
	Slug             string  `json:"slug"`
	Description      string  `json:"description"`
	ShortDescription string  `json:"short_description"`
	Price            int64   `json:"price"`
	ComparePrice     *int64  `json:"compare_price"`
	Quantity         int     `json:"quantity"`
	CategoryID       string  `json:"category_id"`
	CategoryName     string  `json:"category_name"`
	BrandID          string  `json:"brand_id"`
	BrandName        string  `json:"brand_name"`
	IsActive         bool    `json:"is_active"`
	IsFeatured       bool    `json:"is_featured"`
	Rating           float64 `json:"rating"`
	ViewCount        int64   `json:"view_count"`
	SalesCount       int64   `json:"sales_count"`
	ImageURL         string  `json:"image_url"`
}

// IndexItem adds or updates a single item in the read model.
func (s *IndexService) IndexItem(ctx context.Context, input *IndexItemInput) error {
	if input.ID == "" {
		return fmt.Errorf("index item: id is required")
	}
	if input.Name == "" {
		return fmt.Errorf("index item: name is required")
	}

	item := itemFromInput(input, time.Now().UTC())
	if err := s.index.Index(ctx, item); err != nil {
		return fmt.Errorf("index item: %w", err)
	}

	s.logger.InfoContext(ctx, "item indexed",
		slog.String("item_id", input.ID),
		slog.String("name", input.Name),
	)
	return nil
}

// DeleteItem removes an item from the read model.
func (s *IndexService) DeleteItem(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("delete item: id is required")
	}

	if err := s.index.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	s.logger.InfoContext(ctx, "item deleted from index",
		slog.String("item_id", id),
	)
	return nil
}

// BulkIndex adds or updates multiple items. Inputs without an ID are
// skipped.
func (s *IndexService) BulkIndex(ctx context.Context, inputs []IndexItemInput) error {
	now := time.Now().UTC()

	items := make([]domain.CatalogItem, 0, len(inputs))
	for i := range inputs {
		if inputs[i].ID == "" {
			continue
		}
		items = append(items, *itemFromInput(&inputs[i], now))
	}

	if err := s.index.BulkIndex(ctx, items); err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}

	s.logger.InfoContext(ctx, "bulk index completed",
		slog.Int("count", len(items)),
	)
	return nil
}

func itemFromInput(input *IndexItemInput, now time.Time) *domain.CatalogItem {
	return &domain.CatalogItem{
		ID:               input.ID,
		Name:             input.Name,
		SKU:              input.SKU,
		Slug:             input.Slug,
		Description:      input.Description,
		ShortDescription: input.ShortDescription,
		Price:            input.Price,
		ComparePrice:     input.ComparePrice,
		Quantity:         input.Quantity,
		CategoryID:       input.CategoryID,
		CategoryName:     input.CategoryName,
		BrandID:          input.BrandID,
		BrandName:        input.BrandName,
		IsActive:         input.IsActive,
		IsFeatured:       input.IsFeatured,
		Rating:           input.Rating,
		ViewCount:        input.ViewCount,
		SalesCount:       input.SalesCount,
		ImageURL:         input.ImageURL,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
