package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalog-search/internal/service"
	pkgkafka "github.com/utafrali/catalog-search/pkg/kafka"
)

// Kafka topics of the product domain events that keep the search index in
// sync with the catalog.
const (
	TopicProductCreated = "ecommerce.product.created"
	TopicProductUpdated = "ecommerce.product.updated"
	TopicProductDeleted = "ecommerce.product.deleted"
)

// ProductEventData is the payload of product.created and product.updated.
type ProductEventData struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	SKU              string  `json:"sku"`
	Slug             string  `json:"slug"`
	Description      string  `json:"description"`
	ShortDescription string  `json:"short_description"`
	Price            int64   `json:"price"`
	ComparePrice     *int64  `json:"compare_price,omitempty"`
	Quantity         int     `json:"quantity"`
	CategoryID       *string `json:"category_id,omitempty"`
	CategoryName     string  `json:"category_name"`
	BrandID          *string `json:"brand_id,omitempty"`
	BrandName        string  `json:"brand_name"`
	IsActive         bool    `json:"is_active"`
	IsFeatured       bool    `json:"is_featured"`
	Rating           float64 `json:"rating"`
	ImageURL         string  `json:"image_url"`
}

// ProductDeletedData is the payload of product.deleted.
type ProductDeletedData struct {
	ID string `json:"id"`
}

// Consumer applies product domain events to the search read model.
type Consumer struct {
	indexer *service.IndexService
	logger  *slog.Logger
}

// NewConsumer creates a new event consumer for the search index.
func NewConsumer(indexer *service.IndexService, logger *slog.Logger) *Consumer {
	return &Consumer{
		indexer: indexer,
		logger:  logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicProductCreated, TopicProductUpdated:
		return c.handleProductUpsert(ctx, event)
	case TopicProductDeleted:
		return c.handleProductDeleted(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

// handleProductUpsert indexes a created or updated product. Created and
// updated events carry the same payload and both map to a full overwrite of
// the indexed document.
func (c *Consumer) handleProductUpsert(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductEventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal %s data: %w", event.EventType, err)
	}

	input := &service.IndexItemInput{
		ID:               data.ID,
		Name:             data.Name,
		SKU:              data.SKU,
		Slug:             data.Slug,
		Description:      data.Description,
		ShortDescription: data.ShortDescription,
		Price:            data.Price,
		ComparePrice:     data.ComparePrice,
		Quantity:         data.Quantity,
		CategoryName:     data.CategoryName,
		BrandName:        data.BrandName,
		IsActive:         data.IsActive,
		IsFeatured:       data.IsFeatured,
		Rating:           data.Rating,
		ImageURL:         data.ImageURL,
	}
	if data.CategoryID != nil {
		input.CategoryID = *data.CategoryID
	}
	if data.BrandID != nil {
		input.BrandID = *data.BrandID
	}

	if err := c.indexer.IndexItem(ctx, input); err != nil {
		return fmt.Errorf("index item from %s: %w", event.EventType, err)
	}

	c.logger.InfoContext(ctx, "indexed item from product event",
		slog.String("event_type", event.EventType),
		slog.String("product_id", data.ID),
	)

	return nil
}

// handleProductDeleted removes a deleted product from the index.
func (c *Consumer) handleProductDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductDeletedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal product.deleted data: %w", err)
	}

	if err := c.indexer.DeleteItem(ctx, data.ID); err != nil {
		return fmt.Errorf("delete item from deleted event: %w", err)
	}

	c.logger.InfoContext(ctx, "removed item from index",
		slog.String("product_id", data.ID),
	)

	return nil
}
