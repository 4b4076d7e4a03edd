package domain

import (
	"time"
)

// CatalogItem is the read-model projection of a product that the search
// service matches, filters, and ranks. It is owned by the catalog domain and
// kept in sync via product events; the search service never mutates it outside
// of that sync path.
type CatalogItem struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	SKU              string    `json:"sku"`
	Slug             string    `json:"slug"`
	Description      string    `json:"description"`
	ShortDescription string    `json:"short_description"`
	Price            int64     `json:"price"`
	ComparePrice     *int64    `json:"compare_price,omitempty"`
	Quantity         int       `json:"quantity"`
	CategoryID       string    `json:"category_id"`
	CategoryName     string    `json:"category_name"`
	BrandID          string    `json:"brand_id"`
	BrandName        string    `json:"brand_name"`
	IsActive         bool      `json:"is_active"`
	IsFeatured       bool      `json:"is_featured"`
	Rating           float64   `json:"rating"`
	ViewCount        int64     `json:"view_count"`
	SalesCount       int64     `json:"sales_count"`
	ImageURL         string    `json:"image_url"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// OnSale reports whether the item has a strike-through price above the
// current price.
func (i *CatalogItem) OnSale() bool {
	return i.ComparePrice != nil && *i.ComparePrice > i.Price
}

// InStock reports whether the item has sellable quantity.
func (i *CatalogItem) InStock() bool {
	return i.Quantity > 0
}

// ScoredItem pairs a catalog item with its relevance score. Score is only
// meaningful when the search carried a non-empty text query; for browse
// requests it is zero and ignored.
type ScoredItem struct {
	CatalogItem
	Score float64 `json:"relevance_score,omitempty"`
}

// CategoryRef is a lightweight category reference returned by cross-entity
// search and autocomplete.
type CategoryRef struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ProductCount int    `json:"product_count"`
}

// BrandRef is a lightweight brand reference returned by cross-entity search
// and autocomplete.
type BrandRef struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ProductCount int    `json:"product_count"`
}
