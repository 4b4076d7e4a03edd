package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/utafrali/catalog-search/internal/domain"
)

// Cached operation names. Each operation owns a key namespace so whole
// families can be invalidated by prefix.
const (
	OpSearch       = "search"
	OpSearchAll    = "all"
	OpAutocomplete = "autocomplete"
	OpSuggestions  = "suggestions"
	OpPopular      = "popular"
	OpTrending     = "trending"
)

// keyVersion is bumped whenever the cached payload shape changes, so stale
// entries from a previous deploy are never decoded.
const keyVersion = "v1"

// OpPrefix returns the key prefix owned by one operation.
func OpPrefix(op string) string {
	return fmt.Sprintf("search:%s:%s:", op, keyVersion)
}

// SearchKey builds the canonical cache key for a paged search request.
// Filter fields are serialized as sorted k=v pairs, so two requests with the
// same constraints expressed in a different order share one key.
func SearchKey(op, normalizedQuery string, filters *domain.SearchFilters, page, perPage int) string {
	pairs := filterPairs(filters)
	pairs = append(pairs,
		fmt.Sprintf("page=%d", page),
		fmt.Sprintf("per_page=%d", perPage),
	)
	return OpPrefix(op) + digest(normalizedQuery, pairs)
}

// ParamsKey builds the canonical cache key for non-search operations whose
// identity is a small parameter set (e.g. popular limit, trending window).
func ParamsKey(op string, params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, k+"="+v)
	}
	return OpPrefix(op) + digest("", pairs)
}

// filterPairs flattens set filter fields into k=v strings. Unset fields are
// omitted so requests differing only in unset fields share keys. Brand slugs
// are sorted for the same reason.
func filterPairs(f *domain.SearchFilters) []string {
	var pairs []string

	if f.CategorySlug != nil {
		pairs = append(pairs, "category="+*f.CategorySlug)
	}
	if len(f.BrandSlugs) > 0 {
		brands := make([]string, len(f.BrandSlugs))
		copy(brands, f.BrandSlugs)
		sort.Strings(brands)
		pairs = append(pairs, "brands="+strings.Join(brands, ","))
	}
	if f.MinPrice != nil {
		pairs = append(pairs, fmt.Sprintf("min_price=%d", *f.MinPrice))
	}
	if f.MaxPrice != nil {
		pairs = append(pairs, fmt.Sprintf("max_price=%d", *f.MaxPrice))
	}
	if f.MinRating != nil {
		pairs = append(pairs, fmt.Sprintf("min_rating=%g", *f.MinRating))
	}
	if f.InStock {
		pairs = append(pairs, "in_stock=1")
	}
	if f.OnSale {
		pairs = append(pairs, "on_sale=1")
	}
	if f.Featured {
		pairs = append(pairs, "featured=1")
	}
	if f.SortBy != "" {
		pairs = append(pairs, "sort_by="+f.SortBy)
	}
	if f.SortOrder != "" {
		pairs = append(pairs, "sort_order="+f.SortOrder)
	}

	return pairs
}

// digest hashes the normalized query and sorted pairs into a fixed-length
// hex string. Hashing keeps keys bounded regardless of query length.
func digest(normalizedQuery string, pairs []string) string {
	sort.Strings(pairs)

	h := sha256.New()
	h.Write([]byte(normalizedQuery))
	h.Write([]byte{0})
	for _, pair := range pairs {
		h.Write([]byte(pair))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
