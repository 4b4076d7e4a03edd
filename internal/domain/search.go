package domain

import (
	"time"
)

// Sort keys recognized by the search API. The set is a closed enumeration;
// anything outside it is rejected at the HTTP boundary rather than silently
// falling through to a default.
const (
	SortRelevance  = "relevance"
	SortPrice      = "price"
	SortName       = "name"
	SortNewest     = "newest"
	SortRating     = "rating"
	SortPopularity = "popularity"
)

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ValidSortKeys returns the list of recognized sort keys.
func ValidSortKeys() []string {
	return []string{SortRelevance, SortPrice, SortName, SortNewest, SortRating, SortPopularity}
}

// IsValidSortKey checks whether the given string is a recognized sort key.
func IsValidSortKey(key string) bool {
	for _, k := range ValidSortKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// SearchFilters holds the validated structured constraints of a search
// request. Nil pointer fields impose no constraint. Filters compose with
// logical AND.
type SearchFilters struct {
	CategorySlug *string  `json:"category,omitempty"`
	BrandSlugs   []string `json:"brands,omitempty"`
	MinPrice     *int64   `json:"min_price,omitempty"`
	MaxPrice     *int64   `json:"max_price,omitempty"`
	MinRating    *float64 `json:"min_rating,omitempty"`
	InStock      bool     `json:"in_stock,omitempty"`
	OnSale       bool     `json:"on_sale,omitempty"`
	Featured     bool     `json:"featured,omitempty"`
	SortBy       string   `json:"sort_by,omitempty"`
	SortOrder    string   `json:"sort_order,omitempty"`
}

// IsZero reports whether no structured constraint is set.
func (f *SearchFilters) IsZero() bool {
	return f.CategorySlug == nil && len(f.BrandSlugs) == 0 &&
		f.MinPrice == nil && f.MaxPrice == nil && f.MinRating == nil &&
		!f.InStock && !f.OnSale && !f.Featured &&
		f.SortBy == "" && f.SortOrder == ""
}

// SearchRequest is the full parameter set of one product search.
type SearchRequest struct {
	Query   string        `json:"query"`
	Filters SearchFilters `json:"filters"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
}

// SearchResult holds one page of ranked search results.
type SearchResult struct {
	Items   []ScoredItem `json:"items"`
	Total   int          `json:"total"`
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
	TookMs  int64        `json:"took_ms"`
}

// QuickSearchResult is the cross-entity search response: a handful of the
// best product, category, and brand matches for a query.
type QuickSearchResult struct {
	Products   []ScoredItem  `json:"products"`
	Categories []CategoryRef `json:"categories"`
	Brands     []BrandRef    `json:"brands"`
}

// AutocompleteResult groups the suggestion surfaces shown under a search box.
type AutocompleteResult struct {
	Suggestions []string      `json:"suggestions"`
	Products    []ScoredItem  `json:"products"`
	Categories  []CategoryRef `json:"categories"`
	Brands      []BrandRef    `json:"brands"`
}

// Actor identifies who performed a search: an authenticated user or an
// anonymous session. At least one of the two is expected; both empty means
// the actor is untrackable and history operations become no-ops.
type Actor struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// IsZero reports whether the actor carries no identity at all.
func (a Actor) IsZero() bool {
	return a.UserID == "" && a.SessionID == ""
}

// ClientMeta carries request metadata recorded alongside search history.
type ClientMeta struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// SearchHistoryEntry is one immutable record of an executed search. Entries
// are append-only and purged by the retention job.
type SearchHistoryEntry struct {
	ID          string         `json:"id"`
	Query       string         `json:"query"`
	Filters     *SearchFilters `json:"filters,omitempty"`
	ResultCount int            `json:"result_count"`
	Actor       Actor          `json:"actor"`
	Client      ClientMeta     `json:"client"`
	CreatedAt   time.Time      `json:"created_at"`
}

// HistorySummary is one row of a user's search history, grouped by query.
type HistorySummary struct {
	Query          string    `json:"query"`
	SearchCount    int       `json:"search_count"`
	LastSearchedAt time.Time `json:"last_searched_at"`
}

// PopularQuery is the running aggregate for one normalized query string.
// Counters only move up, except through an explicit administrative reset.
// ClickCount and ConversionCount are informational signals and are not
// required to stay below SearchCount.
type PopularQuery struct {
	Query           string    `json:"query"`
	SearchCount     int64     `json:"search_count"`
	ClickCount      int64     `json:"click_count"`
	ConversionCount int64     `json:"conversion_count"`
	LastSearchedAt  time.Time `json:"last_searched_at"`
}

// CTR returns the click-through rate as a percentage.
func (p *PopularQuery) CTR() float64 {
	if p.SearchCount == 0 {
		return 0
	}
	return float64(p.ClickCount) / float64(p.SearchCount) * 100
}

// ConversionRate returns the click-to-conversion rate as a percentage.
func (p *PopularQuery) ConversionRate() float64 {
	if p.ClickCount == 0 {
		return 0
	}
	return float64(p.ConversionCount) / float64(p.ClickCount) * 100
}

// ZeroResultQuery is one row of the zero-result report: a query that
// produced no matches within the lookback window.
type ZeroResultQuery struct {
	Query          string    `json:"query"`
	Count          int       `json:"count"`
	LastSearchedAt time.Time `json:"last_searched_at"`
}
