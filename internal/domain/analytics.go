package domain

import "time"

// PeriodCounts breaks one search metric down by trailing window. AllTime is
// only populated for metrics where the unbounded count is cheap.
type PeriodCounts struct {
	Today     int64 `json:"today"`
	ThisWeek  int64 `json:"this_week"`
	ThisMonth int64 `json:"this_month,omitempty"`
	AllTime   int64 `json:"all_time,omitempty"`
}

// PeriodAverages holds per-window averages of result counts.
type PeriodAverages struct {
	Today    float64 `json:"today"`
	ThisWeek float64 `json:"this_week"`
}

// RecentZeroResult is one recently logged query that matched nothing.
type RecentZeroResult struct {
	Query      string    `json:"query"`
	SearchedAt time.Time `json:"searched_at"`
}

// SearchAnalytics is the admin dashboard summary of search activity.
type SearchAnalytics struct {
	TotalSearches      PeriodCounts       `json:"total_searches"`
	UniqueQueries      PeriodCounts       `json:"unique_queries"`
	AverageResults     PeriodAverages     `json:"average_results"`
	ZeroResultSearches PeriodCounts       `json:"zero_result_searches"`
	TopSearches        []PopularQuery     `json:"top_searches"`
	RecentZeroResults  []RecentZeroResult `json:"recent_zero_results"`
}

// PerformanceOverview aggregates the feedback counters across every tracked
// query. Rates are percentages.
type PerformanceOverview struct {
	TotalSearches         int64   `json:"total_searches"`
	TotalClicks           int64   `json:"total_clicks"`
	TotalConversions      int64   `json:"total_conversions"`
	AverageCTR            float64 `json:"average_ctr"`
	AverageConversionRate float64 `json:"average_conversion_rate"`
}

// SearchPerformance pairs the overview with the best-converting queries.
type SearchPerformance struct {
	Overview      PerformanceOverview `json:"overview"`
	TopPerformers []PopularQuery      `json:"top_performers"`
}
