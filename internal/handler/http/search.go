package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/pkg/httputil"
	"github.com/utafrali/catalog-search/pkg/pagination"
	"github.com/utafrali/catalog-search/pkg/validator"
)

// SearchHandler handles the public search endpoints.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// TrackEventRequest is the JSON request body for tracking a search outcome.
type TrackEventRequest struct {
	Query string `json:"query" validate:"required,max=200"`
	Event string `json:"event" validate:"required,oneof=click conversion"`
}

// --- Handlers ---

// Search handles GET /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	filters, ok := parseFilters(w, r)
	if !ok {
		return
	}

	params := pagination.FromRequest(r)
	input := &service.SearchInput{
		Query:   r.URL.Query().Get("q"),
		Filters: *filters,
		Page:    params.Page,
		PerPage: params.PerPage,
		Actor:   actorFromRequest(r),
		Client:  clientMetaFromRequest(r),
	}

	result, err := h.service.Search(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// SearchAll handles GET /api/v1/search/all
func (h *SearchHandler) SearchAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SearchAll(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Autocomplete handles GET /api/v1/search/autocomplete
func (h *SearchHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Autocomplete(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Suggestions handles GET /api/v1/search/suggestions
func (h *SearchHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}

	suggestions, err := h.service.Suggestions(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"suggestions": suggestions}})
}

// Popular handles GET /api/v1/search/popular
func (h *SearchHandler) Popular(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}

	queries, err := h.service.Popular(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"popular": queries}})
}

// Trending handles GET /api/v1/search/trending
func (h *SearchHandler) Trending(w http.ResponseWriter, r *http.Request) {
	days, limit := 0, 0
	if v := r.URL.Query().Get("days"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			days = d
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}

	queries, err := h.service.Trending(r.Context(), days, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"trending": queries}})
}

// Track handles POST /api/v1/search/track
func (h *SearchHandler) Track(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req TrackEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	switch req.Event {
	case "click":
		h.service.TrackClick(req.Query)
	case "conversion":
		h.service.TrackConversion(req.Query)
	}

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: map[string]string{"status": "accepted"}})
}

// History handles GET /api/v1/search/history
func (h *SearchHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}

	history, err := h.service.History(r.Context(), actorFromRequest(r), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"history": history}})
}

// ClearHistory handles DELETE /api/v1/search/history
func (h *SearchHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearHistory(r.Context(), actorFromRequest(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "cleared"}})
}

// ───────────────────────────────── Helpers ─────────────────────────────────

// parseFilters builds SearchFilters from query parameters. Malformed numeric
// parameters are a 400; semantic validation (range order, sort whitelist)
// happens in the service.
func parseFilters(w http.ResponseWriter, r *http.Request) (*domain.SearchFilters, bool) {
	q := r.URL.Query()
	filters := &domain.SearchFilters{
		SortBy:    q.Get("sort"),
		SortOrder: q.Get("order"),
	}

	if v := q.Get("category"); v != "" {
		filters.CategorySlug = &v
	}
	if v := q.Get("brands"); v != "" {
		for _, slug := range strings.Split(v, ",") {
			if slug = strings.TrimSpace(slug); slug != "" {
				filters.BrandSlugs = append(filters.BrandSlugs, slug)
			}
		}
	}
	if v := q.Get("min_price"); v != "" {
		price, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeInvalidParameter(w, "min_price must be a valid number")
			return nil, false
		}
		filters.MinPrice = &price
	}
	if v := q.Get("max_price"); v != "" {
		price, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeInvalidParameter(w, "max_price must be a valid number")
			return nil, false
		}
		filters.MaxPrice = &price
	}
	if v := q.Get("min_rating"); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeInvalidParameter(w, "min_rating must be a valid number")
			return nil, false
		}
		filters.MinRating = &rating
	}
	filters.InStock = boolParam(q.Get("in_stock"))
	filters.OnSale = boolParam(q.Get("on_sale"))
	filters.Featured = boolParam(q.Get("featured"))

	return filters, true
}

func boolParam(v string) bool {
	return v == "true" || v == "1"
}

func writeInvalidParameter(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: message},
	})
}
