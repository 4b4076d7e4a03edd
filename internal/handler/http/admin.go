package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/catalog-search/internal/feedback"
	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/internal/synonym"
	"github.com/utafrali/catalog-search/pkg/httputil"
	"github.com/utafrali/catalog-search/pkg/pagination"
	"github.com/utafrali/catalog-search/pkg/validator"
)

// AdminHandler handles the administrative endpoints: analytics, statistics
// maintenance, index writes, and synonym management.
type AdminHandler struct {
	admin    *service.AdminService
	indexer  *service.IndexService
	reindex  *service.ReindexService
	synonyms *synonym.Service
	logger   *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(
	admin *service.AdminService,
	indexer *service.IndexService,
	reindex *service.ReindexService,
	synonyms *synonym.Service,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		indexer:  indexer,
		reindex:  reindex,
		synonyms: synonyms,
		logger:   logger,
	}
}

// --- Request DTOs ---

// ResetStatsRequest is the JSON request body for resetting search statistics.
type ResetStatsRequest struct {
	Scope string `json:"scope" validate:"omitempty,oneof=all clicks conversions"`
}

// CleanupRequest is the JSON request body for purging old search history.
type CleanupRequest struct {
	Days int `json:"days" validate:"omitempty,min=1,max=3650"`
}

// BulkIndexRequest is the JSON request body for bulk indexing catalog items.
type BulkIndexRequest struct {
	Items []service.IndexItemInput `json:"items" validate:"required,min=1,max=500"`
}

// ImportSynonymsRequest is the JSON request body for importing synonym groups.
type ImportSynonymsRequest struct {
	Synonyms []synonym.CreateInput `json:"synonyms" validate:"required,min=1,max=500,dive"`
}

// --- Analytics handlers ---

// Analytics handles GET /api/v1/admin/search/analytics
func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.admin.Analytics(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: analytics})
}

// Performance handles GET /api/v1/admin/search/performance
func (h *AdminHandler) Performance(w http.ResponseWriter, r *http.Request) {
	performance, err := h.admin.Performance(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: performance})
}

// ListPopular handles GET /api/v1/admin/search/popular
func (h *AdminHandler) ListPopular(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := pagination.FromRequest(r)

	queries, total, err := h.admin.ListPopular(r.Context(), q.Get("sort_by"), q.Get("sort_order"), params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: pagination.NewResult(queries, total, params),
	})
}

// ZeroResults handles GET /api/v1/admin/search/zero-results
func (h *AdminHandler) ZeroResults(w http.ResponseWriter, r *http.Request) {
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

	queries, err := h.admin.ZeroResults(r.Context(), days, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"queries": queries}})
}

// ResetStats handles POST /api/v1/admin/search/reset
func (h *AdminHandler) ResetStats(w http.ResponseWriter, r *http.Request) {
	var req ResetStatsRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
			})
			return
		}
	}
	if req.Scope == "" {
		req.Scope = feedback.ResetAll
	}

	if err := h.admin.ResetStats(r.Context(), req.Scope); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"scope": req.Scope, "status": "reset"}})
}

// Cleanup handles POST /api/v1/admin/search/cleanup
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
			})
			return
		}
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	deleted, err := h.admin.CleanupHistory(r.Context(), req.Days)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"deleted": deleted}})
}

// --- Index handlers ---

// IndexItem handles POST /api/v1/admin/search/index
func (h *AdminHandler) IndexItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req service.IndexItemInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}
	if req.ID == "" || req.Name == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "id and name are required"},
		})
		return
	}

	if err := h.indexer.IndexItem(r.Context(), &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": req.ID, "status": "indexed"}})
}

// DeleteItem handles DELETE /api/v1/admin/search/index/{id}
func (h *AdminHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "id is required"},
		})
		return
	}

	if err := h.indexer.DeleteItem(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": "deleted"}})
}

// BulkIndex handles POST /api/v1/admin/search/bulk
func (h *AdminHandler) BulkIndex(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20) // 10MB limit for bulk endpoint

	var req BulkIndexRequest
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

	if err := h.indexer.BulkIndex(r.Context(), req.Items); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"indexed": len(req.Items), "status": "ok"}})
}

// Reindex handles POST /api/v1/admin/search/reindex
func (h *AdminHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx := context.Background()
		if _, err := h.reindex.Reindex(ctx); err != nil {
			h.logger.ErrorContext(ctx, "background reindex failed", "error", err)
		}
	}()

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: map[string]string{"status": "reindex started"}})
}

// --- Synonym handlers ---

// ListSynonyms handles GET /api/v1/admin/synonyms
func (h *AdminHandler) ListSynonyms(w http.ResponseWriter, r *http.Request) {
	synonyms, err := h.synonyms.List(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"synonyms": synonyms}})
}

// GetSynonym handles GET /api/v1/admin/synonyms/{id}
func (h *AdminHandler) GetSynonym(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	syn, err := h.synonyms.Get(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: syn})
}

// CreateSynonym handles POST /api/v1/admin/synonyms
func (h *AdminHandler) CreateSynonym(w http.ResponseWriter, r *http.Request) {
	var req synonym.CreateInput
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

	syn, err := h.synonyms.Create(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: syn})
}

// UpdateSynonym handles PUT /api/v1/admin/synonyms/{id}
func (h *AdminHandler) UpdateSynonym(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req synonym.UpdateInput
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

	syn, err := h.synonyms.Update(r.Context(), id.String(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: syn})
}

// DeleteSynonym handles DELETE /api/v1/admin/synonyms/{id}
func (h *AdminHandler) DeleteSynonym(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.synonyms.Delete(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id.String(), "status": "deleted"}})
}

// ImportSynonyms handles POST /api/v1/admin/synonyms/import
func (h *AdminHandler) ImportSynonyms(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)

	var req ImportSynonymsRequest
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

	result, err := h.synonyms.Import(r.Context(), req.Synonyms)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
