package http

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"
)

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

// --- Analytics endpoints ---

func TestAnalyticsEndpoint(t *testing.T) {
	f := newTestRouter(t, activeItem("1", "Wireless Mouse"))

	w := doRequest(f, http.MethodGet, "/api/v1/search?q=mouse", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	f.tracker.Wait()

	w = doRequest(f, http.MethodGet, "/api/v1/admin/search/analytics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeEnvelope(t, w)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	totals, ok := data["total_searches"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), totals["all_time"])
}

func TestPerformanceEndpoint(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f, http.MethodGet, "/api/v1/admin/search/performance", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeEnvelope(t, w)
	assert.Nil(t, resp.Error)
}

func TestAdminListPopular_RejectsUnknownSortColumn(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f, http.MethodGet, "/api/v1/admin/search/popular?sort_by=sneaky", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestAdminResetStats_DefaultsToAllScope(t *testing.T) {
	f := newTestRouter(t, activeItem("1", "Wireless Mouse"))

	w := doRequest(f, http.MethodGet, "/api/v1/search?q=mouse", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	f.tracker.Wait()

	w = doRequest(f, http.MethodPost, "/api/v1/admin/search/reset", nil, jsonHeaders)
	require.Equal(t, http.StatusOK, w.Code)

	popular, err := f.store.PopularQueries(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, popular)
}

func TestAdminCleanup_ReportsDeletedCount(t *testing.T) {
	f := newTestRouter(t)

	body := strings.NewReader(`{"days":30}`)
	w := doRequest(f, http.MethodPost, "/api/v1/admin/search/cleanup", body, jsonHeaders)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeEnvelope(t, w)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(0), data["deleted"])
}

// --- Index endpoints ---

func TestAdminIndexItem_RoundTrip(t *testing.T) {
	f := newTestRouter(t)

	body := strings.NewReader(`{"id":"p-1","name":"Trackball Mouse","sku":"TRK-1","price":4500,"is_active":true}`)
	w := doRequest(f, http.MethodPost, "/api/v1/admin/search/index", body, jsonHeaders)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(f, http.MethodGet, "/api/v1/search?q=trackball", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["total"])

	w = doRequest(f, http.MethodDelete, "/api/v1/admin/search/index/p-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAdminIndexItem_RequiresIDAndName(t *testing.T) {
	f := newTestRouter(t)

	body := strings.NewReader(`{"name":"No ID"}`)
	w := doRequest(f, http.MethodPost, "/api/v1/admin/search/index", body, jsonHeaders)
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestAdminBulkIndex_RejectsEmptyList(t *testing.T) {
	f := newTestRouter(t)

	body := strings.NewReader(`{"items":[]}`)
	w := doRequest(f, http.MethodPost, "/api/v1/admin/search/bulk", body, jsonHeaders)
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

// --- Synonym endpoints ---

func TestSynonymEndpoints_CRUD(t *testing.T) {
	f := newTestRouter(t)

	body := strings.NewReader(`{"term":"gpu","synonyms":["graphics card","video card"]}`)
	w := doRequest(f, http.MethodPost, "/api/v1/admin/synonyms", body, jsonHeaders)
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeEnvelope(t, w)
	created, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	id, ok := created["id"].(string)
	require.True(t, ok)
	assert.Equal(t, "gpu", created["term"])

	w = doRequest(f, http.MethodGet, "/api/v1/admin/synonyms/", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeEnvelope(t, w)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	require.Len(t, data["synonyms"], 1)

	body = strings.NewReader(`{"is_active":false}`)
	w = doRequest(f, http.MethodPut, "/api/v1/admin/synonyms/"+id, body, jsonHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeEnvelope(t, w)
	updated, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, updated["is_active"])

	w = doRequest(f, http.MethodDelete, "/api/v1/admin/synonyms/"+id, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSynonymCreate_ValidationFailure(t *testing.T) {
	f := newTestRouter(t)

	body := strings.NewReader(`{"term":"gpu","synonyms":[]}`)
	w := doRequest(f, http.MethodPost, "/api/v1/admin/synonyms", body, jsonHeaders)
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestSynonymGet_InvalidUUID(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f, http.MethodGet, "/api/v1/admin/synonyms/not-a-uuid", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
}

func TestSynonymImport_ReportsImportedAndSkipped(t *testing.T) {
	f := newTestRouter(t)

	body := strings.NewReader(`{"synonyms":[{"term":"gpu","synonyms":["graphics card"]}]}`)
	w := doRequest(f, http.MethodPost, "/api/v1/admin/synonyms/import", body, jsonHeaders)
	require.Equal(t, http.StatusOK, w.Code)

	body = strings.NewReader(`{"synonyms":[{"term":"gpu","synonyms":["video card"]},{"term":"hdd","synonyms":["hard drive"]}]}`)
	w = doRequest(f, http.MethodPost, "/api/v1/admin/synonyms/import", body, jsonHeaders)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeEnvelope(t, w)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["imported"])
	assert.Equal(t, float64(1), data["skipped"])
}

func TestSynonymCreate_ExpandsSubsequentSearches(t *testing.T) {
	f := newTestRouter(t, activeItem("1", "Graphics Card Pro"))

	// Before the synonym exists the query misses.
	w := doRequest(f, http.MethodGet, "/api/v1/search?q=gpu&per_page=10", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(0), data["total"])

	body := strings.NewReader(`{"term":"gpu","synonyms":["graphics card"]}`)
	w = doRequest(f, http.MethodPost, "/api/v1/admin/synonyms", body, jsonHeaders)
	require.Equal(t, http.StatusCreated, w.Code)

	// A differently-keyed request avoids the cached miss and sees the
	// expanded query.
	w = doRequest(f, http.MethodGet, "/api/v1/search?q=gpu&per_page=20", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeEnvelope(t, w)
	data, ok = resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["total"])
}

func TestSynonymGet_UnknownIDIsNotFound(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f, http.MethodGet, "/api/v1/admin/synonyms/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
