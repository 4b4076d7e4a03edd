package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/cache"
	catalogmem "github.com/utafrali/catalog-search/internal/catalog/memory"
	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/feedback"
	feedbackmem "github.com/utafrali/catalog-search/internal/feedback/memory"
	"github.com/utafrali/catalog-search/internal/query"
	"github.com/utafrali/catalog-search/internal/search"
	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/internal/synonym"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
	"github.com/utafrali/catalog-search/pkg/health"
	"github.com/utafrali/catalog-search/pkg/httputil"
	"github.com/utafrali/catalog-search/pkg/middleware"
)

type routerFixture struct {
	router  http.Handler
	tracker *feedback.Tracker
	store   *feedbackmem.Store
}

func newTestRouter(t *testing.T, items ...domain.CatalogItem) *routerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	index := catalogmem.NewItemIndex()
	require.NoError(t, index.BulkIndex(context.Background(), items))

	taxonomy := catalogmem.NewTaxonomy()
	engine := search.NewEngine(index, taxonomy, logger)

	store := feedbackmem.NewStore()
	cacheStore := cache.NewMemoryStore()
	t.Cleanup(cacheStore.Close)
	tracker := feedback.NewTracker(store, cacheStore, logger)

	synRepo := newFakeSynonymRepo()
	expander := query.NewExpander(synRepo, time.Minute, logger)
	synonyms := synonym.NewService(synRepo, expander, logger)

	searchSvc := service.NewSearchService(engine, expander, taxonomy, cacheStore, store, tracker, service.Config{}, logger)
	adminSvc := service.NewAdminService(store, cacheStore, logger)
	indexSvc := service.NewIndexService(index, logger)
	reindexSvc := service.NewReindexService(indexSvc, nil, "http://localhost:9999", logger)

	router := NewRouter(RouterDeps{
		Search:   searchSvc,
		Admin:    adminSvc,
		Indexer:  indexSvc,
		Reindex:  reindexSvc,
		Synonyms: synonyms,
		Health:   health.NewHandler(),
		CORS:     middleware.DefaultCORSConfig(),
	}, logger)

	return &routerFixture{router: router, tracker: tracker, store: store}
}

// fakeSynonymRepo is an in-memory synonym.Repository for handler tests.
type fakeSynonymRepo struct {
	byID map[string]domain.Synonym
}

func newFakeSynonymRepo() *fakeSynonymRepo {
	return &fakeSynonymRepo{byID: make(map[string]domain.Synonym)}
}

func (f *fakeSynonymRepo) Create(_ context.Context, syn *domain.Synonym) error {
	f.byID[syn.ID] = *syn
	return nil
}

func (f *fakeSynonymRepo) Update(_ context.Context, syn *domain.Synonym) error {
	f.byID[syn.ID] = *syn
	return nil
}

func (f *fakeSynonymRepo) Delete(_ context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeSynonymRepo) GetByID(_ context.Context, id string) (*domain.Synonym, error) {
	if syn, ok := f.byID[id]; ok {
		return &syn, nil
	}
	return nil, apperrors.NotFound("synonym", id)
}

func (f *fakeSynonymRepo) GetByTerm(_ context.Context, term string) (*domain.Synonym, error) {
	for _, syn := range f.byID {
		if syn.Term == term {
			return &syn, nil
		}
	}
	return nil, nil
}

func (f *fakeSynonymRepo) List(_ context.Context) ([]domain.Synonym, error) {
	out := make([]domain.Synonym, 0, len(f.byID))
	for _, syn := range f.byID {
		out = append(out, syn)
	}
	return out, nil
}

func (f *fakeSynonymRepo) ListActive(ctx context.Context) ([]domain.Synonym, error) {
	all, _ := f.List(ctx)
	active := make([]domain.Synonym, 0, len(all))
	for _, syn := range all {
		if syn.IsActive {
			active = append(active, syn)
		}
	}
	return active, nil
}

func activeItem(id, name string) domain.CatalogItem {
	return domain.CatalogItem{
		ID:        id,
		Name:      name,
		SKU:       "SKU-" + id,
		Price:     1000,
		Quantity:  3,
		IsActive:  true,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func doRequest(f *routerFixture, method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

// --- Search endpoint ---

func TestSearchEndpoint_ReturnsResults(t *testing.T) {
	f := newTestRouter(t, activeItem("1", "Wireless Mouse"), activeItem("2", "USB Hub"))

	w := doRequest(f, http.MethodGet, "/api/v1/search?q=mouse", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeEnvelope(t, w)
	require.Nil(t, resp.Error)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(1), data["page"])
}

func TestSearchEndpoint_InvalidSortIsBadRequest(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f, http.MethodGet, "/api/v1/search?q=mouse&sort=cleverness", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestSearchEndpoint_MalformedPriceIsBadRequest(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f, http.MethodGet, "/api/v1/search?q=mouse&min_price=cheap", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
}

func TestSearchEndpoint_PriceRangeOrderIsBadRequest(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f, http.MethodGet, "/api/v1/search?q=mouse&min_price=500&max_price=100", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchEndpoint_TracksActorFromHeaders(t *testing.T) {
	f := newTestRouter(t, activeItem("1", "Wireless Mouse"))

	w := doRequest(f, http.MethodGet, "/api/v1/search?q=mouse", nil, map[string]string{"X-Session-ID": "sess-9"})
	require.Equal(t, http.StatusOK, w.Code)
	f.tracker.Wait()

	history, err := f.store.HistoryForActor(context.Background(), domain.Actor{SessionID: "sess-9"}, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "mouse", history[0].Query)
}

// --- Quick search surfaces ---

func TestAutocompleteEndpoint_ShortQueryReturnsEmptySurfaces(t *testing.T) {
	f := newTestRouter(t, activeItem("1", "Wireless Mouse"))

	w := doRequest(f, http.MethodGet, "/api/v1/search/autocomplete?q=m", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeEnvelope(t, w)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Empty(t, data["products"])
	assert.Empty(t, data["suggestions"])
}

func TestSearchAllEndpoint_ReturnsSurfaces(t *testing.T) {
	f := newTestRouter(t, activeItem("1", "Wireless Mouse"))

	w := doRequest(f, http.MethodGet, "/api/v1/search/all?q=mouse", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeEnvelope(t, w)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	products, ok := data["products"].([]any)
	require.True(t, ok)
	assert.Len(t, products, 1)
}

func TestPopularEndpoint_SetsCacheControl(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f, http.MethodGet, "/api/v1/search/popular", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Cache-Control"), "max-age=60")
}

// --- Tracking endpoint ---

func TestTrackEndpoint_AcceptsClick(t *testing.T) {
	f := newTestRouter(t, activeItem("1", "Wireless Mouse"))

	// Seed the aggregate so the click has something to land on.
	w := doRequest(f, http.MethodGet, "/api/v1/search?q=mouse", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	f.tracker.Wait()

	body := strings.NewReader(`{"query":"mouse","event":"click"}`)
	w = doRequest(f, http.MethodPost, "/api/v1/search/track", body, map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusAccepted, w.Code)
	f.tracker.Wait()

	popular, err := f.store.PopularQueries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, int64(1), popular[0].ClickCount)
}

func TestTrackEndpoint_RejectsUnknownEvent(t *testing.T) {
	f := newTestRouter(t)

	body := strings.NewReader(`{"query":"mouse","event":"hover"}`)
	w := doRequest(f, http.MethodPost, "/api/v1/search/track", body, map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestTrackEndpoint_RejectsNonJSONContentType(t *testing.T) {
	f := newTestRouter(t)

	body := strings.NewReader("query=mouse")
	w := doRequest(f, http.MethodPost, "/api/v1/search/track", body, map[string]string{"Content-Type": "text/plain"})
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestTrackEndpoint_RejectsBodyOver1MB(t *testing.T) {
	f := newTestRouter(t)

	large := strings.Repeat("x", 1<<20+1)
	body := strings.NewReader(`{"query":"` + large + `","event":"click"}`)
	w := doRequest(f, http.MethodPost, "/api/v1/search/track", body, map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- History endpoints ---

func TestHistoryEndpoints_RoundTrip(t *testing.T) {
	f := newTestRouter(t, activeItem("1", "Wireless Mouse"))
	headers := map[string]string{"X-User-ID": "u-1"}

	w := doRequest(f, http.MethodGet, "/api/v1/search?q=mouse", nil, headers)
	require.Equal(t, http.StatusOK, w.Code)
	f.tracker.Wait()

	w = doRequest(f, http.MethodGet, "/api/v1/search/history", nil, headers)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	require.Len(t, data["history"], 1)

	w = doRequest(f, http.MethodDelete, "/api/v1/search/history", nil, headers)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(f, http.MethodGet, "/api/v1/search/history", nil, headers)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeEnvelope(t, w)
	data, ok = resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Empty(t, data["history"])
}

// --- Health ---

func TestHealthEndpoints(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(f, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
