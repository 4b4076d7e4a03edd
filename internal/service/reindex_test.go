package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogmem "github.com/utafrali/catalog-search/internal/catalog/memory"
)

func newReindexFixture(t *testing.T, handler http.HandlerFunc) (*ReindexService, *catalogmem.ItemIndex) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	index := catalogmem.NewItemIndex()
	indexer := NewIndexService(index, logger)

	return NewReindexService(indexer, plainClient{}, server.URL, logger), index
}

// plainClient satisfies CatalogClient without circuit breaking, which tests
// do not need.
type plainClient struct{}

func (plainClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return http.DefaultClient.Do(req)
}

func catalogItemJSON(id int) string {
	return fmt.Sprintf(`{"id":"item-%d","name":"Product %d","sku":"SKU-%d","price":1000,"is_active":true}`, id, id, id)
}

func TestReindex_WalksAllPages(t *testing.T) {
	const total = 450 // 3 pages at 200 per page

	svc, index := newReindexFixture(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		assert.Equal(t, reindexPageSize, perPage)

		start := (page - 1) * perPage
		items := ""
		for i := start; i < start+perPage && i < total; i++ {
			if items != "" {
				items += ","
			}
			items += catalogItemJSON(i)
		}
		fmt.Fprintf(w, `{"data":{"items":[%s],"total":%d}}`, items, total)
	})

	indexed, err := svc.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, total, indexed)

	items, err := index.AllActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, total)
}

func TestReindex_EmptyCatalog(t *testing.T) {
	svc, _ := newReindexFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"items":[],"total":0}}`)
	})

	indexed, err := svc.Reindex(context.Background())
	require.NoError(t, err)
	assert.Zero(t, indexed)
}

func TestReindex_UpstreamErrorAborts(t *testing.T) {
	calls := 0
	svc, index := newReindexFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprintf(w, `{"data":{"items":[%s],"total":400}}`, pageOfItems(0, reindexPageSize))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom"}}`)
	})

	indexed, err := svc.Reindex(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 2")

	// The first page was already committed.
	assert.Equal(t, reindexPageSize, indexed)
	items, ierr := index.AllActive(context.Background())
	require.NoError(t, ierr)
	assert.Len(t, items, reindexPageSize)
}

func TestReindex_MalformedPage(t *testing.T) {
	svc, _ := newReindexFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":`)
	})

	_, err := svc.Reindex(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode catalog page")
}

func pageOfItems(start, count int) string {
	items := ""
	for i := start; i < start+count; i++ {
		if items != "" {
			items += ","
		}
		items += catalogItemJSON(i)
	}
	return items
}
