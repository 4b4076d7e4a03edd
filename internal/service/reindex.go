package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/utafrali/catalog-search/pkg/httpclient"
)

const reindexPageSize = 200

// CatalogClient fetches catalog pages over HTTP. Satisfied by the circuit
// breaker client so a struggling catalog service trips the breaker instead
// of being hammered by a full reindex.
type CatalogClient interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// ReindexService rebuilds the search read model from the catalog service.
type ReindexService struct {
	indexer    *IndexService
	client     CatalogClient
	catalogURL string
	logger     *slog.Logger
}

// NewReindexService creates a reindex service pulling from the catalog
// service at baseURL.
func NewReindexService(indexer *IndexService, client CatalogClient, baseURL string, logger *slog.Logger) *ReindexService {
	return &ReindexService{
		indexer:    indexer,
		client:     client,
		catalogURL: baseURL,
		logger:     logger,
	}
}

// catalogPage is the catalog service's paged product listing response.
type catalogPage struct {
	Data struct {
		Items []IndexItemInput `json:"items"`
		Total int              `json:"total"`
	} `json:"data"`
}

// Reindex pulls every product page from the catalog service and bulk-indexes
// each page. Returns the number of items indexed.
func (s *ReindexService) Reindex(ctx context.Context) (int, error) {
	indexed := 0

	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/api/v1/products?page=%d&per_page=%d", s.catalogURL, page, reindexPageSize)

		items, total, err := s.fetchPage(ctx, url)
		if err != nil {
			return indexed, fmt.Errorf("reindex page %d: %w", page, err)
		}
		if len(items) == 0 {
			break
		}

		if err := s.indexer.BulkIndex(ctx, items); err != nil {
			return indexed, fmt.Errorf("reindex page %d: %w", page, err)
		}
		indexed += len(items)

		s.logger.InfoContext(ctx, "reindex progress",
			slog.Int("page", page),
			slog.Int("indexed", indexed),
			slog.Int("total", total),
		)

		if indexed >= total {
			break
		}
	}

	s.logger.InfoContext(ctx, "reindex completed", slog.Int("indexed", indexed))
	return indexed, nil
}

func (s *ReindexService) fetchPage(ctx context.Context, url string) ([]IndexItemInput, int, error) {
	resp, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, httpclient.ParseResponseError(resp, "catalog")
	}

	var page catalogPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, 0, fmt.Errorf("decode catalog page: %w", err)
	}
	return page.Data.Items, page.Data.Total, nil
}
