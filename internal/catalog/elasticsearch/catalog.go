package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/utafrali/catalog-search/internal/domain"
)

// maxCandidates bounds how many documents a single candidate query may return.
// Filtering and pagination happen in the search core, so the provider returns
// the full candidate set up to this limit.
const maxCandidates = 1000

// ItemIndex is an Elasticsearch-backed catalog provider.
type ItemIndex struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

// esSearchResponse is the structure used to decode Elasticsearch search responses.
type esSearchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Score  float64            `json:"_score"`
			Source domain.CatalogItem `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// esBulkResponse is the structure used to decode Elasticsearch bulk responses.
type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

// esErrorResponse is used to decode Elasticsearch error responses.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates a new Elasticsearch catalog provider connected to the given URL.
// It ensures the items index exists, creating it if necessary.
// If indexName is empty, DefaultIndexName ("catalog_items") is used.
func New(esURL string, indexName string, logger *slog.Logger) (*ItemIndex, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}

	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	idx := &ItemIndex{
		client:    client,
		indexName: indexName,
		logger:    logger,
	}

	if err := idx.ensureIndex(); err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to ensure index: %w", err)
	}

	return idx, nil
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (idx *ItemIndex) Ping(ctx context.Context) error {
	res, err := idx.client.Ping(idx.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// ensureIndex checks whether the items index exists and creates it if not.
func (idx *ItemIndex) ensureIndex() error {
	res, err := idx.client.Indices.Exists([]string{idx.indexName})
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	// Status 200 means the index exists.
	if res.StatusCode == 200 {
		idx.logger.Info("elasticsearch index already exists", "index", idx.indexName)
		return nil
	}

	mapping := buildIndexMapping()
	res, err = idx.client.Indices.Create(
		idx.indexName,
		idx.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("create index: %s", idx.decodeError(res.Body, res.Status()))
	}

	idx.logger.Info("elasticsearch index created", "index", idx.indexName)
	return nil
}

// FindActiveByText runs a full-text relevance match over name, sku and
// descriptions. Scores come straight from Elasticsearch _score values.
func (idx *ItemIndex) FindActiveByText(ctx context.Context, expandedQuery string) ([]domain.ScoredItem, error) {
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  expandedQuery,
							"fields": []string{"name^3", "sku^2", "description", "short_description"},
							"type":   "best_fields",
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"is_active": true},
					},
				},
			},
		},
		"size": maxCandidates,
		"sort": []interface{}{
			map[string]interface{}{"_score": "desc"},
		},
	}

	resp, err := idx.search(ctx, esQuery)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch text search: %w", err)
	}

	scored := make([]domain.ScoredItem, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		scored = append(scored, domain.ScoredItem{CatalogItem: hit.Source, Score: hit.Score})
	}
	return scored, nil
}

// FindActiveBySubstring finds active items whose name or sku contains the
// normalized query as a substring, using wildcard matches on the lowercase
// keyword subfields.
func (idx *ItemIndex) FindActiveBySubstring(ctx context.Context, normalizedQuery string) ([]domain.CatalogItem, error) {
	pattern := "*" + escapeWildcard(strings.ToLower(normalizedQuery)) + "*"

	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{
						"wildcard": map[string]interface{}{
							"name.keyword": map[string]interface{}{"value": pattern},
						},
					},
					map[string]interface{}{
						"wildcard": map[string]interface{}{
							"sku.lower": map[string]interface{}{"value": pattern},
						},
					},
				},
				"minimum_should_match": 1,
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"is_active": true},
					},
				},
			},
		},
		"size": maxCandidates,
		"sort": []interface{}{
			map[string]interface{}{"name.keyword": "asc"},
		},
	}

	resp, err := idx.search(ctx, esQuery)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch substring search: %w", err)
	}

	items := make([]domain.CatalogItem, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		items = append(items, hit.Source)
	}
	return items, nil
}

// AllActive returns every active item, for empty-query browsing.
func (idx *ItemIndex) AllActive(ctx context.Context) ([]domain.CatalogItem, error) {
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"is_active": true},
					},
				},
			},
		},
		"size": maxCandidates,
		"sort": []interface{}{
			map[string]interface{}{"created_at": "desc"},
		},
	}

	resp, err := idx.search(ctx, esQuery)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch browse: %w", err)
	}

	items := make([]domain.CatalogItem, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		items = append(items, hit.Source)
	}
	return items, nil
}

// Index adds or updates a single item in the Elasticsearch index.
func (idx *ItemIndex) Index(ctx context.Context, item *domain.CatalogItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal item: %w", err)
	}

	res, err := idx.client.Index(
		idx.indexName,
		bytes.NewReader(data),
		idx.client.Index.WithDocumentID(item.ID),
		idx.client.Index.WithRefresh("true"),
		idx.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch index: %s", idx.decodeError(res.Body, res.Status()))
	}

	idx.logger.Debug("indexed item", "id", item.ID, "name", item.Name)
	return nil
}

// Delete removes an item from the Elasticsearch index by its ID.
// It does not return an error if the document does not exist (404 is ignored).
func (idx *ItemIndex) Delete(ctx context.Context, id string) error {
	res, err := idx.client.Delete(
		idx.indexName,
		id,
		idx.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("elasticsearch delete: %s", idx.decodeError(res.Body, res.Status()))
	}

	idx.logger.Debug("deleted item", "id", id)
	return nil
}

// BulkIndex adds or updates multiple items in the Elasticsearch index
// using the bulk NDJSON API.
func (idx *ItemIndex) BulkIndex(ctx context.Context, items []domain.CatalogItem) error {
	if len(items) == 0 {
		return nil
	}

	var buf bytes.Buffer

	for i := range items {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": idx.indexName,
				"_id":    items[i].ID,
			},
		}
		if err := json.NewEncoder(&buf).Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode action: %w", err)
		}
		if err := json.NewEncoder(&buf).Encode(items[i]); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode document: %w", err)
		}
	}

	res, err := idx.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		idx.client.Bulk.WithIndex(idx.indexName),
		idx.client.Bulk.WithRefresh("true"),
		idx.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch bulk index: %s", idx.decodeError(res.Body, res.Status()))
	}

	var bulkResp esBulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("elasticsearch bulk index: decode response: %w", err)
	}

	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			if item.Index.Error.Type != "" {
				errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("elasticsearch bulk index: partial errors: %s", strings.Join(errMsgs, "; "))
	}

	idx.logger.Info("bulk indexed items", "count", len(items))
	return nil
}

// ───────────────────────────────── Helpers ─────────────────────────────────

// search executes a query against the items index and decodes the response.
func (idx *ItemIndex) search(ctx context.Context, esQuery map[string]interface{}) (*esSearchResponse, error) {
	data, err := json.Marshal(esQuery)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := idx.client.Search(
		idx.client.Search.WithIndex(idx.indexName),
		idx.client.Search.WithBody(bytes.NewReader(data)),
		idx.client.Search.WithContext(ctx),
		idx.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, fmt.Errorf("%s", idx.decodeError(res.Body, res.Status()))
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &esResp, nil
}

// decodeError extracts a readable message from an Elasticsearch error body.
func (idx *ItemIndex) decodeError(body io.Reader, status string) string {
	var errResp esErrorResponse
	if err := json.NewDecoder(body).Decode(&errResp); err == nil && errResp.Error.Type != "" {
		return fmt.Sprintf("%s: %s", errResp.Error.Type, errResp.Error.Reason)
	}
	return fmt.Sprintf("unexpected status %s", status)
}

// escapeWildcard escapes the wildcard metacharacters in a user-supplied term
// so only the surrounding asterisks act as wildcards.
func escapeWildcard(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "*", `\*`)
	s = strings.ReplaceAll(s, "?", `\?`)
	return s
}
