package elasticsearch

// DefaultIndexName is the default Elasticsearch index used for catalog item documents.
const DefaultIndexName = "catalog_items"

// buildIndexMapping returns the full JSON mapping for the catalog items index.
// The name field carries an edge-ngram autocomplete subfield and a lowercase
// keyword subfield used for substring matching; sku gets the same keyword
// treatment so partial SKU lookups work.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "normalizer": {
        "lowercase_normalizer": {
          "type": "custom",
          "filter": ["lowercase"]
        }
      },
      "analyzer": {
        "autocomplete_analyzer": {
          "type": "custom",
          "tokenizer": "autocomplete_tokenizer",
          "filter": ["lowercase"]
        },
        "autocomplete_search": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase"]
        }
      },
      "tokenizer": {
        "autocomplete_tokenizer": {
          "type": "edge_ngram",
          "min_gram": 2,
          "max_gram": 20,
          "token_chars": ["letter", "digit"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":                { "type": "keyword" },
      "name":              { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256, "normalizer": "lowercase_normalizer" }, "autocomplete": { "type": "text", "analyzer": "autocomplete_analyzer", "search_analyzer": "autocomplete_search" } } },
      "sku":               { "type": "keyword", "fields": { "lower": { "type": "keyword", "normalizer": "lowercase_normalizer" } } },
      "slug":              { "type": "keyword" },
      "description":       { "type": "text" },
      "short_description": { "type": "text" },
      "price":             { "type": "long" },
      "compare_price":     { "type": "long" },
      "quantity":          { "type": "integer" },
      "category_id":       { "type": "keyword" },
      "category_name":     { "type": "text", "fields": { "keyword": { "type": "keyword" } } },
      "brand_id":          { "type": "keyword" },
      "brand_name":        { "type": "text", "fields": { "keyword": { "type": "keyword" } } },
      "is_active":         { "type": "boolean" },
      "is_featured":       { "type": "boolean" },
      "rating":            { "type": "float" },
      "view_count":        { "type": "long" },
      "sales_count":       { "type": "long" },
      "image_url":         { "type": "keyword", "index": false },
      "created_at":        { "type": "date" },
      "updated_at":        { "type": "date" }
    }
  }
}`
}
