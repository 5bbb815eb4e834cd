package elasticsearch

import (
	"strings"

	"github.com/timiFoxtrot/main-product-store/internal/repository"
	"github.com/timiFoxtrot/main-product-store/pkg/pagination"
)

// DefaultIndexName is the index used when none is configured.
const DefaultIndexName = "products"

// maxResultWindow is the Elasticsearch default for from+size. Deeper pages
// are served by the primary store.
const maxResultWindow = 10000

// indexMapping stores products as their JSON form. Name and description use
// the wildcard type so substring matches behave like ILIKE '%term%'. Images,
// reviews and timestamps other than created_at are kept in _source only.
const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "dynamic": false,
    "properties": {
      "id":          { "type": "keyword" },
      "name":        { "type": "wildcard" },
      "description": { "type": "wildcard" },
      "price":       { "type": "double" },
      "category":    { "type": "keyword" },
      "owner":       { "type": "keyword" },
      "created_at":  { "type": "date_nanos" }
    }
  }
}`

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

// containsWildcard turns a literal term into a wildcard pattern that matches
// any value containing it.
func containsWildcard(term string) string {
	return "*" + wildcardEscaper.Replace(term) + "*"
}

// buildSearchQuery translates a filter and window into the query DSL. Every
// criterion is a filter clause, so hits match all of them and are ordered
// by creation time then id.
func buildSearchQuery(filter repository.ProductFilter, window pagination.Params) map[string]any {
	filters := []any{}

	if filter.Search != nil && *filter.Search != "" {
		pattern := containsWildcard(*filter.Search)
		filters = append(filters, map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{"wildcard": map[string]any{"name": map[string]any{"value": pattern, "case_insensitive": true}}},
					map[string]any{"wildcard": map[string]any{"description": map[string]any{"value": pattern, "case_insensitive": true}}},
				},
				"minimum_should_match": 1,
			},
		})
	}
	if filter.CategoryID != nil {
		filters = append(filters, map[string]any{"term": map[string]any{"category": *filter.CategoryID}})
	}
	if filter.OwnerID != nil {
		filters = append(filters, map[string]any{"term": map[string]any{"owner": *filter.OwnerID}})
	}
	if filter.MinPrice != nil || filter.MaxPrice != nil {
		price := map[string]any{}
		if filter.MinPrice != nil {
			price["gte"] = *filter.MinPrice
		}
		if filter.MaxPrice != nil {
			price["lte"] = *filter.MaxPrice
		}
		filters = append(filters, map[string]any{"range": map[string]any{"price": price}})
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"filter": filters},
		},
		"sort": []any{
			map[string]any{"created_at": "asc"},
			map[string]any{"id": "asc"},
		},
		"from":             window.Offset(),
		"size":             window.Limit,
		"track_total_hits": true,
	}
}
