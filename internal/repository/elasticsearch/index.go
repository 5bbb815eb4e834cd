package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	"github.com/timiFoxtrot/main-product-store/pkg/database"
	"github.com/timiFoxtrot/main-product-store/pkg/pagination"
)

const dbSystem = "elasticsearch"

// Index is the product search index.
type Index struct {
	client *elasticsearch.Client
	name   string
	logger *slog.Logger
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source domain.Product `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID    string `json:"_id"`
			Error struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// NewIndex creates a client for the cluster at url. An empty name selects
// DefaultIndexName.
func NewIndex(url, name string, logger *slog.Logger) (*Index, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{url}})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}
	if name == "" {
		name = DefaultIndexName
	}
	return &Index{client: client, name: name, logger: logger}, nil
}

// Ping checks whether the cluster is reachable.
func (x *Index) Ping(ctx context.Context) error {
	res, err := x.client.Ping(x.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// EnsureIndex creates the index when it is missing and reports whether it
// did.
func (x *Index) EnsureIndex(ctx context.Context) (bool, error) {
	res, err := x.client.Indices.Exists([]string{x.name}, x.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("check index exists: %w", err)
	}
	_ = res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return false, nil
	}

	res, err = x.client.Indices.Create(
		x.name,
		x.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		x.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if err := responseError("create index", res); err != nil {
		return false, err
	}

	x.logger.Info("elasticsearch index created", slog.String("index", x.name))
	return true, nil
}

// Put indexes p under its id, replacing any earlier version.
func (x *Index) Put(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, dbSystem, "products.index", "index")
	defer func() { end(err) }()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal product: %w", err)
	}
	res, err := x.client.Index(
		x.name,
		bytes.NewReader(data),
		x.client.Index.WithDocumentID(p.ID),
		x.client.Index.WithRefresh("wait_for"),
		x.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	return responseError("elasticsearch index", res)
}

// Delete removes a product. A missing document is not an error.
func (x *Index) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceQuery(ctx, dbSystem, "products.unindex", "delete")
	defer func() { end(err) }()

	res, err := x.client.Delete(
		x.name,
		id,
		x.client.Delete.WithRefresh("wait_for"),
		x.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	return responseError("elasticsearch delete", res)
}

// BulkPut indexes products with one bulk request.
func (x *Index) BulkPut(ctx context.Context, products []domain.Product) (err error) {
	if len(products) == 0 {
		return nil
	}
	ctx, end := database.TraceQuery(ctx, dbSystem, "products.bulk_index", "bulk")
	defer func() { end(err) }()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range products {
		action := map[string]any{"index": map[string]any{"_index": x.name, "_id": products[i].ID}}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk: encode action: %w", err)
		}
		if err := enc.Encode(&products[i]); err != nil {
			return fmt.Errorf("elasticsearch bulk: encode product: %w", err)
		}
	}

	res, err := x.client.Bulk(
		&buf,
		x.client.Bulk.WithIndex(x.name),
		x.client.Bulk.WithRefresh("wait_for"),
		x.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if err := responseError("elasticsearch bulk", res); err != nil {
		return err
	}

	var body bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("elasticsearch bulk: decode response: %w", err)
	}
	if body.Errors {
		var failed []string
		for _, item := range body.Items {
			if item.Index.Error.Type != "" {
				failed = append(failed, fmt.Sprintf("%s: %s", item.Index.ID, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("elasticsearch bulk: %d documents failed: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}

// Search returns one window of products matching filter and the number of
// matches.
func (x *Index) Search(ctx context.Context, filter repository.ProductFilter, window pagination.Params) (_ []domain.Product, _ int, err error) {
	ctx, end := database.TraceQuery(ctx, dbSystem, "products.search", "search")
	defer func() { end(err) }()

	data, err := json.Marshal(buildSearchQuery(filter, window))
	if err != nil {
		return nil, 0, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}
	res, err := x.client.Search(
		x.client.Search.WithIndex(x.name),
		x.client.Search.WithBody(bytes.NewReader(data)),
		x.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if err := responseError("elasticsearch search", res); err != nil {
		return nil, 0, err
	}

	var body searchResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}
	products := make([]domain.Product, 0, len(body.Hits.Hits))
	for _, hit := range body.Hits.Hits {
		p := hit.Source
		p.Normalize()
		products = append(products, p)
	}
	return products, body.Hits.Total.Value, nil
}

func responseError(op string, res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	body, _ := io.ReadAll(res.Body)
	var e errorResponse
	if json.Unmarshal(body, &e) == nil && e.Error.Type != "" {
		return fmt.Errorf("%s: %s: %s", op, e.Error.Type, e.Error.Reason)
	}
	return fmt.Errorf("%s: unexpected status %s", op, res.Status())
}
