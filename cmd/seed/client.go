package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/timiFoxtrot/main-product-store/pkg/httpclient"
)

// apiClient calls the product store API with an optional bearer token.
type apiClient struct {
	http    *httpclient.Client
	baseURL string
	token   string
}

func (c *apiClient) withToken(token string) *apiClient {
	cp := *c
	cp.token = token
	return &cp
}

// do sends body as JSON and decodes the "data" member of the answer into out.
// Non-2xx answers are returned as *httpclient.StatusError.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var buf []byte
	if body != nil {
		var err error
		if buf, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, method+" "+path)
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		return nil
	}
	envelope := struct {
		Data any `json:"data"`
	}{Data: out}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func isStatus(err error, code int) bool {
	var se *httpclient.StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

type user struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// login returns a token for email.
func (c *apiClient) login(ctx context.Context, email, password string) (string, error) {
	var res struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &res)
	if err != nil {
		return "", fmt.Errorf("login %s: %w", email, err)
	}
	return res.Token, nil
}

// ensureUser registers the account unless it already exists, then logs in.
func (c *apiClient) ensureUser(ctx context.Context, name, email, password string) (string, error) {
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, nil)
	if err != nil && !isStatus(err, http.StatusConflict) {
		return "", fmt.Errorf("register %s: %w", email, err)
	}
	return c.login(ctx, email, password)
}

// ensureCategories creates the named categories and returns name -> id. Names
// that already exist are resolved from the category list.
func (c *apiClient) ensureCategories(ctx context.Context, defs []categoryDef) (map[string]string, error) {
	var existing []category
	if err := c.do(ctx, http.MethodGet, "/api/v1/categories", nil, &existing); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	ids := make(map[string]string, len(defs))
	for _, cat := range existing {
		ids[cat.Name] = cat.ID
	}

	for _, def := range defs {
		if _, ok := ids[def.name]; ok {
			continue
		}
		var created category
		err := c.do(ctx, http.MethodPost, "/api/v1/categories", map[string]string{
			"name":        def.name,
			"description": def.description,
		}, &created)
		if err != nil {
			return nil, fmt.Errorf("create category %q: %w", def.name, err)
		}
		ids[def.name] = created.ID
	}
	return ids, nil
}

func (c *apiClient) createProduct(ctx context.Context, def productDef, categoryID string) (*product, error) {
	var p product
	err := c.do(ctx, http.MethodPost, "/api/v1/products", map[string]any{
		"name":        def.name,
		"description": def.description,
		"price":       def.price,
		"category":    categoryID,
		"images":      def.images,
	}, &p)
	if err != nil {
		return nil, fmt.Errorf("create product %q: %w", def.name, err)
	}
	return &p, nil
}

func (c *apiClient) review(ctx context.Context, productID string, rating int, comment string) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/products/"+productID+"/reviews", map[string]any{
		"rating":  rating,
		"comment": comment,
	}, nil)
}
