//go:build e2e

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// These tests drive a running server started with ADMIN_EMAIL and
// ADMIN_PASSWORD set. Run them with
//
//	E2E_BASE_URL=http://localhost:3000 go test -tags e2e ./cmd/server/...

var client = &http.Client{Timeout: 10 * time.Second}

func baseURL() string {
	if v := os.Getenv("E2E_BASE_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://localhost:3000"
}

// uniqueEmail generates a unique email address to avoid test collisions.
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d-%d@e2e.example.com", prefix, time.Now().UnixNano(), rand.IntN(100000))
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s %d", prefix, time.Now().UnixNano())
}

// skipIfNotRunning skips the test when the server is unreachable.
func skipIfNotRunning(t *testing.T) {
	t.Helper()
	resp, err := client.Get(baseURL() + "/health/live")
	if err != nil {
		t.Skipf("server at %s not reachable: %v", baseURL(), err)
	}
	_ = resp.Body.Close()
}

// adminToken logs in with ADMIN_EMAIL and ADMIN_PASSWORD, skipping the test
// when they are not set.
func adminToken(t *testing.T) string {
	t.Helper()
	email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		t.Skip("ADMIN_EMAIL and ADMIN_PASSWORD are required")
	}
	status, body := doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, body)
	return extractString(t, body, "data.token")
}

// registerAndLogin creates a fresh account and returns its id and token.
func registerAndLogin(t *testing.T, name string) (string, string) {
	t.Helper()
	email := uniqueEmail(strings.ToLower(name))
	status, body := doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "e2e-password",
	})
	require.Equal(t, http.StatusCreated, status, body)
	id := extractString(t, body, "data.id")

	status, body = doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "e2e-password",
	})
	require.Equal(t, http.StatusOK, status, body)
	return id, extractString(t, body, "data.token")
}

// doJSON sends body as JSON and returns the status and decoded body.
func doJSON(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, baseURL()+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return send(t, req, token)
}

// uploadImages sends files as the "files" multipart field.
func uploadImages(t *testing.T, path, token string, files map[string][]byte) (int, map[string]any) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for name, data := range files {
		fw, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPatch, baseURL()+path, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return send(t, req, token)
}

func send(t *testing.T, req *http.Request, token string) (int, map[string]any) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	require.NoError(t, err, "%s %s", req.Method, req.URL)
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

// decodeBody decodes a JSON object, or returns {"raw": body} for anything else.
func decodeBody(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	if len(raw) == 0 {
		return map[string]any{}
	}
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	return result
}

// extractField walks a dot-separated path, e.g. "data.owner_info.name".
func extractField(data map[string]any, path string) any {
	var current any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		if current, ok = m[part]; !ok {
			return nil
		}
	}
	return current
}

func extractString(t *testing.T, data map[string]any, path string) string {
	t.Helper()
	s, ok := extractField(data, path).(string)
	require.True(t, ok, "expected string at %q in %v", path, data)
	return s
}
