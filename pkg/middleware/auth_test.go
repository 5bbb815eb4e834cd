package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timiFoxtrot/main-product-store/pkg/httputil"
	"github.com/timiFoxtrot/main-product-store/pkg/logger"
)

var staticAuth = AuthenticatorFunc(func(_ context.Context, token string) (*Identity, error) {
	switch token {
	case "admin-token":
		return &Identity{ID: "u-admin", Name: "Ada", Roles: []string{"user", "admin"}}, nil
	case "user-token":
		return &Identity{ID: "u-1", Name: "Bo", Roles: []string{"user"}}, nil
	}
	return nil, errors.New("token is malformed")
})

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestAuthenticate(t *testing.T) {
	var seen *Identity
	var seenCaller string
	h := Authenticate(staticAuth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		seenCaller = logger.CallerIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer user-token", http.StatusOK},
		{"case-insensitive scheme", "bearer user-token", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "u-1", seen.ID)
				assert.Equal(t, "u-1", seenCaller)
			} else {
				assert.Nil(t, seen)
				assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := Authenticate(staticAuth)(RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
}

func TestRequireRole_WithoutIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireRole("admin")(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentity_HasRole(t *testing.T) {
	var nilID *Identity
	assert.False(t, nilID.HasRole("admin"))
	assert.True(t, (&Identity{Roles: []string{"admin"}}).HasRole("admin"))
}
