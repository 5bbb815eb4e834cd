package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
	"github.com/timiFoxtrot/main-product-store/pkg/logger"
	"github.com/timiFoxtrot/main-product-store/pkg/validator"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *ErrorResponse {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestWriteData_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, map[string]string{"id": "p-1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":"p-1"}}`, rec.Body.String())
}

func TestWriteError_AppError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/p-1", nil)
	req = req.WithContext(logger.WithRequestID(req.Context(), "req-42"))
	rec := httptest.NewRecorder()

	WriteError(rec, req, fmt.Errorf("get owned: %w", apperrors.NotFound("product", "p-1")), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, "req-42", body.RequestID)
}

func TestWriteError_Forbidden(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/", nil)
	rec := httptest.NewRecorder()

	WriteError(rec, req, apperrors.Forbidden("you cannot review your own product"), nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "you cannot review your own product", decodeError(t, rec).Message)
}

func TestWriteError_ValidationError(t *testing.T) {
	type body struct {
		Rating int `json:"rating" validate:"min=1"`
	}
	verr := validator.Validate(body{Rating: 0})
	require.Error(t, verr)

	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodPost, "/", nil), verr, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_FAILED", resp.Code)
	assert.Contains(t, resp.Fields, "rating")
}

func TestWriteError_DecodeError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	var dst struct{}
	err := validator.DecodeAndValidate(req, &dst)

	rec := httptest.NewRecorder()
	WriteError(rec, req, err, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", decodeError(t, rec).Code)
}

func TestWriteError_BareSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("x: %w", apperrors.ErrConflict), nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decodeError(t, rec).Code)
}

func TestWriteError_InternalIsLoggedAndHidden(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/all", nil)

	WriteError(rec, req, fmt.Errorf("connection refused"), l)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.NotContains(t, body.Message, "connection refused")
	assert.Contains(t, buf.String(), "connection refused")
}

func TestWriteError_PrefersContextLogger(t *testing.T) {
	var ctxBuf, fallbackBuf bytes.Buffer
	ctxLogger := slog.New(slog.NewJSONHandler(&ctxBuf, nil))
	fallback := slog.New(slog.NewJSONHandler(&fallbackBuf, nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.NewContext(context.Background(), ctxLogger))

	WriteError(httptest.NewRecorder(), req, apperrors.UploadFailed(fmt.Errorf("cdn down")), fallback)

	assert.Contains(t, ctxBuf.String(), "cdn down")
	assert.Empty(t, fallbackBuf.String())
}
