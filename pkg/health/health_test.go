package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestLivenessHandler(t *testing.T) {
	h := NewHandler(time.Second)
	rec := httptest.NewRecorder()
	h.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Equal(t, "server is up and running", resp.Message)
}

func TestReadinessHandler_AllUp(t *testing.T) {
	h := NewHandler(time.Second)
	h.Register("postgres", func(context.Context) error { return nil })
	h.Register("redis", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	h.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestReadinessHandler_OneDown(t *testing.T) {
	h := NewHandler(time.Second)
	h.Register("postgres", func(context.Context) error { return nil })
	h.Register("kafka", func(context.Context) error { return errors.New("no brokers") })

	rec := httptest.NewRecorder()
	h.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, StatusDown, resp.Status)
	assert.Equal(t, StatusDown, resp.Checks["kafka"].Status)
	assert.Equal(t, "no brokers", resp.Checks["kafka"].Error)
	assert.Equal(t, StatusUp, resp.Checks["postgres"].Status)
}

func TestCheck_TimeoutReachesCheckers(t *testing.T) {
	h := NewHandler(10 * time.Millisecond)
	h.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	resp := h.Check(context.Background())
	assert.Equal(t, StatusDown, resp.Status)
	assert.Contains(t, resp.Checks["slow"].Error, "deadline")
}

func TestNames_Sorted(t *testing.T) {
	h := NewHandler(0)
	h.Register("redis", nil)
	h.Register("mongo", nil)
	h.Register("postgres", nil)
	assert.Equal(t, []string{"mongo", "postgres", "redis"}, h.Names())
}
