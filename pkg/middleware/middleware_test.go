package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/timiFoxtrot/main-product-store/pkg/logger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestLogging_GeneratesAndEchoesRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	var ctxID string
	h := RequestLogging(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = logger.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/p-1", nil))

	require.NotEmpty(t, ctxID)
	assert.Equal(t, ctxID, rec.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), ctxID)
}

func TestRequestLogging_ReusesInboundID(t *testing.T) {
	h := RequestLogging(discardLogger())(http.NotFoundHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-abc", rec.Header().Get(RequestIDHeader))
}

func TestRequestLogger_StoresEnrichedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestLogging(discardLogger())(RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("inside")
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-xyz")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), `"request_id":"req-xyz"`)
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(slog.New(slog.NewJSONHandler(&buf, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map write")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
	assert.Contains(t, buf.String(), "nil map write")
}

func TestHTTPMetrics_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg, "product-store")
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/products/p-1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/products/p-2", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/products/{id}", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))

	observed, ok := m.duration.WithLabelValues("GET", "/products/{id}", "200").(prometheus.Metric)
	require.True(t, ok)
	var sample dto.Metric
	require.NoError(t, observed.Write(&sample))
	assert.Equal(t, uint64(2), sample.GetHistogram().GetSampleCount())

	_, err = NewHTTPMetrics(reg, "product-store")
	require.Error(t, err)
}

func TestTracing_RecordsRouteAndContinuesTrace(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	}()

	r := chi.NewRouter()
	r.Use(Tracing())
	r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	req := httptest.NewRequest(http.MethodGet, "/products/p-1", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /products/{id}", spans[0].Name)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext.TraceID().String())
	assert.Equal(t, "Error", spans[0].Status.Code.String())
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"https://shop.example"}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), RequestIDHeader)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS(DefaultCORSConfig())(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, time.Minute, discardLogger())
	defer rl.Close()
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2"))
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Minute, discardLogger())
	defer rl.Close()

	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.limiterFor("10.0.0.1")

	now = now.Add(2 * time.Minute)
	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.visitors)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage, 203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(req))

	req.Header.Set("X-Forwarded-For", strings.Repeat("x", 5))
	assert.Equal(t, "198.51.100.7", ClientIP(req))
}
