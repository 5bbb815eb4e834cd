package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Checker probes one dependency.
type Checker func(ctx context.Context) error

// Status is the health of one component or of the whole service.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Response is the JSON body of the health endpoints.
type Response struct {
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one checker.
type CheckResult struct {
	Status  Status `json:"status"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

// Handler serves liveness and readiness endpoints.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
	now      func() time.Time
}

// NewHandler creates a Handler whose readiness probes share timeout.
func NewHandler(timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{
		checkers: make(map[string]Checker),
		timeout:  timeout,
		now:      time.Now,
	}
}

// Register adds or replaces a named checker.
func (h *Handler) Register(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// Names returns the registered checker names in sorted order.
func (h *Handler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.checkers))
	for n := range h.checkers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LivenessHandler always answers 200 while the process is serving.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, Response{
			Status:    StatusUp,
			Message:   "server is up and running",
			Timestamp: h.now().UTC(),
		})
	}
}

// ReadinessHandler runs every checker concurrently and answers 503 if any
// of them fails.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r.Context())
		status := http.StatusOK
		if resp.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		write(w, status, resp)
	}
}

// Check runs all checkers and aggregates their results.
func (h *Handler) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mu.RLock()
	checkers := make(map[string]Checker, len(h.checkers))
	for k, v := range h.checkers {
		checkers[k] = v
	}
	h.mu.RUnlock()

	var (
		mu      sync.Mutex
		g       errgroup.Group
		results = make(map[string]CheckResult, len(checkers))
		overall = StatusUp
	)
	for name, check := range checkers {
		g.Go(func() error {
			start := time.Now()
			err := check(ctx)
			res := CheckResult{Status: StatusUp, Latency: time.Since(start).String()}
			if err != nil {
				res.Status, res.Error = StatusDown, err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			results[name] = res
			if err != nil {
				overall = StatusDown
			}
			return nil
		})
	}
	_ = g.Wait()

	return Response{Status: overall, Timestamp: h.now().UTC(), Checks: results}
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
