package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig configures a breaker around one upstream.
type CircuitBreakerConfig struct {
	// Name labels metrics and logs.
	Name string
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval clears counts while closed. Zero never clears.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultCircuitBreakerConfig returns defaults for an upstream named name.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// ErrCircuitOpen is returned while the breaker rejects requests.
var ErrCircuitOpen = gobreaker.ErrOpenState

var (
	breakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
	}, []string{"name"})

	breakerRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_rejected_total",
		Help: "Requests rejected because the breaker was open.",
	}, []string{"name"})
)

// RegisterMetrics registers the breaker collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{breakerState, breakerRejected} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// CircuitBreakerClient guards a Client with a gobreaker breaker. 5xx
// responses count as failures; 4xx responses do not.
type CircuitBreakerClient struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	name    string
}

// NewCircuitBreakerClient wraps client.
func NewCircuitBreakerClient(client *Client, cfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateValue(to))
		},
	}
	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &CircuitBreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		name:    cfg.Name,
	}
}

// Do sends req through the breaker.
func (c *CircuitBreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			return nil, &StatusError{Upstream: c.name, StatusCode: resp.StatusCode, Message: string(body)}
		}
		return resp, nil
	})
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		breakerRejected.WithLabelValues(c.name).Inc()
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	return resp, err
}

// Post sends a POST request through the breaker.
func (c *CircuitBreakerClient) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create POST request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(ctx, req)
}

// State returns the current breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
