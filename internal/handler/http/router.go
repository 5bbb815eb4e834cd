package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/service"
	"github.com/timiFoxtrot/main-product-store/pkg/health"
	"github.com/timiFoxtrot/main-product-store/pkg/httputil"
	"github.com/timiFoxtrot/main-product-store/pkg/middleware"
)

// RouterConfig carries everything NewRouter wires together. Metrics,
// MetricsHandler and RateLimiter are optional.
type RouterConfig struct {
	Products      ProductService
	Categories    CategoryService
	Users         UserService
	Authenticator middleware.Authenticator
	Health        *health.Handler
	Logger        *slog.Logger

	Metrics        *middleware.HTTPMetrics
	MetricsHandler http.Handler
	RateLimiter    *middleware.RateLimiter
	CORS           middleware.CORSConfig
	Upload         service.UploadConfig

	// LoginRequests logins are allowed per LoginWindow and client IP.
	LoginRequests int
	LoginWindow   time.Duration
}

// NewRouter creates a chi router with all routes registered under /api/v1.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	logger := cfg.Logger

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Handler)
	}
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Handler)
	}

	r.Get("/health", cfg.Health.ReadinessHandler())
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	authHandler := NewAuthHandler(cfg.Users, logger)
	categoryHandler := NewCategoryHandler(cfg.Categories, logger)
	productHandler := NewProductHandler(cfg.Products, cfg.Upload, logger)

	authenticate := middleware.Authenticate(cfg.Authenticator)
	adminOnly := middleware.RequireRole(domain.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.With(loginLimiter(cfg.LoginRequests, cfg.LoginWindow)).Post("/login", authHandler.Login)
			r.With(authenticate, adminOnly).Get("/users", authHandler.ListUsers)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/", categoryHandler.ListCategories)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Post("/", categoryHandler.CreateCategory)
				r.Get("/{id}", categoryHandler.GetCategory)
				r.Patch("/{id}", categoryHandler.UpdateCategory)
				r.Delete("/{id}", categoryHandler.DeleteCategory)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", productHandler.CreateProduct)
			r.With(adminOnly).Get("/all", productHandler.ListProducts)
			r.Get("/user-products", productHandler.ListOwnProducts)
			r.Get("/{id}", productHandler.GetProduct)
			r.Patch("/{id}", productHandler.UpdateProduct)
			r.Delete("/{id}", productHandler.DeleteProduct)
			r.Patch("/{id}/images", productHandler.AttachImages)
			r.Patch("/{id}/reviews", productHandler.AddReview)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "NOT_FOUND", Message: "resource not found"},
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed"},
		})
	})

	return r
}

// loginLimiter throttles login attempts per client IP.
func loginLimiter(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		requests = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return middleware.ClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "RATE_LIMITED", Message: "too many login attempts, try again later"},
			})
		}),
	)
}
