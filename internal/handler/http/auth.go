package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/timiFoxtrot/main-product-store/internal/service"
	"github.com/timiFoxtrot/main-product-store/pkg/httputil"
	"github.com/timiFoxtrot/main-product-store/pkg/validator"
)

// AuthHandler handles registration, login and the admin user list.
type AuthHandler struct {
	service UserService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// RegisterRequest is the JSON body for POST /auth/register. Roles cannot be
// requested; new accounts are always plain users.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.service.Register(r.Context(), service.RegisterInput{
		Name:     cleanText(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, user)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, res)
}

// ListUsers handles GET /api/v1/auth/users
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, users)
}
