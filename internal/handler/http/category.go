package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timiFoxtrot/main-product-store/internal/service"
	"github.com/timiFoxtrot/main-product-store/pkg/httputil"
	"github.com/timiFoxtrot/main-product-store/pkg/validator"
)

// CategoryHandler handles HTTP requests for category endpoints.
type CategoryHandler struct {
	service CategoryService
	logger  *slog.Logger
}

// NewCategoryHandler creates a new category HTTP handler.
func NewCategoryHandler(svc CategoryService, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{service: svc, logger: logger}
}

type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// CreateCategory handles POST /api/v1/categories
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	c, err := h.service.CreateCategory(r.Context(), service.CreateCategoryInput{
		Name:        cleanText(req.Name),
		Description: cleanText(req.Description),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, c)
}

// ListCategories handles GET /api/v1/categories
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cats)
}

// GetCategory handles GET /api/v1/categories/{id}
func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, c)
}

// UpdateCategory handles PATCH /api/v1/categories/{id}
func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req UpdateCategoryRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	c, err := h.service.UpdateCategory(r.Context(), chi.URLParam(r, "id"), service.UpdateCategoryInput{
		Name:        cleanTextPtr(req.Name),
		Description: cleanTextPtr(req.Description),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, c)
}

// DeleteCategory handles DELETE /api/v1/categories/{id}
func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
