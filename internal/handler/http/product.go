package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/timiFoxtrot/main-product-store/internal/repository"
	"github.com/timiFoxtrot/main-product-store/internal/service"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
	"github.com/timiFoxtrot/main-product-store/pkg/httputil"
	"github.com/timiFoxtrot/main-product-store/pkg/pagination"
	"github.com/timiFoxtrot/main-product-store/pkg/validator"
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service ProductService
	upload  service.UploadConfig
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc ProductService, upload service.UploadConfig, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: svc, upload: upload, logger: logger}
}

// --- Request DTOs ---

// CreateProductRequest is the JSON request body for creating a product.
type CreateProductRequest struct {
	Name        string   `json:"name" validate:"required,notblank,max=200"`
	Description string   `json:"description" validate:"required,notblank,max=5000"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Category    string   `json:"category" validate:"required,notblank"`
	Images      []string `json:"images" validate:"omitempty,max=20,dive,url"`
}

// UpdateProductRequest is the JSON request body for a partial update.
type UpdateProductRequest struct {
	Name        *string  `json:"name" validate:"omitempty,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Category    *string  `json:"category"`
	Images      []string `json:"images" validate:"omitempty,max=20,dive,url"`
}

// AddReviewRequest is the JSON request body for reviewing a product.
type AddReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// --- Handlers ---

// CreateProduct handles POST /api/v1/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req CreateProductRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), service.CreateProductInput{
		Name:        cleanText(req.Name),
		Description: cleanText(req.Description),
		Price:       *req.Price,
		CategoryID:  strings.TrimSpace(req.Category),
		Images:      req.Images,
	}, caller)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, product)
}

// ListProducts handles GET /api/v1/products/all
//
// Query: page, limit, search, category, minPrice, maxPrice.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := pagination.FromRequest(r)
	filter := repository.ProductFilter{Page: params.Page, Limit: params.Limit}

	if v := strings.TrimSpace(q.Get("search")); v != "" {
		filter.Search = &v
	}
	if v := strings.TrimSpace(q.Get("category")); v != "" {
		filter.CategoryID = &v
	}

	var err error
	if filter.MinPrice, err = parsePrice(q.Get("minPrice"), "minPrice"); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if filter.MaxPrice, err = parsePrice(q.Get("maxPrice"), "maxPrice"); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		httputil.WriteError(w, r, apperrors.InvalidInput("minPrice must not exceed maxPrice"), h.logger)
		return
	}

	result, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

func parsePrice(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, apperrors.InvalidInput(name + " must be a non-negative number")
	}
	return &v, nil
}

// ListOwnProducts handles GET /api/v1/products/user-products
func (h *ProductHandler) ListOwnProducts(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	params := pagination.FromRequest(r)
	result, err := h.service.ListOwnedProducts(r.Context(), caller, params.Page, params.Limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.GetOwnedProduct(r.Context(), chi.URLParam(r, "id"), caller)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// UpdateProduct handles PATCH /api/v1/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req UpdateProductRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.UpdateOwnedProduct(r.Context(), chi.URLParam(r, "id"), service.UpdateProductInput{
		Name:        cleanTextPtr(req.Name),
		Description: cleanTextPtr(req.Description),
		Price:       req.Price,
		CategoryID:  trimPtr(req.Category),
		Images:      req.Images,
	}, caller)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/v1/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.DeleteOwnedProduct(r.Context(), chi.URLParam(r, "id"), caller)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// AddReview handles PATCH /api/v1/products/{id}/reviews
func (h *ProductHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req AddReviewRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.AddReview(r.Context(), chi.URLParam(r, "id"), service.AddReviewInput{
		Rating:  req.Rating,
		Comment: cleanText(req.Comment),
	}, caller)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}
