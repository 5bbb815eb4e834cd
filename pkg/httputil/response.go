package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
	"github.com/timiFoxtrot/main-product-store/pkg/logger"
	"github.com/timiFoxtrot/main-product-store/pkg/validator"
)

// Response is the JSON envelope for every API response.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps data in the success envelope.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Response{Data: data})
}

// WriteError is the single place where failures become transport statuses.
// Validation and decode errors produce 400 with field details, AppErrors use
// their own code and status, and anything else is a logged 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.RequestIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code:      "VALIDATION_FAILED",
			Message:   "request validation failed",
			Fields:    valErr.Fields(),
			RequestID: requestID,
		}})
		return
	}

	var decErr *validator.DecodeError
	if errors.As(err, &decErr) {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code:      "VALIDATION_FAILED",
			Message:   decErr.Error(),
			RequestID: requestID,
		}})
		return
	}

	status := apperrors.HTTPStatus(err)
	body := &ErrorResponse{RequestID: requestID}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Code, body.Message = appErr.Code, appErr.Message
	} else {
		body.Code, body.Message = defaultCode(apperrors.KindOf(err))
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("kind", string(apperrors.KindOf(err))),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: body})
}

func defaultCode(kind apperrors.Kind) (string, string) {
	switch kind {
	case apperrors.KindNotFound:
		return "NOT_FOUND", "resource not found"
	case apperrors.KindConflict:
		return "CONFLICT", "resource already exists"
	case apperrors.KindValidation:
		return "VALIDATION_FAILED", "invalid input"
	case apperrors.KindUnauthorized:
		return "UNAUTHORIZED", "unauthorized"
	case apperrors.KindForbidden:
		return "FORBIDDEN", "forbidden"
	case apperrors.KindUploadFailed:
		return "UPLOAD_FAILED", "failed to upload file"
	case apperrors.KindPayloadTooLarge:
		return "PAYLOAD_TOO_LARGE", "payload too large"
	case apperrors.KindUnsupportedMedia:
		return "UNSUPPORTED_MEDIA_TYPE", "unsupported media type"
	case apperrors.KindUnavailable:
		return "SERVICE_UNAVAILABLE", "service unavailable"
	default:
		return "INTERNAL_ERROR", "an internal error occurred"
	}
}
