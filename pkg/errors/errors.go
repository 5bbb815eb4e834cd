package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors tag every AppError with one of a closed set of kinds.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrAlreadyExists    = errors.New("resource already exists")
	ErrConflict         = errors.New("conflict")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrUploadFailed     = errors.New("upload failed")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrServiceUnavail   = errors.New("service unavailable")
	ErrInternal         = errors.New("internal error")
)

// Kind names the failure category of an error.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindValidation       Kind = "validation_failed"
	KindUnauthorized     Kind = "unauthorized"
	KindForbidden        Kind = "forbidden"
	KindUploadFailed     Kind = "upload_failed"
	KindPayloadTooLarge  Kind = "payload_too_large"
	KindUnsupportedMedia Kind = "unsupported_media_type"
	KindUnavailable      Kind = "service_unavailable"
	KindInternal         Kind = "internal"
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error for a uniqueness violation on a field.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// UploadFailed creates a 502 error for a blob store failure. The cause is
// kept for logging and never shown to the client.
func UploadFailed(err error) *AppError {
	return &AppError{
		Code:    "UPLOAD_FAILED",
		Message: "failed to upload file",
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%w: %w", ErrUploadFailed, err),
	}
}

// PayloadTooLarge creates a 413 error.
func PayloadTooLarge(message string) *AppError {
	return &AppError{
		Code:    "PAYLOAD_TOO_LARGE",
		Message: message,
		Status:  http.StatusRequestEntityTooLarge,
		Err:     ErrPayloadTooLarge,
	}
}

// UnsupportedMediaType creates a 415 error.
func UnsupportedMediaType(message string) *AppError {
	return &AppError{
		Code:    "UNSUPPORTED_MEDIA_TYPE",
		Message: message,
		Status:  http.StatusUnsupportedMediaType,
		Err:     ErrUnsupportedMedia,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     fmt.Errorf("%w: %w", ErrInternal, err),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// KindOf classifies err into one of the known kinds. Errors that carry no
// sentinel are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrUploadFailed):
		return KindUploadFailed
	case errors.Is(err, ErrPayloadTooLarge):
		return KindPayloadTooLarge
	case errors.Is(err, ErrUnsupportedMedia):
		return KindUnsupportedMedia
	case errors.Is(err, ErrServiceUnavail):
		return KindUnavailable
	default:
		return KindInternal
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}

	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUploadFailed:
		return http.StatusBadGateway
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
