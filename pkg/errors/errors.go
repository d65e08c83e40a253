package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
)

// Storefront sentinels. Each one names a failure the cart or checkout flow
// can recover from or surface to the shopper.
var (
	ErrStorageQuotaExceeded  = errors.New("storage quota exceeded")
	ErrMissingAssetReference = errors.New("missing asset reference")
	ErrPaymentRejected       = errors.New("payment rejected")
	ErrPaymentCaptureFailed  = errors.New("payment capture failed")
	ErrInvalidCheckoutEntry  = errors.New("invalid checkout entry")
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

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
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

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     ErrServiceUnavail,
	}
}

// StorageQuotaExceeded creates a 507 error for a rejected storage write.
func StorageQuotaExceeded(key string, size, limit int64) *AppError {
	return &AppError{
		Code:    "STORAGE_QUOTA_EXCEEDED",
		Message: fmt.Sprintf("writing %q (%d bytes) exceeds the storage limit of %d bytes", key, size, limit),
		Status:  http.StatusInsufficientStorage,
		Err:     ErrStorageQuotaExceeded,
	}
}

// MissingAssetReference creates an error for a back-reference whose payload
// could not be found in storage.
func MissingAssetReference(identity string) *AppError {
	return &AppError{
		Code:    "MISSING_ASSET_REFERENCE",
		Message: fmt.Sprintf("custom design for entry %s is missing", identity),
		Status:  http.StatusInternalServerError,
		Err:     ErrMissingAssetReference,
	}
}

// PaymentRejected creates a 402 error for a payment the provider declined.
func PaymentRejected(message string) *AppError {
	return &AppError{
		Code:    "PAYMENT_REJECTED",
		Message: message,
		Status:  http.StatusPaymentRequired,
		Err:     ErrPaymentRejected,
	}
}

// PaymentCaptureFailed creates a 402 error for an approved payment whose
// capture step failed.
func PaymentCaptureFailed(message string) *AppError {
	return &AppError{
		Code:    "PAYMENT_CAPTURE_FAILED",
		Message: message,
		Status:  http.StatusPaymentRequired,
		Err:     ErrPaymentCaptureFailed,
	}
}

// InvalidCheckoutEntry creates a 422 error for a checkout that cannot start.
func InvalidCheckoutEntry(message string) *AppError {
	return &AppError{
		Code:    "INVALID_CHECKOUT_ENTRY",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrInvalidCheckoutEntry,
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrStorageQuotaExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, ErrPaymentRejected), errors.Is(err, ErrPaymentCaptureFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrInvalidCheckoutEntry):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
