package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"
	"github.com/Noobiez16/SubliGraphic/pkg/logger"
	"github.com/Noobiez16/SubliGraphic/pkg/validator"
)

// Response is the body of every storefront API reply. Exactly one of Data
// and Error is set.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse describes a failed request. Fields is only set for
// validation failures.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) // status is already out
}

// sentinelReply is how a bare sentinel error is reported. An empty message
// echoes err.Error() to the caller.
type sentinelReply struct {
	target  error
	code    string
	message string
}

var sentinelReplies = []sentinelReply{
	{apperrors.ErrNotFound, "NOT_FOUND", "resource not found"},
	{apperrors.ErrInvalidInput, "INVALID_INPUT", ""},
	{apperrors.ErrConflict, "CONFLICT", ""},
	{apperrors.ErrStorageQuotaExceeded, "STORAGE_QUOTA_EXCEEDED", "storage quota exceeded"},
	{apperrors.ErrServiceUnavail, "SERVICE_UNAVAILABLE", "service unavailable"},
}

// WriteError reports err to the client. An AppError speaks for itself unless
// it is internal; sentinels go through sentinelReplies and anything else is
// a logged 500. The request logger is used when RequestLogging is mounted.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	ctx := r.Context()
	requestID := logger.CorrelationIDFromContext(ctx)

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Status != http.StatusInternalServerError {
		WriteJSON(w, appErr.Status, Response{
			Error: &ErrorResponse{Code: appErr.Code, Message: appErr.Message, RequestID: requestID},
		})
		return
	}

	for _, s := range sentinelReplies {
		if appErr != nil || !errors.Is(err, s.target) {
			continue
		}
		msg := s.message
		if msg == "" {
			msg = err.Error()
		}
		WriteJSON(w, apperrors.HTTPStatus(err), Response{
			Error: &ErrorResponse{Code: s.code, Message: msg, RequestID: requestID},
		})
		return
	}

	l := logger.FromContext(ctx)
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	l.ErrorContext(ctx, "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	WriteJSON(w, http.StatusInternalServerError, Response{
		Error: &ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred", RequestID: requestID},
	})
}

// WriteValidationError answers 400. Validator failures are reported per
// field; any other error becomes INVALID_INPUT.
func WriteValidationError(w http.ResponseWriter, err error) {
	body := &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()}
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		body = &ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		}
	}
	WriteJSON(w, http.StatusBadRequest, Response{Error: body})
}
