package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"
)

// downstreamError mirrors the {"error": {...}} half of the response envelope.
type downstreamError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes a non-2xx response body and
// translates it into an AppError when the status carries known semantics.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	message := string(body)
	var downstream downstreamError
	if json.Unmarshal(body, &downstream) == nil && downstream.Error != nil {
		message = downstream.Error.Message
	}
	qualified := fmt.Sprintf("%s: %s", serviceName, message)

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(qualified)
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.Unauthorized(qualified)
	case http.StatusPaymentRequired:
		return apperrors.PaymentRejected(qualified)
	case http.StatusNotFound:
		return apperrors.NotFound(serviceName, message)
	case http.StatusConflict:
		return apperrors.Conflict(qualified)
	case http.StatusServiceUnavailable, http.StatusTooManyRequests:
		return apperrors.ServiceUnavailable(qualified)
	default:
		return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, message)
	}
}
