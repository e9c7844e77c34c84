package wmsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	apperrors "github.com/wms-platform/scan-console/pkg/errors"
	"github.com/wms-platform/scan-console/pkg/resilience"
)

// HTTPError is a backend response with a 4xx or 5xx status
type HTTPError struct {
	Operation  string
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Detail)
}

// TransportError is a request that never produced a response
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is a 2xx response whose body could not be decoded
type DecodeError struct {
	Operation string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: failed to decode response: %v", e.Operation, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsBackendFailure reports whether err means the backend itself is unhealthy:
// no response at all, or a 5xx. Business rejections (4xx) are not failures.
func IsBackendFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsTransport reports whether err means no usable response was received
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr) ||
		errors.Is(err, resilience.ErrCircuitOpen) ||
		errors.Is(err, resilience.ErrTooManyRequests)
}

// newHTTPError extracts a readable message from an error body. The backend
// answers {"detail": "..."} or a validation list {"detail": [{"msg": ...}]}.
func newHTTPError(operation string, status int, body []byte) *HTTPError {
	return &HTTPError{Operation: operation, StatusCode: status, Detail: errorDetail(body)}
}

func errorDetail(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Detail) > 0 {
			var s string
			if json.Unmarshal(payload.Detail, &s) == nil && s != "" {
				return s
			}
			var list []struct {
				Msg string `json:"msg"`
			}
			if json.Unmarshal(payload.Detail, &list) == nil && len(list) > 0 && list[0].Msg != "" {
				return list[0].Msg
			}
		}
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}

	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	if text == "" {
		return "empty response"
	}
	return text
}

// toAppError maps a client error onto the platform error model
func toAppError(resource, operation string, err error) error {
	if err == nil {
		return nil
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 404:
			return apperrors.ErrNotFound(resource).Wrap(err)
		case httpErr.StatusCode == 409:
			return apperrors.ErrConflict(httpErr.Detail).Wrap(err)
		case httpErr.StatusCode >= 500:
			return apperrors.ErrServiceUnavailable("wms backend").
				WithDetail("status", strconv.Itoa(httpErr.StatusCode)).
				Wrap(err)
		default:
			return apperrors.ErrUnprocessable(httpErr.Detail).
				WithDetail("status", strconv.Itoa(httpErr.StatusCode)).
				Wrap(err)
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.ErrTimeout(operation).Wrap(err)
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return apperrors.ErrBadGateway("wms backend returned an unreadable response").Wrap(err)
	}

	return apperrors.ErrServiceUnavailable("wms backend").Wrap(err)
}
