package billsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = &APIError{StatusCode: 404, Message: "resource not found"}

	// ErrConflict is returned when a synchronization is already running or
	// the schedule is disabled.
	ErrConflict = &APIError{StatusCode: 409, Message: "conflict"}

	// ErrBadRequest is returned when the request is invalid.
	ErrBadRequest = &APIError{StatusCode: 400, Message: "invalid request"}

	// ErrInternal is returned when an internal server error occurs.
	ErrInternal = &APIError{StatusCode: 500, Message: "internal server error"}

	// ErrUnauthorized is returned when authentication fails.
	ErrUnauthorized = &APIError{StatusCode: 401, Message: "unauthorized"}

	// ErrBadGateway is returned when the remote billing API failed.
	ErrBadGateway = &APIError{StatusCode: 502, Message: "remote api error"}

	// ErrUnavailable is returned while the server drains for shutdown.
	ErrUnavailable = &APIError{StatusCode: 503, Message: "service unavailable"}
)

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

// Error returns the error message.
func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is checks if the error matches target.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func handleErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Err:        err,
		}
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       errResp.Error.Code,
			Message:    errResp.Error.Message,
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsBadRequest checks if an error is a bad request error.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrBadRequest)
}

// IsRemoteFailure reports whether the server could not reach the billing API
// or the API rejected the stored token.
func IsRemoteFailure(err error) bool {
	return errors.Is(err, ErrBadGateway)
}

// ErrorCode returns the server error code carried by err, if any.
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
