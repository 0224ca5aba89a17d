package billapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Sentinel kinds. Every error returned by the client wraps exactly one of
// ErrRetryableTransport or ErrFatalTransport.
var (
	ErrRetryableTransport = errors.New("retryable transport error")
	ErrFatalTransport     = errors.New("fatal transport error")

	// ErrAPIStatus means the body decoded but carried a non-200 code.
	ErrAPIStatus = errors.New("remote api returned failure code")
	// ErrMalformedBody means the body was not the expected envelope.
	ErrMalformedBody = errors.New("malformed response body")
	// ErrUnauthorized means the remote rejected the credential.
	ErrUnauthorized = errors.New("remote api rejected credential")
)

// Error describes a failed remote call.
type Error struct {
	Kind       error
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("billapi: %s (http %d): %s", e.Kind, e.StatusCode, msg)
	case e.Code != 0:
		return fmt.Sprintf("billapi: %s (code %d): %s", e.Kind, e.Code, msg)
	default:
		return fmt.Sprintf("billapi: %s: %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryableTransport)
}

func retryable(statusCode int, msg string, err error) *Error {
	return &Error{Kind: ErrRetryableTransport, StatusCode: statusCode, Message: msg, Err: err}
}

func fatal(statusCode int, msg string, err error) *Error {
	return &Error{Kind: ErrFatalTransport, StatusCode: statusCode, Message: msg, Err: err}
}

// classifyStatus maps a non-2xx HTTP status to an error kind.
func classifyStatus(statusCode int, body string) *Error {
	switch {
	case statusCode >= 500:
		return retryable(statusCode, body, nil)
	case statusCode == 401 || statusCode == 403:
		return fatal(statusCode, body, ErrUnauthorized)
	default:
		return fatal(statusCode, body, nil)
	}
}

// classifyTransportError decides whether a failed round trip may be retried.
// Cancellation of the caller's context is never retried.
func classifyTransportError(parent context.Context, err error) *Error {
	if parent.Err() != nil {
		return fatal(0, "request cancelled", err)
	}
	if isRetryableNetError(err) {
		return retryable(0, "", err)
	}
	return fatal(0, "", err)
}

func isRetryableNetError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	switch {
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return true
	}
	return false
}
