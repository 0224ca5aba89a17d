package logx

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type requestIDContextKey struct{}

const ginRequestIDKey = "request_id"

// NewRequestID mints an id for work that did not start from an HTTP request,
// such as a scheduled sync.
func NewRequestID() string {
	return uuid.NewString()
}

// NormalizeRequestID keeps a caller supplied uuid v4 and replaces anything else.
func NormalizeRequestID(value string) string {
	if parsed, err := uuid.Parse(value); err == nil && parsed.Version() == 4 {
		return value
	}
	return NewRequestID()
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

func RequestIDFromGin(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if requestID := c.GetString(ginRequestIDKey); requestID != "" {
		return requestID
	}
	return RequestIDFromContext(c.Request.Context())
}

// Detach returns base carrying the request id of ctx. Work that outlives the
// request, like a background full sync, keeps its correlation id but follows
// base's cancellation.
func Detach(base, ctx context.Context) context.Context {
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		return WithRequestID(base, requestID)
	}
	return base
}

// With tags logger with the request id carried by ctx, if any.
func With(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		return logger.With("request_id", requestID)
	}
	return logger
}

// FromContext returns the default logger tagged with component and the
// request id carried by ctx.
func FromContext(ctx context.Context, component string) *slog.Logger {
	return With(ctx, slog.Default().With("component", component))
}
