package logx

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func isV4(s string) bool {
	parsed, err := uuid.Parse(s)
	return err == nil && parsed.Version() == 4
}

func TestNormalizeRequestID(t *testing.T) {
	valid := "d4f9cbf0-5b95-4efe-a542-24f55108db4f"
	if got := NormalizeRequestID(valid); got != valid {
		t.Fatalf("expected valid v4 request id to be preserved, got %q", got)
	}

	got := NormalizeRequestID("not-a-uuid")
	if got == "not-a-uuid" {
		t.Fatalf("expected invalid request id to be replaced")
	}
	if !isV4(got) {
		t.Fatalf("expected generated request id to be uuid v4, got %q", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())

	var fromCtx string
	r.GET("/ping", func(c *gin.Context) {
		fromCtx = RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	validReqID := "5cd6f88f-fc2d-4d55-a621-d95bdb730394"
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", validReqID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != validReqID {
		t.Fatalf("expected response request id %q, got %q", validReqID, got)
	}
	if fromCtx != validReqID {
		t.Fatalf("expected request context to carry %q, got %q", validReqID, fromCtx)
	}

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "invalid")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); !isV4(got) || got != fromCtx {
		t.Fatalf("expected minted uuid v4 in header and context, got %q and %q", got, fromCtx)
	}
}

func TestDetachKeepsRequestIDNotCancellation(t *testing.T) {
	reqCtx, cancel := context.WithCancel(WithRequestID(context.Background(), "req-1"))
	base := context.Background()

	detached := Detach(base, reqCtx)
	cancel()

	if detached.Err() != nil {
		t.Fatalf("detached context must not follow the request's cancellation")
	}
	if got := RequestIDFromContext(detached); got != "req-1" {
		t.Fatalf("expected request id to carry over, got %q", got)
	}
	if Detach(base, context.Background()) != base {
		t.Fatalf("expected base unchanged when there is no request id")
	}
}

func TestWithTagsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	With(WithRequestID(context.Background(), "req-2"), logger).Info("hello")
	With(context.Background(), logger).Info("bare")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "request_id=req-2") {
		t.Fatalf("expected request id attribute, got %q", lines[0])
	}
	if strings.Contains(lines[1], "request_id") {
		t.Fatalf("expected no request id attribute, got %q", lines[1])
	}
}
