// Package lifecycle coordinates graceful shutdown of the API server.
package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// CodeDraining is the error code returned while the server shuts down.
const CodeDraining = "SERVICE_DRAINING"

var ErrDrainTimeout = errors.New("timeout waiting for progress streams to close")

// Drainer tracks whether the server is draining and which progress streams
// are still open, keyed by the request id that opened them.
type Drainer struct {
	draining atomic.Bool

	mu      sync.Mutex
	nextKey uint64
	streams map[uint64]string
	// idle is closed whenever no stream is open.
	idle chan struct{}
}

func NewDrainer() *Drainer {
	idle := make(chan struct{})
	close(idle)
	return &Drainer{streams: make(map[uint64]string), idle: idle}
}

// Begin switches to draining. It cannot be undone.
func (d *Drainer) Begin() {
	d.draining.Store(true)
}

func (d *Drainer) Draining() bool {
	return d.draining.Load()
}

// OpenStreams returns the request ids of streams that have not been released,
// sorted.
func (d *Drainer) OpenStreams() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.streams))
	for _, id := range d.streams {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TrackStream registers a stream opened by requestID. The returned release
// func is safe to call more than once.
func (d *Drainer) TrackStream(requestID string) func() {
	d.mu.Lock()
	if len(d.streams) == 0 {
		d.idle = make(chan struct{})
	}
	d.nextKey++
	key := d.nextKey
	d.streams[key] = requestID
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.streams, key)
			if len(d.streams) == 0 {
				close(d.idle)
			}
		})
	}
}

// WaitStreams blocks until every tracked stream is released or ctx is done.
func (d *Drainer) WaitStreams(ctx context.Context) error {
	d.mu.Lock()
	idle := d.idle
	d.mu.Unlock()

	select {
	case <-ctx.Done():
		return ErrDrainTimeout
	case <-idle:
		return nil
	}
}

// Middleware rejects requests with 503 once draining has begun. Paths in
// exempt, such as probes, are always served.
func (d *Drainer) Middleware(exempt ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Draining() && !slices.Contains(exempt, c.Request.URL.Path) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": gin.H{"code": CodeDraining, "message": "service is draining"},
			})
			return
		}
		c.Next()
	}
}
