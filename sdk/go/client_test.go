package billsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/v1/", WithAuthToken("op-key"))
}

func TestSyncStartFull(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bills/sync", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer op-key", r.Header.Get("Authorization"))
		var req SyncRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2025-03", req.BillingMonth)
		assert.Equal(t, SyncTypeFull, req.Type)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(SyncAccepted{Accepted: true, BillingMonth: req.BillingMonth})
	})
	c := newTestServer(t, mux)

	resp, err := c.Sync.StartFull(context.Background(), "2025-03")
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
}

func TestErrorResponseDecoding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bills/sync", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"SYNC_IN_PROGRESS","message":"a synchronization is already in progress"}}`))
	})
	mux.HandleFunc("GET /api/v1/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := newTestServer(t, mux)

	_, err := c.Sync.RunIncremental(context.Background(), "2025-03")
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Equal(t, "SYNC_IN_PROGRESS", ErrorCode(err))
	assert.Contains(t, err.Error(), "already in progress")

	_, err = c.Token.Get(context.Background())
	assert.True(t, IsNotFound(err))
	assert.Empty(t, ErrorCode(err))
}

func TestHistoryAndBillsQueryParams(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/bills/sync-history", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "incremental", r.URL.Query().Get("type"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		_ = json.NewEncoder(w).Encode(SyncRunListResponse{Total: 1, Items: []SyncRun{{ID: 9}}})
	})
	mux.HandleFunc("GET /api/v1/bills", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-03-01", r.URL.Query().Get("startDate"))
		assert.Equal(t, "GLM-4", r.URL.Query().Get("productName"))
		_ = json.NewEncoder(w).Encode(BillListResponse{Total: 0, Items: []Bill{}})
	})
	mux.HandleFunc("GET /api/v1/bills/count", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":42}`))
	})
	c := newTestServer(t, mux)
	ctx := context.Background()

	runs, err := c.Sync.History(ctx, &SyncRunListOptions{Type: SyncTypeIncremental, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(9), runs.Items[0].ID)

	_, err = c.Bills.List(ctx, &BillListOptions{StartDate: "2025-03-01", ProductName: "GLM-4"})
	require.NoError(t, err)

	n, err := c.Bills.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestWatchStreamsProgress(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/bills/sync-status/stream", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer op-key", r.Header.Get("Authorization"))
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteJSON(SyncProgress{Stage: "fetching", Percentage: 10})
		_ = ws.WriteJSON(SyncProgress{Stage: SyncStageCompleted, Percentage: 100})
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})
	c := newTestServer(t, mux)

	var got []SyncProgress
	err := c.Sync.Watch(context.Background(), func(p SyncProgress) bool {
		got = append(got, p)
		return p.Stage != SyncStageCompleted
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 100, got[1].Percentage)
}

func TestNewClientFallsBackToDefault(t *testing.T) {
	c := NewClient("")
	u := c.endpoint("bills", nil)
	assert.True(t, strings.HasPrefix(u.String(), defaultBaseURL))
}

func TestGetRetriesWhileDraining(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/auto-sync/status", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":"SERVICE_DRAINING","message":"service is draining"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(AutoSyncStatus{Running: true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL+"/api/v1", WithRetry(3, time.Millisecond))

	status, err := c.AutoSync.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auto-sync/trigger", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL+"/api/v1", WithRetry(5, time.Millisecond))

	err := c.AutoSync.Trigger(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, err.(*APIError).StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}
