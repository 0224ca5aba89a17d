package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fslongjin/billsync/pkg/model"
)

func newServer(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL + "/api/v1"
}

// execute runs the command tree against url. Flags keep their values across
// calls, so every test passes the ones it depends on.
func execute(t *testing.T, url, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"-s", url, "-o", "table"}, args...))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"code": code, "message": msg}})
}

func TestSyncIncrementalPrintsResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bills/sync", func(w http.ResponseWriter, r *http.Request) {
		var req model.SyncRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, model.SyncTypeIncremental, req.Type)
		assert.Equal(t, "2025-03", req.BillingMonth)
		writeJSON(w, http.StatusOK, model.SyncResult{
			Type: model.SyncTypeIncremental, Synced: 3, Skipped: 2, Total: 5, Pages: 1,
			Message: "synced 3 new records",
		})
	})

	out, err := execute(t, newServer(t, mux), "", "sync", "incremental", "--month", "2025-03")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"TYPE", "SYNCED", "FAILED", "SKIPPED", "TOTAL", "PAGES", "DURATION", "MS", "MESSAGE"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"incremental", "3", "0", "2", "5", "1", "0", "synced", "3", "new", "records"}, strings.Fields(lines[1]))
}

func TestSyncIncrementalSurfacesServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bills/sync", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusBadRequest, "PREREQUISITE_MISSING", "run a full sync first")
	})

	_, err := execute(t, newServer(t, mux), "", "sync", "incremental", "--month", "2025-03")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PREREQUISITE_MISSING: run a full sync first")
}

func TestSyncFullWaitFollowsProgress(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var finished atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bills/sync", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, model.SyncAccepted{Accepted: true, BillingMonth: "2025-03", Message: "full sync started"})
	})
	mux.HandleFunc("GET /api/v1/bills/sync-status/stream", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteJSON(model.SyncProgress{Stage: model.SyncStageIdle})
		_ = ws.WriteJSON(model.SyncProgress{Stage: model.SyncStageFetching, Current: 5, Total: 10, Percentage: 25})
		_ = ws.WriteJSON(model.SyncProgress{Stage: model.SyncStageCompleted, Current: 10, Total: 10, Percentage: 100})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("GET /api/v1/bills/sync-status", func(w http.ResponseWriter, r *http.Request) {
		// Still syncing on the first check, released afterwards.
		done := finished.Swap(true)
		snap := model.ProgressSnapshot{Syncing: !done}
		if done {
			snap.LastResult = &model.SyncResult{Type: model.SyncTypeFull, Synced: 10, Total: 10, Message: "synced 10 records"}
		}
		writeJSON(w, http.StatusOK, snap)
	})

	out, err := execute(t, newServer(t, mux), "", "sync", "full", "--month", "2025-03", "--wait")
	require.NoError(t, err)
	assert.Contains(t, out, "fetching 5/10 (25%)")
	assert.Contains(t, out, "completed 10/10 (100%)")
	assert.Contains(t, out, "synced 10 records")
	assert.NotContains(t, out, "idle")
}

func TestSyncHistoryJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/bills/sync-history", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "full", r.URL.Query().Get("type"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, model.SyncRunListResponse{
			Items: []model.SyncRun{{ID: 7, SyncType: model.SyncTypeFull, BillingMonth: "2025-03", Status: model.SyncStatusSuccess}},
			Total: 21, Page: 2, PageSize: 20,
		})
	})

	out, err := execute(t, newServer(t, mux), "", "sync", "history", "--type", "full", "--page", "2", "-o", "json")
	require.NoError(t, err)

	var resp model.SyncRunListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(7), resp.Items[0].ID)
	assert.Equal(t, 21, resp.Total)
}

func TestScheduleTriggerDisabled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auto-sync/trigger", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusConflict, "SCHEDULE_DISABLED", "auto sync is disabled")
	})

	_, err := execute(t, newServer(t, mux), "", "schedule", "trigger")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule is disabled")
}

func TestScheduleSetSendsConfig(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auto-sync/config", func(w http.ResponseWriter, r *http.Request) {
		var req model.SaveAutoSyncConfigRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Enabled)
		assert.Equal(t, 60, req.FrequencySeconds)
		writeJSON(w, http.StatusOK, model.AutoSyncConfig{ID: 1, Enabled: true, FrequencySeconds: 60})
	})

	out, err := execute(t, newServer(t, mux), "", "schedule", "set", "--enabled", "--frequency", "60")
	require.NoError(t, err)
	assert.Equal(t, []string{"ENABLED", "FREQUENCY", "NEXT", "LAST", "true", "60"}, strings.Fields(out))
}

func TestTokenSetReadsStdin(t *testing.T) {
	var got string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var req model.SaveTokenRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = req.Token
		assert.Equal(t, "Bearer admin-key", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, model.VerifyTokenResponse{Valid: true, Message: "token saved"})
	})

	out, err := execute(t, newServer(t, mux), "  sk-secret \n", "token", "set", "--api-key", "admin-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", got)
	assert.Contains(t, out, "Token saved")
}

func TestTokenSetRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/token", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "token rejected by remote")
	})

	_, err := execute(t, newServer(t, mux), "", "token", "set", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token rejected")
}

func TestTokenShowWithoutToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/token", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusNotFound, "TOKEN_NOT_CONFIGURED", "no token configured")
	})

	out, err := execute(t, newServer(t, mux), "", "token", "show")
	require.NoError(t, err)
	assert.Equal(t, "No token configured\n", out)
}

func TestBillsStatsTable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/bills/stats", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5h", r.URL.Query().Get("period"))
		writeJSON(w, http.StatusOK, model.BillStats{
			Period: "5h", CallCount: 2, TotalTokens: 1500, APIUsageCount: 2,
			ResourceStats: []model.ResourceStat{{TokenResourceName: "pack-a", TotalUsage: 1500, CallCount: 2}},
		})
	})

	out, err := execute(t, newServer(t, mux), "", "bills", "stats", "--period", "5h")
	require.NoError(t, err)
	assert.Contains(t, out, "pack-a")
	assert.Contains(t, out, "1500")
}

func TestBillsCountAndProducts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/bills/count", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.BillCountResponse{Count: 42})
	})
	mux.HandleFunc("GET /api/v1/bills/products", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.ProductListResponse{Items: []string{"GLM-4", "GLM-4V"}})
	})
	url := newServer(t, mux)

	out, err := execute(t, url, "", "bills", "count")
	require.NoError(t, err)
	assert.Equal(t, []string{"COUNT", "42"}, strings.Fields(out))

	out, err = execute(t, url, "", "bills", "products")
	require.NoError(t, err)
	assert.Equal(t, []string{"PRODUCT", "GLM-4", "GLM-4V"}, strings.Fields(out))
}
