package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/fslongjin/billsync/internal/lifecycle"
	"github.com/fslongjin/billsync/internal/logx"
	"github.com/fslongjin/billsync/pkg/model"
)

const wsWriteTimeout = 5 * time.Second

type SyncRunner interface {
	StartFull(ctx context.Context, period string) error
	RunIncremental(ctx context.Context, period string) (*model.SyncResult, error)
	Progress() model.ProgressSnapshot
	Subscribe() (<-chan model.SyncProgress, func())
}

type HistoryLister interface {
	List(ctx context.Context, opts model.SyncRunListOptions) (*model.SyncRunListResponse, error)
}

// SyncHandler exposes synchronization runs, their progress and their audit log.
type SyncHandler struct {
	sync       SyncRunner
	history    HistoryLister
	drainState *lifecycle.Drainer
	// baseCtx bounds background runs and progress streams to the server lifetime.
	baseCtx context.Context
}

func NewSyncHandler(baseCtx context.Context, sync SyncRunner, history HistoryLister, drainState *lifecycle.Drainer) *SyncHandler {
	return &SyncHandler{sync: sync, history: history, drainState: drainState, baseCtx: baseCtx}
}

func (h *SyncHandler) RegisterRoutes(r *gin.RouterGroup) {
	bills := r.Group("/bills")
	{
		bills.POST("/sync", h.Sync)
		bills.GET("/sync-status", h.Status)
		bills.GET("/sync-status/stream", h.Stream)
		bills.GET("/sync-history", h.History)
	}
}

// Sync handles POST /bills/sync. A full sync runs in the background and is
// acknowledged with 202; an incremental sync runs inline.
func (h *SyncHandler) Sync(c *gin.Context) {
	var req model.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	// Runs are not cancelled when the caller goes away.
	ctx := logx.Detach(h.baseCtx, c.Request.Context())
	switch req.Type {
	case model.SyncTypeFull:
		if err := h.sync.StartFull(ctx, req.BillingMonth); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, model.SyncAccepted{
			Accepted:     true,
			BillingMonth: req.BillingMonth,
			Message:      "full sync started",
		})
	case model.SyncTypeIncremental, "":
		result, err := h.sync.RunIncremental(ctx, req.BillingMonth)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	default:
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "type must be full or incremental")
	}
}

func (h *SyncHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.Progress())
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is handled by middleware
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Stream pushes progress updates over a websocket until the client leaves or
// the server shuts down.
func (h *SyncHandler) Stream(c *gin.Context) {
	if h.drainState != nil && h.drainState.Draining() {
		respondError(c, http.StatusServiceUnavailable, CodeDraining, "service is draining")
		return
	}

	ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logx.FromContext(c.Request.Context(), "sync_stream").Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	release := func() {}
	if h.drainState != nil {
		release = h.drainState.TrackStream(logx.RequestIDFromGin(c))
	}
	defer release()

	updates, unsubscribe := h.sync.Subscribe()
	defer unsubscribe()

	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			return
		case <-h.baseCtx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteTimeout))
			return
		case p, ok := <-updates:
			if !ok {
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := ws.WriteJSON(p); err != nil {
				return
			}
		}
	}
}

// History handles GET /bills/sync-history?type=&page=&pageSize=.
func (h *SyncHandler) History(c *gin.Context) {
	opts := model.SyncRunListOptions{Type: model.SyncType(c.Query("type"))}
	switch opts.Type {
	case "", model.SyncTypeFull, model.SyncTypeIncremental:
	default:
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "type must be full or incremental")
		return
	}
	opts.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	opts.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	resp, err := h.history.List(c.Request.Context(), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
