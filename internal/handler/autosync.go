package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fslongjin/billsync/pkg/model"
)

type AutoSyncManager interface {
	GetConfig(ctx context.Context) (*model.AutoSyncConfig, error)
	SaveConfig(ctx context.Context, enabled bool, frequencySeconds int) (*model.AutoSyncConfig, error)
	TriggerNow(ctx context.Context) error
	Status(ctx context.Context) (*model.AutoSyncStatus, error)
}

type AutoSyncHandler struct {
	svc AutoSyncManager
}

func NewAutoSyncHandler(svc AutoSyncManager) *AutoSyncHandler {
	return &AutoSyncHandler{svc: svc}
}

func (h *AutoSyncHandler) RegisterRoutes(r *gin.RouterGroup) {
	autoSync := r.Group("/auto-sync")
	{
		autoSync.GET("/config", h.GetConfig)
		autoSync.POST("/config", h.SaveConfig)
		autoSync.POST("/trigger", h.Trigger)
		autoSync.GET("/status", h.Status)
	}
}

func (h *AutoSyncHandler) GetConfig(c *gin.Context) {
	cfg, err := h.svc.GetConfig(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *AutoSyncHandler) SaveConfig(c *gin.Context) {
	var req model.SaveAutoSyncConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	cfg, err := h.svc.SaveConfig(c.Request.Context(), req.Enabled, req.FrequencySeconds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// Trigger makes the enabled schedule due on the next scheduler tick.
func (h *AutoSyncHandler) Trigger(c *gin.Context) {
	if err := h.svc.TriggerNow(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "auto sync triggered"})
}

func (h *AutoSyncHandler) Status(c *gin.Context) {
	status, err := h.svc.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
