package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fslongjin/billsync/internal/billapi"
	"github.com/fslongjin/billsync/internal/lifecycle"
	"github.com/fslongjin/billsync/internal/service"
	"github.com/fslongjin/billsync/internal/store"
)

const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodePrerequisiteMissing = "PREREQUISITE_MISSING"
	CodeSyncInProgress      = "SYNC_IN_PROGRESS"
	CodeScheduleDisabled    = "SCHEDULE_DISABLED"
	CodeTokenNotConfigured  = "TOKEN_NOT_CONFIGURED"
	CodeRemoteError         = "REMOTE_ERROR"
	CodeDraining            = lifecycle.CodeDraining
	CodeInternal            = "INTERNAL_ERROR"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// writeError maps service and remote errors onto a status and error code.
// The message is passed through verbatim.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, service.ErrInvalidPeriod),
		errors.Is(err, service.ErrInvalidFrequency),
		errors.Is(err, service.ErrInvalidStatsPeriod):
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	case errors.Is(err, service.ErrPrerequisiteMissing):
		respondError(c, http.StatusBadRequest, CodePrerequisiteMissing, err.Error())
	case errors.Is(err, service.ErrConflict):
		respondError(c, http.StatusConflict, CodeSyncInProgress, err.Error())
	case errors.Is(err, service.ErrScheduleDisabled):
		respondError(c, http.StatusConflict, CodeScheduleDisabled, err.Error())
	case errors.Is(err, store.ErrNoToken):
		respondError(c, http.StatusBadRequest, CodeTokenNotConfigured, err.Error())
	case errors.Is(err, billapi.ErrRetryableTransport), errors.Is(err, billapi.ErrFatalTransport):
		respondError(c, http.StatusBadGateway, CodeRemoteError, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}
