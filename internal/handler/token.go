package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fslongjin/billsync/pkg/model"
)

type TokenManager interface {
	Verify(ctx context.Context, token string) (*model.VerifyTokenResponse, error)
	Save(ctx context.Context, token string) (*model.VerifyTokenResponse, error)
	Info(ctx context.Context) (*model.TokenInfo, error)
	Delete(ctx context.Context) (bool, error)
}

// TokenHandler manages the remote API credential. The plaintext token is
// never returned.
type TokenHandler struct {
	svc TokenManager
}

func NewTokenHandler(svc TokenManager) *TokenHandler {
	return &TokenHandler{svc: svc}
}

func (h *TokenHandler) RegisterRoutes(r *gin.RouterGroup) {
	token := r.Group("/token")
	{
		token.POST("/verify", h.Verify)
		token.POST("", h.Save)
		token.GET("", h.Get)
		token.DELETE("", h.Delete)
	}
}

func (h *TokenHandler) Verify(c *gin.Context) {
	var req model.VerifyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "token is required")
		return
	}
	resp, err := h.svc.Verify(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Save verifies the token against the remote API and stores it when accepted.
func (h *TokenHandler) Save(c *gin.Context) {
	var req model.SaveTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "token is required")
		return
	}
	resp, err := h.svc.Save(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	if !resp.Valid {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "token rejected by remote api: "+resp.Message)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TokenHandler) Get(c *gin.Context) {
	info, err := h.svc.Info(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if info == nil {
		respondError(c, http.StatusNotFound, CodeTokenNotConfigured, "api token not configured")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *TokenHandler) Delete(c *gin.Context) {
	deleted, err := h.svc.Delete(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if !deleted {
		respondError(c, http.StatusNotFound, CodeTokenNotConfigured, "api token not configured")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "api token deleted"})
}
