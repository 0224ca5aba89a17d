package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fslongjin/billsync/pkg/model"
)

type BillQuerier interface {
	List(ctx context.Context, opts model.BillListOptions) (*model.BillListResponse, error)
	Count(ctx context.Context) (*model.BillCountResponse, error)
	Products(ctx context.Context) (*model.ProductListResponse, error)
	Stats(ctx context.Context, period string) (*model.BillStats, error)
}

type BillHandler struct {
	svc BillQuerier
}

func NewBillHandler(svc BillQuerier) *BillHandler {
	return &BillHandler{svc: svc}
}

func (h *BillHandler) RegisterRoutes(r *gin.RouterGroup) {
	bills := r.Group("/bills")
	{
		bills.GET("", h.List)
		bills.GET("/count", h.Count)
		bills.GET("/products", h.Products)
		bills.GET("/stats", h.Stats)
	}
}

// List handles GET /bills?page=&pageSize=&startDate=&endDate=&productName=
func (h *BillHandler) List(c *gin.Context) {
	opts := model.BillListOptions{
		StartDate:   c.Query("startDate"),
		EndDate:     c.Query("endDate"),
		ProductName: c.Query("productName"),
	}
	for _, d := range []string{opts.StartDate, opts.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			respondError(c, http.StatusBadRequest, CodeInvalidRequest, "dates must be formatted as YYYY-MM-DD")
			return
		}
	}
	opts.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	opts.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	resp, err := h.svc.List(c.Request.Context(), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BillHandler) Count(c *gin.Context) {
	resp, err := h.svc.Count(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BillHandler) Products(c *gin.Context) {
	resp, err := h.svc.Products(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Stats handles GET /bills/stats?period=5h|1d|1m
func (h *BillHandler) Stats(c *gin.Context) {
	resp, err := h.svc.Stats(c.Request.Context(), c.DefaultQuery("period", "1d"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
