package http

import (
	"errors"
	"fmt"
	stdhttp "net/http"

	"github.com/dkeye/shoproom/internal/app/refund"
	"github.com/dkeye/shoproom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type refundHandlers struct {
	refunds *refund.Service
	orders  OrderLedger
}

func (h refundHandlers) create(c *gin.Context) {
	var req refund.CreateRefund
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.refunds.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(stdhttp.StatusCreated, r)
}

func (h refundHandlers) get(c *gin.Context) {
	r, err := h.refunds.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(stdhttp.StatusOK, r)
}

func (h refundHandlers) process(c *gin.Context) {
	var req refund.ProcessRefund
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.refunds.Process(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(stdhttp.StatusOK, r)
}

func (h refundHandlers) listByOrder(c *gin.Context) {
	list, err := h.refunds.ListByOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(stdhttp.StatusOK, gin.H{"refunds": list})
}

func (h refundHandlers) putOrder(c *gin.Context) {
	var req struct {
		Total decimal.Decimal `json:"total"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Total.IsNegative() {
		badRequest(c, errors.New("total must not be negative"))
		return
	}
	if err := h.orders.PutOrder(c.Request.Context(), c.Param("id"), req.Total); err != nil {
		writeError(c, fmt.Errorf("%w: put order: %w", domain.ErrPersistence, err))
		return
	}
	c.Status(stdhttp.StatusNoContent)
}
