package http

import (
	"errors"
	stdhttp "net/http"

	"github.com/dkeye/shoproom/internal/app/cart"
	"github.com/dkeye/shoproom/internal/app/offer"
	"github.com/dkeye/shoproom/internal/core"
	"github.com/dkeye/shoproom/internal/domain"
	"github.com/gin-gonic/gin"
)

type cartHandlers struct {
	carts  *cart.Service
	offers *offer.Engine
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

type syncRequest struct {
	Items []cart.Line `json:"items"`
}

func (h cartHandlers) get(c *gin.Context) {
	cur, err := h.carts.Get(c.Request.Context(), ownerOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(stdhttp.StatusOK, cur)
}

// writeResult answers a mutation. An unpersisted merge still carries the
// merged cart so the client can retry with it.
func writeResult(c *gin.Context, res cart.Result, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrPersistence) && res.Cart != nil {
			c.JSON(stdhttp.StatusServiceUnavailable, gin.H{"error": "persistence", "message": err.Error(), "result": res})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(stdhttp.StatusOK, res)
}

func (h cartHandlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	key := domain.ItemKey{ProductID: req.ProductID, VariantID: req.VariantID}
	res, err := h.carts.AddItem(c.Request.Context(), ownerOf(c), key, req.Quantity)
	writeResult(c, res, err)
}

// updateItem treats quantity 0 as removal.
func (h cartHandlers) updateItem(c *gin.Context) {
	key, err := domain.ParseItemKey(c.Param("key"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Quantity == nil {
		badRequest(c, errors.New("quantity is required"))
		return
	}
	var res cart.Result
	if *req.Quantity == 0 {
		res, err = h.carts.RemoveItem(c.Request.Context(), ownerOf(c), key)
	} else {
		res, err = h.carts.UpdateItem(c.Request.Context(), ownerOf(c), key, *req.Quantity)
	}
	writeResult(c, res, err)
}

func (h cartHandlers) removeItem(c *gin.Context) {
	key, err := domain.ParseItemKey(c.Param("key"))
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := h.carts.RemoveItem(c.Request.Context(), ownerOf(c), key)
	writeResult(c, res, err)
}

func (h cartHandlers) sync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.carts.Sync(c.Request.Context(), ownerOf(c), req.Items)
	writeResult(c, res, err)
}

func (h cartHandlers) clear(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), ownerOf(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(stdhttp.StatusNoContent)
}

// preview prices the cart as the given live connection would pay for it.
// Without connection_id no room offer applies.
func (h cartHandlers) preview(c *gin.Context) {
	cur, err := h.carts.Get(c.Request.Context(), ownerOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	p, err := h.offers.PreviewTotal(c.Request.Context(), cur, core.ConnectionID(c.Query("connection_id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(stdhttp.StatusOK, p)
}
