package http

import (
	stdhttp "net/http"
	"time"

	"github.com/dkeye/shoproom/internal/app/orch"
	"github.com/dkeye/shoproom/internal/core"
	"github.com/dkeye/shoproom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type roomHandlers struct {
	orch *orch.Orchestrator
}

type offerRequest struct {
	OfferID         string          `json:"offerId"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	ExpiresAt       *time.Time      `json:"expiresAt"`
}

func (h roomHandlers) list(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, gin.H{"rooms": h.orch.Rooms.List()})
}

func (h roomHandlers) get(c *gin.Context) {
	roomID, err := domain.ParseRoomID(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	room, ok := h.orch.Rooms.Get(roomID)
	if !ok {
		c.JSON(stdhttp.StatusNotFound, gin.H{"error": "not_found", "message": "room " + string(roomID)})
		return
	}
	c.JSON(stdhttp.StatusOK, struct {
		ID        domain.RoomID    `json:"id"`
		CreatedAt time.Time        `json:"createdAt"`
		Members   []core.MemberDTO `json:"members"`
		Offer     *domain.Offer    `json:"offer,omitempty"`
	}{
		ID:        roomID,
		CreatedAt: room.Room().CreatedAt,
		Members:   room.MembersSnapshot(),
		Offer:     room.Offer(),
	})
}

func (h roomHandlers) bindOffer(c *gin.Context) {
	roomID, err := domain.ParseRoomID(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req offerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	o := &domain.Offer{
		ID:              req.OfferID,
		RoomID:          roomID,
		DiscountPercent: req.DiscountPercent,
		ExpiresAt:       req.ExpiresAt,
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if err := h.orch.BindOffer(roomID, o); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(stdhttp.StatusOK, o)
}

func (h roomHandlers) clearOffer(c *gin.Context) {
	roomID, err := domain.ParseRoomID(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.orch.ClearOffer(roomID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(stdhttp.StatusNoContent)
}
