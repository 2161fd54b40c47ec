package signal

import (
	"context"

	"github.com/dkeye/shoproom/internal/app/offer"
	"github.com/dkeye/shoproom/internal/core"
	"github.com/dkeye/shoproom/internal/domain"
)

func (ctl *SignalWSController) handleWhoAmI(sess core.MemberSession, c *WsSignalConn) {
	resp := struct {
		Type         string            `json:"type"`
		ConnectionID core.ConnectionID `json:"connectionId"`
		OwnerID      domain.OwnerID    `json:"ownerId"`
		RoomID       domain.RoomID     `json:"roomId,omitempty"`
	}{
		Type:         "whoami",
		ConnectionID: c.id,
		OwnerID:      sess.Meta().Owner,
	}
	if roomID, ok := ctl.Orch.Registry.RoomOf(c.id); ok {
		resp.RoomID = roomID
	}
	ctl.sendJSON(c, resp)
}

func (ctl *SignalWSController) handlePreview(ctx context.Context, sess core.MemberSession, c *WsSignalConn) {
	if ctl.Carts == nil || ctl.Prices == nil {
		ctl.sendError(c, "unavailable", "preview disabled")
		return
	}
	cart, err := ctl.Carts.Get(ctx, sess.Meta().Owner)
	if err != nil {
		ctl.sendErr(c, err)
		return
	}
	p, err := ctl.Prices.PreviewTotal(ctx, cart, c.id)
	if err != nil {
		ctl.sendErr(c, err)
		return
	}
	ctl.sendJSON(c, struct {
		Type    string        `json:"type"`
		Preview offer.Preview `json:"preview"`
	}{"preview", p})
}
