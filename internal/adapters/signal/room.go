package signal

import (
	"encoding/json"

	"github.com/dkeye/shoproom/internal/core"
	"github.com/dkeye/shoproom/internal/domain"
	"github.com/rs/zerolog/log"
)

type roomPayload struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

func (ctl *SignalWSController) parseRoom(c *WsSignalConn, data []byte) (domain.RoomID, bool) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad room payload")
		ctl.sendError(c, "bad_payload", "malformed json")
		return "", false
	}
	roomID, err := domain.ParseRoomID(p.RoomID)
	if err != nil {
		ctl.sendErr(c, err)
		return "", false
	}
	return roomID, true
}

// handleJoin answers with the room state after the joined event has been
// fanned out, so the joiner sees itself in both.
func (ctl *SignalWSController) handleJoin(c *WsSignalConn, data []byte) {
	roomID, ok := ctl.parseRoom(c, data)
	if !ok {
		return
	}
	if !ctl.Limiter.Allow(c.id) {
		ctl.sendError(c, "rate_limited", "too many joins")
		return
	}

	log.Info().Str("module", "signal").Str("conn", string(c.id)).Str("room_id", string(roomID)).Msg("join")
	if err := ctl.Orch.Join(c.id, roomID); err != nil {
		ctl.sendErr(c, err)
		return
	}
	ctl.sendRoomState(c, roomID)
}

func (ctl *SignalWSController) sendRoomState(c *WsSignalConn, roomID domain.RoomID) {
	room, ok := ctl.Orch.Rooms.Get(roomID)
	if !ok {
		return
	}
	resp := struct {
		Type    string           `json:"type"`
		RoomID  domain.RoomID    `json:"roomId"`
		Members []core.MemberDTO `json:"members"`
		Count   int              `json:"count"`
		OfferID string           `json:"offerId,omitempty"`
	}{
		Type:    "room_state",
		RoomID:  roomID,
		Members: room.MembersSnapshot(),
		Count:   room.MemberCount(),
	}
	if o := room.Offer(); o != nil {
		resp.OfferID = o.ID
	}
	ctl.sendJSON(c, resp)
}

// handleLeave drops room membership; the connection itself stays open.
func (ctl *SignalWSController) handleLeave(c *WsSignalConn, data []byte) {
	roomID, ok := ctl.parseRoom(c, data)
	if !ok {
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(c.id)).Str("room_id", string(roomID)).Msg("leave")
	ctl.Orch.Leave(c.id, roomID)
	ctl.sendJSON(c, core.Event{Type: core.EventLeft, RoomID: roomID, ConnectionID: c.id})
}
