package orch

import (
	"fmt"

	"github.com/dkeye/shoproom/internal/core"
	"github.com/dkeye/shoproom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join moves the connection into roomID, creating the room if needed.
// A connection belongs to at most one room: it leaves its current one first.
func (o *Orchestrator) Join(id core.ConnectionID, roomID domain.RoomID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, ok := o.Registry.Session(id)
	if !ok {
		return fmt.Errorf("%w: connection %s", domain.ErrNotFound, id)
	}
	if current, ok := o.Registry.RoomOf(id); ok {
		if current == roomID {
			return nil
		}
		o.removeMember(id, current)
		log.Info().Str("module", "orch").Str("conn", string(id)).Str("from_room", string(current)).Msg("left previous room")
	}

	room := o.Rooms.GetOrCreate(roomID)
	room.AddMember(id, sess)
	o.Registry.SetRoom(id, roomID)
	o.Metrics.SetRooms(o.Rooms.Count())
	o.broadcast(room, core.Event{Type: core.EventJoined, RoomID: roomID, ConnectionID: id})
	log.Info().Str("module", "orch").Str("conn", string(id)).Str("room", string(roomID)).Msg("joined room")
	return nil
}

// Leave is idempotent: leaving a room one is not in does nothing.
func (o *Orchestrator) Leave(id core.ConnectionID, roomID domain.RoomID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removeMember(id, roomID)
}

// removeMember must be called with o.mu held.
func (o *Orchestrator) removeMember(id core.ConnectionID, roomID domain.RoomID) {
	room, ok := o.Rooms.Get(roomID)
	if !ok || !room.RemoveMember(id) {
		return
	}
	o.Registry.ClearRoom(id)
	if room.MemberCount() == 0 {
		o.Rooms.StopRoom(roomID)
		o.Metrics.SetRooms(o.Rooms.Count())
		log.Info().Str("module", "orch").Str("room", string(roomID)).Msg("room closed")
		return
	}
	o.broadcast(room, core.Event{Type: core.EventLeft, RoomID: roomID, ConnectionID: id})
}

// BindOffer attaches an offer to an active room, replacing any previous one.
func (o *Orchestrator) BindOffer(roomID domain.RoomID, offer *domain.Offer) error {
	if err := offer.Validate(); err != nil {
		return err
	}
	if offer.RoomID != roomID {
		return fmt.Errorf("%w: offer bound to %s, not %s", domain.ErrValidation, offer.RoomID, roomID)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return fmt.Errorf("%w: room %s", domain.ErrNotFound, roomID)
	}
	room.SetOffer(offer)
	log.Info().Str("module", "orch").Str("room", string(roomID)).Str("offer", offer.ID).
		Str("pct", offer.DiscountPercent.String()).Msg("offer bound")
	return nil
}

func (o *Orchestrator) ClearOffer(roomID domain.RoomID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return fmt.Errorf("%w: room %s", domain.ErrNotFound, roomID)
	}
	room.SetOffer(nil)
	return nil
}

// OfferFor resolves the room id currently belongs to, who owns the
// connection and the room's offer. ok is false when the connection is in no
// active room.
func (o *Orchestrator) OfferFor(id core.ConnectionID) (core.Membership, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sess, ok := o.Registry.Session(id)
	if !ok {
		return core.Membership{}, false
	}
	roomID, ok := o.Registry.RoomOf(id)
	if !ok {
		return core.Membership{}, false
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok || !room.HasMember(id) {
		return core.Membership{}, false
	}
	return core.Membership{RoomID: roomID, Owner: sess.Meta().Owner, Offer: room.Offer()}, true
}
