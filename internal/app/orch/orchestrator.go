// Package orch owns room lifecycle on top of the connection registry.
// Every membership mutation and its broadcast run under one lock, so events
// of a room reach members in the order the operations were applied.
package orch

import (
	"context"
	"sync"

	"github.com/dkeye/shoproom/internal/app"
	"github.com/dkeye/shoproom/internal/core"
	"github.com/dkeye/shoproom/internal/domain"
	"github.com/dkeye/shoproom/internal/metrics"
	"github.com/rs/zerolog/log"
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy
	Metrics  *metrics.Metrics

	mu sync.Mutex
}

func New(reg *app.Registry, rooms core.RoomManager, policy app.Policy, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{Registry: reg, Rooms: rooms, Policy: policy, Metrics: m}
}

// Connect registers a live connection. It is in no room until it joins one.
func (o *Orchestrator) Connect(id core.ConnectionID, sess core.MemberSession, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Registry.Register(id, sess, cancel)
	o.Metrics.SetConnections(o.Registry.Count())
}

// Disconnect leaves whatever room the connection was in and forgets it.
// Remaining members are notified before the caller closes the transport.
func (o *Orchestrator) Disconnect(id core.ConnectionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, roomID := range o.Registry.Unregister(id) {
		o.removeMember(id, roomID)
	}
	o.Metrics.SetConnections(o.Registry.Count())
	log.Info().Str("module", "orch").Str("conn", string(id)).Msg("disconnected")
}

func (o *Orchestrator) broadcast(room core.RoomService, ev core.Event) {
	res := room.Broadcast(ev)
	o.Metrics.BroadcastDropped(len(res.Dropped))
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("conn", string(slow)).Str("room", string(room.Room().ID)).Msg("kicking slow member")
			o.Registry.Cancel(slow)
		case app.NoAction:
		}
	}
}

// MembersOf returns the members of an active room.
func (o *Orchestrator) MembersOf(roomID domain.RoomID) ([]core.MemberDTO, bool) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return nil, false
	}
	return room.MembersSnapshot(), true
}
