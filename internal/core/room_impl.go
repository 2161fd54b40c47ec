package core

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/shoproom/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room  *domain.Room
	mu    sync.RWMutex
	byID  map[ConnectionID]MemberSession
	offer *domain.Offer
}

func NewRoomService(id domain.RoomID, now time.Time) RoomService {
	return &roomImpl{
		room: &domain.Room{ID: id, CreatedAt: now},
		byID: make(map[ConnectionID]MemberSession),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *roomImpl) HasMember(id ConnectionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

func (r *roomImpl) AddMember(id ConnectionID, ms MemberSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id] = ms
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("conn", string(id)).Msg("member added")
}

func (r *roomImpl) RemoveMember(id ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("conn", string(id)).Msg("member removed")
	return true
}

func (r *roomImpl) Broadcast(ev Event) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for id, m := range r.byID {
		if err := m.Signal().TrySend(ev); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).Str("event", string(ev.Type)).
		Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.byID))
	for id, ms := range r.byID {
		out = append(out, MemberDTO{ConnectionID: id, Owner: ms.Meta().Owner})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out
}

func (r *roomImpl) Offer() *domain.Offer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.offer
}

func (r *roomImpl) SetOffer(o *domain.Offer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offer = o
}
