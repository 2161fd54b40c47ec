package core

import (
	"github.com/dkeye/shoproom/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []ConnectionID
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ConnectionID ConnectionID   `json:"connectionId"`
	Owner        domain.OwnerID `json:"owner"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set and the bound offer but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	HasMember(id ConnectionID) bool

	AddMember(id ConnectionID, ms MemberSession)
	RemoveMember(id ConnectionID) bool
	Broadcast(ev Event) PublishResult

	Offer() *domain.Offer
	SetOffer(o *domain.Offer)
}

// Membership is the room a live connection is in, with the owner behind the
// connection and the offer currently bound to the room.
type Membership struct {
	RoomID domain.RoomID
	Owner  domain.OwnerID
	Offer  *domain.Offer
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"memberCount"`
	OfferID     string        `json:"offerId,omitempty"`
}

type RoomManager interface {
	GetOrCreate(id domain.RoomID) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
	Count() int
}
