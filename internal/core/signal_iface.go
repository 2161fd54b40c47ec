package core

import "github.com/dkeye/shoproom/internal/domain"

type EventType string

const (
	EventJoined EventType = "joined"
	EventLeft   EventType = "left"
)

// Event is a room notification fanned out to members.
// Its wire encoding belongs to the transport adapter.
type Event struct {
	Type         EventType     `json:"type"`
	RoomID       domain.RoomID `json:"roomId"`
	ConnectionID ConnectionID  `json:"connectionId"`
}

// SignalConnection abstracts the messaging transport of one connection.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues ev without blocking.
	TrySend(ev Event) error
	Close()
}
