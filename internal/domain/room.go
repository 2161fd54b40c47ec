package domain

import (
	"fmt"
	"time"
)

const MaxRoomIDLen = 64

type RoomID string

type Room struct {
	ID        RoomID
	CreatedAt time.Time
}

func ParseRoomID(raw string) (RoomID, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: room id empty", ErrValidation)
	}
	if len(raw) > MaxRoomIDLen {
		return "", fmt.Errorf("%w: room id too long", ErrValidation)
	}
	return RoomID(raw), nil
}
