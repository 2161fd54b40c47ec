// Package domain contains entities and the rules that keep them valid.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxOwnerIDLen = 64

var (
	ErrOwnerTooLong = errors.New("owner id too long")
	ErrOwnerEmpty   = errors.New("owner id empty")
)

// OwnerID identifies whoever a cart belongs to: an account or a guest session.
type OwnerID string

// NewGuestOwner mints an owner id for an unauthenticated session.
func NewGuestOwner() OwnerID {
	return OwnerID("guest-" + uuid.NewString())
}

func ParseOwnerID(raw string) (OwnerID, error) {
	if len(raw) == 0 {
		return "", ErrOwnerEmpty
	}
	if len(raw) > MaxOwnerIDLen {
		return "", ErrOwnerTooLong
	}
	return OwnerID(raw), nil
}
