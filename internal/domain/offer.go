package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Offer is a percentage discount bound to a live room.
type Offer struct {
	ID              string          `json:"offerId"`
	RoomID          RoomID          `json:"roomId"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	ExpiresAt       *time.Time      `json:"expiresAt,omitempty"`
}

func (o *Offer) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%w: offer id empty", ErrValidation)
	}
	if o.RoomID == "" {
		return fmt.Errorf("%w: offer room empty", ErrValidation)
	}
	if o.DiscountPercent.IsNegative() || o.DiscountPercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: discount percent %s outside 0..100", ErrValidation, o.DiscountPercent)
	}
	return nil
}

// ExpiredAt reports whether the offer no longer applies at now.
func (o *Offer) ExpiredAt(now time.Time) bool {
	return o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}

// Apply discounts amount by the offer percentage, rounded half-to-even to cents.
func (o *Offer) Apply(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(hundred.Sub(o.DiscountPercent)).Div(hundred).RoundBank(2)
}
