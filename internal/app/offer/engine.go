// Package offer prices a cart for checkout preview, applying the discount
// of the room the requesting connection is in.
package offer

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/shoproom/internal/core"
	"github.com/dkeye/shoproom/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RoomResolver reports the room a connection currently belongs to, its
// owner and the offer bound to the room, if any.
type RoomResolver interface {
	OfferFor(id core.ConnectionID) (core.Membership, bool)
}

type Pricer interface {
	UnitPrice(ctx context.Context, key domain.ItemKey) (decimal.Decimal, error)
}

type Preview struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	RoomID          domain.RoomID   `json:"roomId,omitempty"`
	OfferID         string          `json:"offerId,omitempty"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

type Engine struct {
	rooms  RoomResolver
	prices Pricer
	now    func() time.Time
}

func NewEngine(rooms RoomResolver, prices Pricer) *Engine {
	return &Engine{rooms: rooms, prices: prices, now: time.Now}
}

func (e *Engine) Subtotal(ctx context.Context, c *domain.Cart) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, it := range c.Items {
		price, err := e.prices.UnitPrice(ctx, it.Key())
		if err != nil {
			return decimal.Zero, fmt.Errorf("price %s: %w", it.Key(), err)
		}
		sum = sum.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum.RoundBank(2), nil
}

// PreviewTotal returns the cart total as conn would pay it right now.
// Without a room, an offer, or with an expired one, the total is the subtotal.
// A connection owned by someone other than the cart's owner counts as no room.
func (e *Engine) PreviewTotal(ctx context.Context, c *domain.Cart, conn core.ConnectionID) (Preview, error) {
	subtotal, err := e.Subtotal(ctx, c)
	if err != nil {
		return Preview{}, err
	}
	p := Preview{Subtotal: subtotal, Total: subtotal, Discount: decimal.Zero, DiscountPercent: decimal.Zero}

	m, ok := e.rooms.OfferFor(conn)
	if !ok {
		return p, nil
	}
	if m.Owner != c.OwnerID {
		log.Warn().Str("module", "app.offer").Str("conn", string(conn)).Str("owner", string(c.OwnerID)).
			Msg("preview for a connection of another owner")
		return p, nil
	}
	roomID, o := m.RoomID, m.Offer
	p.RoomID = roomID
	if o == nil || o.RoomID != roomID || o.ExpiredAt(e.now()) {
		return p, nil
	}
	p.OfferID = o.ID
	p.DiscountPercent = o.DiscountPercent
	p.Total = o.Apply(subtotal)
	p.Discount = subtotal.Sub(p.Total)
	log.Debug().Str("module", "app.offer").Str("conn", string(conn)).Str("room", string(roomID)).
		Str("offer", o.ID).Str("total", p.Total.StringFixed(2)).Msg("offer applied")
	return p, nil
}
