// Package cart reconciles client cart state with the authoritative server cart.
//
// AddItem accumulates: two adds of the same line sum their quantities.
// Sync overwrites: for every line the client re-submits its quantity wins,
// and lines the client omits are left untouched.
package cart

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dkeye/shoproom/internal/domain"
)

// Line is one entry of a client-side cart snapshot. Quantity stays a raw
// JSON number so a malformed line can be rejected on its own.
type Line struct {
	ProductID string      `json:"productId"`
	VariantID string      `json:"variantId,omitempty"`
	Quantity  json.Number `json:"quantity"`
}

type Rejected struct {
	Index  int    `json:"index"`
	Line   Line   `json:"line"`
	Reason string `json:"reason"`
}

func validQuantity(q int) error {
	if q <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer, got %d", domain.ErrValidation, q)
	}
	return nil
}

// AddItem appends a line or sums into the existing one with the same key.
func AddItem(c *domain.Cart, key domain.ItemKey, qty int, now time.Time) (*domain.Cart, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := validQuantity(qty); err != nil {
		return nil, err
	}
	out := c.Clone()
	if i := out.IndexOf(key); i >= 0 {
		if out.Items[i].Quantity > math.MaxInt32-qty {
			return nil, fmt.Errorf("%w: quantity overflow for %s", domain.ErrValidation, key)
		}
		out.Items[i].Quantity += qty
	} else {
		out.Items = append(out.Items, domain.CartItem{
			ProductID: key.ProductID, VariantID: key.VariantID, Quantity: qty, AddedAt: now,
		})
	}
	out.UpdatedAt = now
	return out, nil
}

// UpdateItem sets the quantity of an existing line. Zero is not an update;
// callers route it to RemoveItem.
func UpdateItem(c *domain.Cart, key domain.ItemKey, qty int, now time.Time) (*domain.Cart, error) {
	if err := validQuantity(qty); err != nil {
		return nil, err
	}
	i := c.IndexOf(key)
	if i < 0 {
		return nil, fmt.Errorf("%w: item %s", domain.ErrNotFound, key)
	}
	out := c.Clone()
	out.Items[i].Quantity = qty
	out.UpdatedAt = now
	return out, nil
}

func RemoveItem(c *domain.Cart, key domain.ItemKey, now time.Time) (*domain.Cart, error) {
	i := c.IndexOf(key)
	if i < 0 {
		return nil, fmt.Errorf("%w: item %s", domain.ErrNotFound, key)
	}
	out := c.Clone()
	out.Items = append(out.Items[:i], out.Items[i+1:]...)
	out.UpdatedAt = now
	return out, nil
}

// Sync merges a client snapshot into c. Invalid lines are skipped and
// reported; the rest of the batch still applies.
func Sync(c *domain.Cart, lines []Line, now time.Time) (out *domain.Cart, accepted int, rejected []Rejected) {
	out = c.Clone()
	for idx, line := range lines {
		qty, reason := parseLine(line)
		if reason != "" {
			rejected = append(rejected, Rejected{Index: idx, Line: line, Reason: reason})
			continue
		}
		key := domain.ItemKey{ProductID: line.ProductID, VariantID: line.VariantID}
		if i := out.IndexOf(key); i >= 0 {
			out.Items[i].Quantity = qty
		} else {
			out.Items = append(out.Items, domain.CartItem{
				ProductID: key.ProductID, VariantID: key.VariantID, Quantity: qty, AddedAt: now,
			})
		}
		accepted++
	}
	if accepted > 0 {
		out.UpdatedAt = now
	}
	return out, accepted, rejected
}

func parseLine(l Line) (int, string) {
	if l.ProductID == "" {
		return 0, "missing product id"
	}
	if strings.Contains(l.ProductID, ":") {
		return 0, fmt.Sprintf("product id %q must not contain ':'", l.ProductID)
	}
	q, err := l.Quantity.Int64()
	if err != nil {
		return 0, fmt.Sprintf("quantity %q is not an integer", l.Quantity.String())
	}
	if q <= 0 {
		return 0, fmt.Sprintf("quantity %d is not positive", q)
	}
	if q > math.MaxInt32 {
		return 0, fmt.Sprintf("quantity %d is too large", q)
	}
	return int(q), ""
}
