package domain

import (
	"fmt"
	"strings"
	"time"
)

const keySep = ":"

// ItemKey identifies a cart line. Two items with the same product but a
// different variant are distinct lines.
type ItemKey struct {
	ProductID string
	VariantID string
}

func (k ItemKey) String() string {
	if k.VariantID == "" {
		return k.ProductID
	}
	return k.ProductID + keySep + k.VariantID
}

// Validate rejects keys whose String form would not parse back to the same
// key. The separator may appear in the variant but never in the product.
func (k ItemKey) Validate() error {
	if k.ProductID == "" {
		return fmt.Errorf("%w: product id empty", ErrValidation)
	}
	if strings.Contains(k.ProductID, keySep) {
		return fmt.Errorf("%w: product id %q must not contain %q", ErrValidation, k.ProductID, keySep)
	}
	return nil
}

// ParseItemKey reverses ItemKey.String.
func ParseItemKey(raw string) (ItemKey, error) {
	product, variant, _ := strings.Cut(raw, keySep)
	if product == "" {
		return ItemKey{}, fmt.Errorf("%w: empty product id in key %q", ErrValidation, raw)
	}
	return ItemKey{ProductID: product, VariantID: variant}, nil
}

type CartItem struct {
	ProductID string    `json:"productId"`
	VariantID string    `json:"variantId,omitempty"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

func (i CartItem) Key() ItemKey {
	return ItemKey{ProductID: i.ProductID, VariantID: i.VariantID}
}

// Cart keeps items in insertion order, unique by ItemKey.
type Cart struct {
	OwnerID   OwnerID    `json:"ownerId"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func NewCart(owner OwnerID) *Cart {
	return &Cart{OwnerID: owner, Items: []CartItem{}}
}

// IndexOf returns the position of the line with key k, or -1.
func (c *Cart) IndexOf(k ItemKey) int {
	for i := range c.Items {
		if c.Items[i].Key() == k {
			return i
		}
	}
	return -1
}

func (c *Cart) Quantity(k ItemKey) (int, bool) {
	if i := c.IndexOf(k); i >= 0 {
		return c.Items[i].Quantity, true
	}
	return 0, false
}

func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = make([]CartItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}
