// Package pricing provides unit prices for cart lines.
package pricing

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/shoproom/internal/domain"
	"github.com/shopspring/decimal"
)

// Catalog is an in-memory price list keyed by "product" or "product:variant".
// A variant without its own price inherits the product price.
type Catalog struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewCatalog parses raw prices such as {"p1": "19.99", "p1:xl": "21.99"}.
func NewCatalog(raw map[string]string) (*Catalog, error) {
	c := &Catalog{prices: make(map[string]decimal.Decimal, len(raw))}
	for k, v := range raw {
		key, err := domain.ParseItemKey(k)
		if err != nil {
			return nil, err
		}
		if err := c.Set(key, v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) Set(key domain.ItemKey, raw string) error {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%w: price %q for %s: %v", domain.ErrValidation, raw, key, err)
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: negative price for %s", domain.ErrValidation, key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[key.String()] = price
	return nil
}

func (c *Catalog) UnitPrice(_ context.Context, key domain.ItemKey) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.prices[key.String()]; ok {
		return p, nil
	}
	if p, ok := c.prices[key.ProductID]; ok {
		return p, nil
	}
	return decimal.Zero, fmt.Errorf("%w: no price for %s", domain.ErrNotFound, key)
}
