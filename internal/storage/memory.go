// Package storage holds the persistence adapters for carts, refunds and
// the order ledger.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dkeye/shoproom/internal/domain"
	"github.com/shopspring/decimal"
)

// MemoryCartStore keeps carts in process memory. Used for dev mode and tests.
type MemoryCartStore struct {
	mu    sync.RWMutex
	carts map[domain.OwnerID]*domain.Cart
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[domain.OwnerID]*domain.Cart)}
}

func (m *MemoryCartStore) Load(_ context.Context, owner domain.OwnerID) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[owner]
	if !ok {
		return nil, fmt.Errorf("%w: cart %s", domain.ErrNotFound, owner)
	}
	return c.Clone(), nil
}

func (m *MemoryCartStore) Save(_ context.Context, c *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.OwnerID] = c.Clone()
	return nil
}

func (m *MemoryCartStore) Delete(_ context.Context, owner domain.OwnerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, owner)
	return nil
}

// MemoryRefundStore keeps refunds and order totals in memory and doubles as
// the order ledger.
type MemoryRefundStore struct {
	mu      sync.RWMutex
	refunds map[string]domain.Refund
	orders  map[string]decimal.Decimal
}

func NewMemoryRefundStore() *MemoryRefundStore {
	return &MemoryRefundStore{
		refunds: make(map[string]domain.Refund),
		orders:  make(map[string]decimal.Decimal),
	}
}

func (m *MemoryRefundStore) Get(_ context.Context, id string) (*domain.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.refunds[id]
	if !ok {
		return nil, fmt.Errorf("%w: refund %s", domain.ErrNotFound, id)
	}
	return &r, nil
}

func (m *MemoryRefundStore) Save(_ context.Context, r *domain.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunds[r.ID] = *r
	return nil
}

func (m *MemoryRefundStore) ListByOrder(_ context.Context, orderID string) ([]*domain.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.Refund{}
	for _, r := range m.refunds {
		if r.OrderID == orderID {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRefundStore) PutOrder(_ context.Context, orderID string, total decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[orderID] = total
	return nil
}

// Remaining is the order total minus every approved refund.
func (m *MemoryRefundStore) Remaining(_ context.Context, orderID string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total, ok := m.orders[orderID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	for _, r := range m.refunds {
		if r.OrderID == orderID && r.Status == domain.RefundApproved {
			total = total.Sub(r.Amount)
		}
	}
	return total, nil
}
