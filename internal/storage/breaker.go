package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/shoproom/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

// CartStore is the subset of the cart service's store contract the breaker wraps.
type CartStore interface {
	Load(ctx context.Context, owner domain.OwnerID) (*domain.Cart, error)
	Save(ctx context.Context, c *domain.Cart) error
	Delete(ctx context.Context, owner domain.OwnerID) error
}

type BreakerSettings struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// BreakerCartStore fails fast while the backing store keeps erroring.
// A missing cart is an answer, not a failure, and never trips the breaker.
type BreakerCartStore struct {
	next  CartStore
	load  *gobreaker.CircuitBreaker[*domain.Cart]
	write *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerCartStore(next CartStore, s BreakerSettings) *BreakerCartStore {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 10 * time.Second
	}
	settings := func(suffix string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    s.Name + "." + suffix,
			Timeout: s.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= s.FailureThreshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, domain.ErrNotFound)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("module", "storage").Str("breaker", name).
					Str("from", from.String()).Str("to", to.String()).Msg("circuit state changed")
			},
		}
	}
	return &BreakerCartStore{
		next:  next,
		load:  gobreaker.NewCircuitBreaker[*domain.Cart](settings("load")),
		write: gobreaker.NewCircuitBreaker[struct{}](settings("write")),
	}
}

func (b *BreakerCartStore) Load(ctx context.Context, owner domain.OwnerID) (*domain.Cart, error) {
	return b.load.Execute(func() (*domain.Cart, error) {
		return b.next.Load(ctx, owner)
	})
}

func (b *BreakerCartStore) Save(ctx context.Context, c *domain.Cart) error {
	_, err := b.write.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Save(ctx, c)
	})
	return err
}

func (b *BreakerCartStore) Delete(ctx context.Context, owner domain.OwnerID) error {
	_, err := b.write.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Delete(ctx, owner)
	})
	return err
}

func (b *BreakerCartStore) State() gobreaker.State {
	return b.write.State()
}
