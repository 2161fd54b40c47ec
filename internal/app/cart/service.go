package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/shoproom/internal/app/keylock"
	"github.com/dkeye/shoproom/internal/domain"
	"github.com/dkeye/shoproom/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Store persists carts. Load returns domain.ErrNotFound when the owner has no cart.
type Store interface {
	Load(ctx context.Context, owner domain.OwnerID) (*domain.Cart, error)
	Save(ctx context.Context, c *domain.Cart) error
	Delete(ctx context.Context, owner domain.OwnerID) error
}

// Result is what every cart mutation returns. Persisted is false when the
// merge was computed but the store rejected the write.
type Result struct {
	Cart      *domain.Cart `json:"cart"`
	Rejected  []Rejected   `json:"rejected,omitempty"`
	Persisted bool         `json:"persisted"`
}

type Service struct {
	store   Store
	locks   *keylock.Map[domain.OwnerID]
	sfg     singleflight.Group // Prevents load stampede on reads
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(store Store, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		locks:   keylock.New[domain.OwnerID](),
		metrics: m,
		now:     time.Now,
	}
}

// Get returns the owner's cart, or an empty one if none is stored.
// Concurrent reads of one owner share a load, so the load outlives the
// cancellation of whichever caller started it.
func (s *Service) Get(ctx context.Context, owner domain.OwnerID) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(string(owner), func() (any, error) {
		return s.load(context.WithoutCancel(ctx), owner)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart).Clone(), nil
}

func (s *Service) load(ctx context.Context, owner domain.OwnerID) (*domain.Cart, error) {
	c, err := s.store.Load(ctx, owner)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewCart(owner), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load cart %s: %w", domain.ErrPersistence, owner, err)
	}
	return c, nil
}

type change struct {
	cart     *domain.Cart
	rejected []Rejected
	dirty    bool
}

// mutate runs fn against the freshly loaded cart while holding the owner's
// lock and saves the outcome once. A failed save still returns the merged
// cart, marked unpersisted.
func (s *Service) mutate(ctx context.Context, owner domain.OwnerID, op string, fn func(*domain.Cart, time.Time) (change, error)) (res Result, err error) {
	defer func() { s.metrics.CartMutation(op, err) }()

	unlock := s.locks.Lock(owner)
	defer unlock()

	current, err := s.load(ctx, owner)
	if err != nil {
		return Result{}, err
	}
	ch, err := fn(current, s.now())
	if err != nil {
		return Result{Cart: current, Persisted: true}, err
	}
	res = Result{Cart: ch.cart, Rejected: ch.rejected, Persisted: true}
	if !ch.dirty {
		return res, nil
	}
	if err := s.store.Save(ctx, ch.cart); err != nil {
		log.Error().Err(err).Str("module", "app.cart").Str("owner", string(owner)).Str("op", op).Msg("save failed, merge not persisted")
		res.Persisted = false
		return res, fmt.Errorf("%w: save cart %s: %w", domain.ErrPersistence, owner, err)
	}
	s.sfg.Forget(string(owner))
	return res, nil
}

func (s *Service) AddItem(ctx context.Context, owner domain.OwnerID, key domain.ItemKey, qty int) (Result, error) {
	return s.mutate(ctx, owner, "add", func(c *domain.Cart, now time.Time) (change, error) {
		next, err := AddItem(c, key, qty, now)
		return change{cart: next, dirty: true}, err
	})
}

func (s *Service) UpdateItem(ctx context.Context, owner domain.OwnerID, key domain.ItemKey, qty int) (Result, error) {
	return s.mutate(ctx, owner, "update", func(c *domain.Cart, now time.Time) (change, error) {
		next, err := UpdateItem(c, key, qty, now)
		return change{cart: next, dirty: true}, err
	})
}

func (s *Service) RemoveItem(ctx context.Context, owner domain.OwnerID, key domain.ItemKey) (Result, error) {
	return s.mutate(ctx, owner, "remove", func(c *domain.Cart, now time.Time) (change, error) {
		next, err := RemoveItem(c, key, now)
		return change{cart: next, dirty: true}, err
	})
}

// Sync reconciles a client snapshot. Invalid lines never fail the call;
// they come back in Result.Rejected.
func (s *Service) Sync(ctx context.Context, owner domain.OwnerID, lines []Line) (Result, error) {
	return s.mutate(ctx, owner, "sync", func(c *domain.Cart, now time.Time) (change, error) {
		next, accepted, rejected := Sync(c, lines, now)
		s.metrics.SyncRejected(len(rejected))
		if len(rejected) > 0 {
			log.Info().Str("module", "app.cart").Str("owner", string(owner)).
				Int("accepted", accepted).Int("rejected", len(rejected)).Msg("partial sync")
		}
		return change{cart: next, rejected: rejected, dirty: accepted > 0}, nil
	})
}

func (s *Service) Clear(ctx context.Context, owner domain.OwnerID) (err error) {
	defer func() { s.metrics.CartMutation("clear", err) }()
	unlock := s.locks.Lock(owner)
	defer unlock()
	if err := s.store.Delete(ctx, owner); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: delete cart %s: %w", domain.ErrPersistence, owner, err)
	}
	s.sfg.Forget(string(owner))
	return nil
}
