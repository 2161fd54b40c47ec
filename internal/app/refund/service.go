// Package refund drives refunds through PENDING -> APPROVED | REJECTED.
package refund

//go:generate mockgen -source=service.go -destination=mock_deps_test.go -package=refund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/shoproom/internal/app/keylock"
	"github.com/dkeye/shoproom/internal/domain"
	"github.com/dkeye/shoproom/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Store persists refunds. Get returns domain.ErrNotFound for unknown ids.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Refund, error)
	Save(ctx context.Context, r *domain.Refund) error
	ListByOrder(ctx context.Context, orderID string) ([]*domain.Refund, error)
}

// Ledger reports how much of an order can still be refunded. Cumulative
// accounting across refunds is the ledger's job.
type Ledger interface {
	Remaining(ctx context.Context, orderID string) (decimal.Decimal, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

const (
	EventCreated   = "refund.created"
	EventProcessed = "refund.processed"
)

type Event struct {
	Type   string        `json:"type"`
	Refund domain.Refund `json:"refund"`
	At     time.Time     `json:"at"`
}

type CreateRefund struct {
	OrderID  string              `json:"orderId"`
	ReturnID string              `json:"returnId"`
	Amount   decimal.Decimal     `json:"amount"`
	Reason   string              `json:"reason"`
	Method   domain.RefundMethod `json:"method"`
	Notes    string              `json:"notes"`
}

type ProcessRefund struct {
	Status          domain.RefundStatus `json:"status"`
	TransactionID   string              `json:"transactionId"`
	RejectionReason string              `json:"rejectionReason"`
	Notes           string              `json:"notes"`
}

type Service struct {
	store     Store
	ledger    Ledger
	publisher Publisher
	metrics   *metrics.Metrics
	locks     *keylock.Map[string] // refund ids
	orders    *keylock.Map[string] // order ids, held from remainder read to save on approval
	newID     func() string
	now       func() time.Time
}

func NewService(store Store, ledger Ledger, publisher Publisher, m *metrics.Metrics) *Service {
	return &Service{
		store:     store,
		ledger:    ledger,
		publisher: publisher,
		metrics:   m,
		locks:     keylock.New[string](),
		orders:    keylock.New[string](),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

func (s *Service) remaining(ctx context.Context, orderID string) (decimal.Decimal, error) {
	rem, err := s.ledger.Remaining(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, err
		}
		return decimal.Zero, fmt.Errorf("%w: ledger: %w", domain.ErrPersistence, err)
	}
	return rem, nil
}

func (s *Service) Create(ctx context.Context, cmd CreateRefund) (*domain.Refund, error) {
	if cmd.OrderID == "" {
		return nil, fmt.Errorf("%w: order id empty", domain.ErrValidation)
	}
	rem, err := s.remaining(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	r, err := domain.NewRefund(s.newID(), cmd.OrderID, cmd.ReturnID, cmd.Amount, cmd.Reason, cmd.Method, cmd.Notes, rem, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("%w: save refund: %w", domain.ErrPersistence, err)
	}
	s.metrics.RefundTransition(string(r.Status))
	log.Info().Str("module", "app.refund").Str("refund", r.ID).Str("order", r.OrderID).Str("amount", r.Amount.String()).Msg("refund created")
	s.publish(ctx, EventCreated, r)
	return r, nil
}

// Process applies a one-way status transition. A refund that is already
// APPROVED or REJECTED fails with domain.ErrInvalidTransition.
// Approvals of one order are serialized so each sees the remainder left by
// the previous one.
func (s *Service) Process(ctx context.Context, id string, cmd ProcessRefund) (*domain.Refund, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status.Terminal() {
		return nil, fmt.Errorf("%w: refund %s already %s", domain.ErrInvalidTransition, r.ID, r.Status)
	}
	rem := decimal.Zero
	if cmd.Status == domain.RefundApproved {
		unlockOrder := s.orders.Lock(r.OrderID)
		defer unlockOrder()
		if rem, err = s.remaining(ctx, r.OrderID); err != nil {
			return nil, err
		}
	}
	t := domain.Transition{
		Target:          cmd.Status,
		TransactionID:   cmd.TransactionID,
		RejectionReason: cmd.RejectionReason,
		Notes:           cmd.Notes,
	}
	if err := r.Process(t, rem, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("%w: save refund %s: %w", domain.ErrPersistence, r.ID, err)
	}
	s.metrics.RefundTransition(string(r.Status))
	log.Info().Str("module", "app.refund").Str("refund", r.ID).Str("status", string(r.Status)).Msg("refund processed")
	s.publish(ctx, EventProcessed, r)
	return r, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Refund, error) {
	r, err := s.store.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load refund %s: %w", domain.ErrPersistence, id, err)
	}
	return r, nil
}

func (s *Service) ListByOrder(ctx context.Context, orderID string) ([]*domain.Refund, error) {
	out, err := s.store.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: list refunds: %w", domain.ErrPersistence, err)
	}
	return out, nil
}

// publish is best effort: the refund is already stored.
func (s *Service) publish(ctx context.Context, typ string, r *domain.Refund) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, Event{Type: typ, Refund: *r, At: s.now()}); err != nil {
		log.Warn().Err(err).Str("module", "app.refund").Str("refund", r.ID).Str("event", typ).Msg("publish failed")
	}
}
