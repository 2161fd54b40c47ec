package storage

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/shoproom/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) *SQLiteRefundStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRefund(id, order, amount string, at time.Time) *domain.Refund {
	return &domain.Refund{
		ID:        id,
		OrderID:   order,
		Amount:    decimal.RequireFromString(amount),
		Reason:    "damaged",
		Method:    domain.MethodStoreCredit,
		Status:    domain.RefundPending,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestSQLiteRefundStore_SaveGetRoundTrip(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC)

	r := sampleRefund("r1", "o1", "19.99", at)
	require.NoError(t, s.Save(ctx, r))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(r.Amount))
	assert.Equal(t, domain.RefundPending, got.Status)
	assert.True(t, got.CreatedAt.Equal(at))
	assert.Nil(t, got.ProcessedAt)

	processed := at.Add(time.Hour)
	r.Status = domain.RefundApproved
	r.TransactionID = "tx-1"
	r.ProcessedAt = &processed
	r.UpdatedAt = processed
	require.NoError(t, s.Save(ctx, r))

	got, err = s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RefundApproved, got.Status)
	assert.Equal(t, "tx-1", got.TransactionID)
	require.NotNil(t, got.ProcessedAt)
	assert.True(t, got.ProcessedAt.Equal(processed))
}

func TestSQLiteRefundStore_GetMissing(t *testing.T) {
	s := newSQLite(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteRefundStore_ListByOrder(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, sampleRefund("b", "o1", "1", base.Add(time.Minute))))
	require.NoError(t, s.Save(ctx, sampleRefund("a", "o1", "2", base)))
	require.NoError(t, s.Save(ctx, sampleRefund("c", "o2", "3", base)))

	list, err := s.ListByOrder(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	empty, err := s.ListByOrder(ctx, "o9")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLiteRefundStore_Remaining(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	now := time.Now()

	_, err := s.Remaining(ctx, "o1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.PutOrder(ctx, "o1", decimal.RequireFromString("100.00")))

	approved := sampleRefund("r1", "o1", "30.10", now)
	approved.Status = domain.RefundApproved
	require.NoError(t, s.Save(ctx, approved))
	require.NoError(t, s.Save(ctx, sampleRefund("r2", "o1", "50", now)))
	rejected := sampleRefund("r3", "o1", "20", now)
	rejected.Status = domain.RefundRejected
	require.NoError(t, s.Save(ctx, rejected))

	rem, err := s.Remaining(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, rem.Equal(decimal.RequireFromString("69.90")), rem.String())
}
