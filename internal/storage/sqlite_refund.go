package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/shoproom/internal/domain"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	total TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS refunds (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	return_id TEXT NOT NULL DEFAULT '',
	amount TEXT NOT NULL,
	reason TEXT NOT NULL,
	method TEXT NOT NULL,
	status TEXT NOT NULL,
	transaction_id TEXT NOT NULL DEFAULT '',
	rejection_reason TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	processed_at TEXT
);
CREATE INDEX IF NOT EXISTS refunds_order_idx ON refunds(order_id, created_at);
`

// SQLiteRefundStore persists refunds and order totals. It implements both
// the refund store and the order ledger.
type SQLiteRefundStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
// ":memory:" is accepted for tests.
func OpenSQLite(path string) (*SQLiteRefundStore, error) {
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// a single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}
	return &SQLiteRefundStore{db: db}, nil
}

func (s *SQLiteRefundStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteRefundStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteRefundStore) Save(ctx context.Context, r *domain.Refund) error {
	var processed sql.NullString
	if r.ProcessedAt != nil {
		processed = sql.NullString{String: formatTime(*r.ProcessedAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO refunds (id, order_id, return_id, amount, reason, method, status,
	transaction_id, rejection_reason, notes, created_at, updated_at, processed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status = excluded.status,
	transaction_id = excluded.transaction_id,
	rejection_reason = excluded.rejection_reason,
	notes = excluded.notes,
	updated_at = excluded.updated_at,
	processed_at = excluded.processed_at`,
		r.ID, r.OrderID, r.ReturnID, r.Amount.String(), r.Reason, string(r.Method), string(r.Status),
		r.TransactionID, r.RejectionReason, r.Notes,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt), processed,
	)
	if err != nil {
		return fmt.Errorf("save refund %s: %w", r.ID, err)
	}
	return nil
}

const refundColumns = `id, order_id, return_id, amount, reason, method, status,
	transaction_id, rejection_reason, notes, created_at, updated_at, processed_at`

func (s *SQLiteRefundStore) Get(ctx context.Context, id string) (*domain.Refund, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id = ?`, id)
	r, err := scanRefund(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: refund %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get refund %s: %w", id, err)
	}
	return r, nil
}

func (s *SQLiteRefundStore) ListByOrder(ctx context.Context, orderID string) ([]*domain.Refund, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE order_id = ? ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list refunds for %s: %w", orderID, err)
	}
	defer rows.Close()

	out := []*domain.Refund{}
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("scan refund: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list refunds for %s: %w", orderID, err)
	}
	return out, nil
}

// PutOrder records (or replaces) the refundable total of an order.
func (s *SQLiteRefundStore) PutOrder(ctx context.Context, orderID string, total decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO orders (id, total, updated_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET total = excluded.total, updated_at = excluded.updated_at`,
		orderID, total.String(), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("put order %s: %w", orderID, err)
	}
	return nil
}

// Remaining is the order total minus every approved refund. Amounts are
// stored as decimal text, so the sum happens here rather than in SQL.
func (s *SQLiteRefundStore) Remaining(ctx context.Context, orderID string) (decimal.Decimal, error) {
	var totalText string
	err := s.db.QueryRowContext(ctx, `SELECT total FROM orders WHERE id = ?`, orderID).Scan(&totalText)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get order %s: %w", orderID, err)
	}
	remaining, err := decimal.NewFromString(totalText)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse order total %q: %w", totalText, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT amount FROM refunds WHERE order_id = ? AND status = ?`, orderID, string(domain.RefundApproved))
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum refunds for %s: %w", orderID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var amountText string
		if err := rows.Scan(&amountText); err != nil {
			return decimal.Zero, fmt.Errorf("scan refund amount: %w", err)
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse refund amount %q: %w", amountText, err)
		}
		remaining = remaining.Sub(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("sum refunds for %s: %w", orderID, err)
	}
	return remaining, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRefund(sc scanner) (*domain.Refund, error) {
	var (
		r                    domain.Refund
		amount, method, stat string
		created, updated     string
		processed            sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.OrderID, &r.ReturnID, &amount, &r.Reason, &method, &stat,
		&r.TransactionID, &r.RejectionReason, &r.Notes, &created, &updated, &processed); err != nil {
		return nil, err
	}
	var err error
	if r.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	r.Method = domain.RefundMethod(method)
	r.Status = domain.RefundStatus(stat)
	if r.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if processed.Valid {
		t, err := parseTime(processed.String)
		if err != nil {
			return nil, err
		}
		r.ProcessedAt = &t
	}
	return &r, nil
}

// timeLayout is fixed width so text ordering in SQL matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
