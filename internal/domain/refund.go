package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type RefundStatus string

const (
	RefundPending  RefundStatus = "PENDING"
	RefundApproved RefundStatus = "APPROVED"
	RefundRejected RefundStatus = "REJECTED"
)

func (s RefundStatus) Terminal() bool {
	return s == RefundApproved || s == RefundRejected
}

type RefundMethod string

const (
	MethodStoreCredit     RefundMethod = "store_credit"
	MethodOriginalPayment RefundMethod = "original_payment"
	MethodBankTransfer    RefundMethod = "bank_transfer"
	MethodCash            RefundMethod = "cash"
)

func (m RefundMethod) Valid() bool {
	switch m {
	case MethodStoreCredit, MethodOriginalPayment, MethodBankTransfer, MethodCash:
		return true
	}
	return false
}

type Refund struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"orderId"`
	ReturnID        string          `json:"returnId,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	Method          RefundMethod    `json:"method"`
	Status          RefundStatus    `json:"status"`
	TransactionID   string          `json:"transactionId,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	ProcessedAt     *time.Time      `json:"processedAt,omitempty"`
}

// NewRefund builds a PENDING refund. refundable is the order's remaining
// refundable amount as reported by the ledger.
func NewRefund(id, orderID, returnID string, amount decimal.Decimal, reason string,
	method RefundMethod, notes string, refundable decimal.Decimal, now time.Time,
) (*Refund, error) {
	switch {
	case id == "":
		return nil, fmt.Errorf("%w: refund id empty", ErrValidation)
	case orderID == "":
		return nil, fmt.Errorf("%w: order id empty", ErrValidation)
	case !amount.IsPositive():
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	case reason == "":
		return nil, fmt.Errorf("%w: reason empty", ErrValidation)
	case !method.Valid():
		return nil, fmt.Errorf("%w: unknown method %q", ErrValidation, method)
	}
	if amount.GreaterThan(refundable) {
		return nil, fmt.Errorf("%w: %s > %s", ErrAmountExceedsRefundable, amount, refundable)
	}
	return &Refund{
		ID:        id,
		OrderID:   orderID,
		ReturnID:  returnID,
		Amount:    amount,
		Reason:    reason,
		Method:    method,
		Status:    RefundPending,
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Transition carries the evidence for a status change.
type Transition struct {
	Target          RefundStatus
	TransactionID   string
	RejectionReason string
	Notes           string
}

// Process moves a PENDING refund to a terminal status exactly once.
// refundable is consulted for approvals only.
func (r *Refund) Process(t Transition, refundable decimal.Decimal, now time.Time) error {
	if r.Status.Terminal() {
		return fmt.Errorf("%w: refund %s already %s", ErrInvalidTransition, r.ID, r.Status)
	}
	switch t.Target {
	case RefundApproved:
		if t.TransactionID == "" {
			return fmt.Errorf("%w: approval requires transaction id", ErrValidation)
		}
		if r.Amount.GreaterThan(refundable) {
			return fmt.Errorf("%w: %s > %s", ErrAmountExceedsRefundable, r.Amount, refundable)
		}
		r.TransactionID = t.TransactionID
	case RefundRejected:
		if t.RejectionReason == "" {
			return fmt.Errorf("%w: rejection requires a reason", ErrValidation)
		}
		r.RejectionReason = t.RejectionReason
	default:
		return fmt.Errorf("%w: cannot move refund to %q", ErrValidation, t.Target)
	}
	r.Status = t.Target
	if t.Notes != "" {
		r.Notes = t.Notes
	}
	r.UpdatedAt = now
	r.ProcessedAt = &now
	return nil
}
