package domain

import "errors"

var (
	ErrValidation              = errors.New("validation error")
	ErrInvalidTransition       = errors.New("invalid state transition")
	ErrAmountExceedsRefundable = errors.New("amount exceeds refundable remainder")
	ErrNotFound                = errors.New("not found")
	ErrPersistence             = errors.New("persistence failure")
)
