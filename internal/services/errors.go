package services

import (
	"context"
	"errors"
	"fmt"

	"token_distributor/internal/processors"
	"token_distributor/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	KindValidation          = "validation"
	KindInvalidAddress      = "invalid_address"
	KindInsufficientBalance = "insufficient_balance"
	KindInvalidAmount       = "invalid_amount"
	KindEstimation          = "estimation"
	KindConfirmation        = "confirmation"
	KindSubmission          = "submission"
	KindTimeout             = "timeout"
	KindCancelled           = "cancelled"
	KindInternal            = "internal"
)

type InvalidAddressError struct {
	Address string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("Invalid recipient address: %s", e.Address)
}

type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Insufficient token balance. Required: %s, Available: %s", e.Required, e.Available)
}

type InvalidAmountError struct {
	Amount decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("Invalid token amount: %s", e.Amount)
}

// SubmissionError means the node rejected the signed transfer. Nothing was mined.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to submit transfer: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// TimeoutError is a caller-side deadline. The transfer may still be pending or may
// confirm later, so the outcome is unknown rather than failed.
type TimeoutError struct {
	TxHash string
	Err    error
}

func (e *TimeoutError) Error() string {
	if e.TxHash == "" {
		return "request timed out before a transaction was submitted"
	}
	return fmt.Sprintf("timed out waiting for transaction %s; outcome unknown", e.TxHash)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// ErrorKind maps any distribution-path error to a stable kind string.
func ErrorKind(err error) string {
	var (
		validationErr   *processors.ValidationError
		addressErr      *InvalidAddressError
		balanceErr      *InsufficientBalanceError
		amountErr       *InvalidAmountError
		estimationErr   *repository.EstimationError
		confirmationErr *repository.ConfirmationError
		submissionErr   *SubmissionError
		timeoutErr      *TimeoutError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &addressErr):
		return KindInvalidAddress
	case errors.As(err, &balanceErr):
		return KindInsufficientBalance
	case errors.As(err, &amountErr):
		return KindInvalidAmount
	case errors.As(err, &estimationErr):
		return KindEstimation
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &confirmationErr):
		return KindConfirmation
	case errors.As(err, &submissionErr):
		return KindSubmission
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindInternal
	}
}
