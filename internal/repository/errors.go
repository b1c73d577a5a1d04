package repository

import (
	"errors"
	"fmt"
)

var (
	ErrWalletNotFound  = errors.New("custodial wallet not found")
	ErrSubmitterClosed = errors.New("transaction submitter is closed")
)

// EstimationError means the simulated transfer would revert.
type EstimationError struct {
	Err error
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("gas estimation failed: %v", e.Err)
}

func (e *EstimationError) Unwrap() error {
	return e.Err
}

// ConfirmationError means a submitted transaction was not confirmed as successful,
// either because it reverted or because no receipt arrived within the receipt timeout.
type ConfirmationError struct {
	TxHash   string
	Reverted bool
	Err      error
}

func (e *ConfirmationError) Error() string {
	if e.Reverted {
		return fmt.Sprintf("transaction %s reverted", e.TxHash)
	}
	return fmt.Sprintf("transaction %s was not confirmed in time: %v", e.TxHash, e.Err)
}

func (e *ConfirmationError) Unwrap() error {
	return e.Err
}
