package token

import (
	"errors"
	"fmt"
)

// Errors.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrTokenQueryFailed    = errors.New("token query failed")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrTransferFailed      = errors.New("transfer failed")
	ErrTransferInProgress  = errors.New("a transfer is already in progress")
)

// TransferError is a failed transfer. Reason is the chain's rejection reason
// when one was available.
type TransferError struct {
	Reason string
	Err    error
}

func (e *TransferError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("transfer failed: %s", e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("transfer failed: %v", e.Err)
	}
	return "transfer failed"
}

func (e *TransferError) Unwrap() error { return e.Err }

func (e *TransferError) Is(target error) bool { return target == ErrTransferFailed }

// Message is what the user is shown: the reason, else the cause, else a
// generic text.
func (e *TransferError) Message() string {
	switch {
	case e.Reason != "":
		return e.Reason
	case e.Err != nil && e.Err.Error() != "":
		return e.Err.Error()
	}
	return "Transfer failed"
}
