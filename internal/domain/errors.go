// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jellydator/validation"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyTerminal   = errors.New("transaction already in terminal state")
	ErrDuplicateWallet   = errors.New("wallet already exists for user")
	ErrLockNotAcquired   = errors.New("wallet is busy with another transfer")
	ErrProviderNotFound  = errors.New("payment provider not supported")
	ErrLedgerUnsupported = errors.New("ledger not supported")
)

// ValidationError is bad input; rejected before any side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError flattens validation.Errors into the first failing field
// (alphabetical, so messages are stable).
func NewValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fields := make([]string, 0, len(verrs))
		for f := range verrs {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		return &ValidationError{Field: fields[0], Message: verrs[fields[0]].Error()}
	}
	return &ValidationError{Message: err.Error()}
}

// LimitError means the USD equivalent falls outside policy bounds.
type LimitError struct {
	Message   string
	AmountUSD decimal.Decimal
	MinUSD    decimal.Decimal
	MaxUSD    decimal.Decimal
}

func (e *LimitError) Error() string { return e.Message }

// InsufficientBalanceError is returned by the balance guard.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
	Asset     string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s %s, available %s %s",
		e.Required.String(), e.Asset, e.Available.String(), e.Asset)
}

// LedgerError carries the ledger's own reason. Retryable marks a sequence
// conflict that may be retried once after reloading account state.
// Ambiguous marks a submission whose outcome is unknown (timeouts).
// Message is safe to show to the caller; Detail keeps the raw SDK or node
// text for logs and transaction metadata.
type LedgerError struct {
	Code      string
	Message   string
	Detail    string
	Hash      string
	Retryable bool
	Ambiguous bool
}

func (e *LedgerError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Code == "" {
		return "ledger error: " + msg
	}
	return fmt.Sprintf("ledger error %s: %s", e.Code, msg)
}

// SignatureError rejects a webhook whose signature does not verify.
type SignatureError struct {
	Provider string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("invalid %s webhook signature", e.Provider)
}

// NotFoundError names what could not be located.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UnknownCurrencyError means the rate table has no entry for the code.
type UnknownCurrencyError struct {
	Currency string
}

func (e *UnknownCurrencyError) Error() string {
	return fmt.Sprintf("unknown currency: %s", e.Currency)
}

// NoWalletError is returned when an operation needs a wallet the user lacks.
type NoWalletError struct {
	UserID string
}

func (e *NoWalletError) Error() string {
	return fmt.Sprintf("no wallet for user %s", e.UserID)
}

// ProviderError wraps a payment provider rejection.
type ProviderError struct {
	Provider string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
