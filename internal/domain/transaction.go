// internal/domain/transaction.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of value movement
type TransactionType string

const (
	TransactionTypeDeposit        TransactionType = "deposit"
	TransactionTypeWithdrawal     TransactionType = "withdrawal"
	TransactionTypeCryptoTransfer TransactionType = "crypto_transfer"
	TransactionTypeRemittance     TransactionType = "remittance"
	TransactionTypeTest           TransactionType = "test"
)

// TransactionStatus is shared by transactions and remittances
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
)

// IsTerminal reports whether no further transition may leave the status.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo enforces pending -> {processing|completed|failed} and
// processing -> {completed|failed}.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCompleted || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Transaction is one attempted movement of value. Never hard-deleted.
type Transaction struct {
	ID     int64
	UserID string
	Type   TransactionType

	// Amount is in the request currency; SettlementAmount is what moves on the ledger.
	Amount           decimal.Decimal
	Currency         string
	SettlementAmount decimal.Decimal
	Ledger           string

	Status    TransactionStatus
	Reference string
	TxHash    *string

	FromAddress string
	ToAddress   string

	ServiceFee decimal.Decimal
	NetworkFee decimal.Decimal
	TotalFee   decimal.Decimal

	FailureReason *string

	// Provider fields are set for on/off-ramp transactions and drive webhook lookup.
	Provider          *string
	ProviderReference *string

	Metadata map[string]interface{}

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatusUpdate describes a guarded transition applied by the repository.
type StatusUpdate struct {
	Status        TransactionStatus
	TxHash        *string
	FailureReason *string
	Metadata      map[string]interface{}
}
