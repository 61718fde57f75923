// internal/domain/events.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionEvent is published on every status transition
type TransactionEvent struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"` // transaction.completed, transaction.failed, ...
	TransactionID int64             `json:"transaction_id"`
	Reference     string            `json:"reference"`
	UserID        string            `json:"user_id"`
	Type          TransactionType   `json:"transaction_type"`
	Status        TransactionStatus `json:"status"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	TxHash        string            `json:"tx_hash,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	Source        string            `json:"source"` // orchestrator, reconcile, webhook
	Timestamp     time.Time         `json:"timestamp"`
}

// NewTransactionEvent snapshots tx after it moved to status.
func NewTransactionEvent(tx *Transaction, status TransactionStatus, source string) *TransactionEvent {
	ev := &TransactionEvent{
		EventType:     "transaction." + string(status),
		TransactionID: tx.ID,
		Reference:     tx.Reference,
		UserID:        tx.UserID,
		Type:          tx.Type,
		Status:        status,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Source:        source,
	}
	if tx.TxHash != nil {
		ev.TxHash = *tx.TxHash
	}
	if tx.FailureReason != nil {
		ev.ErrorMessage = *tx.FailureReason
	}
	return ev
}

// PayoutReady tells operations a cash payout can be completed off-chain
type PayoutReady struct {
	EventID       string          `json:"event_id"`
	RemittanceID  int64           `json:"remittance_id"`
	Reference     string          `json:"reference"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	BankCode      string          `json:"bank_code"`
	AccountNumber string          `json:"account_number"`
	Narration     string          `json:"narration"`
	TxHash        string          `json:"tx_hash"`
	ReadyAt       time.Time       `json:"ready_at"`
}
