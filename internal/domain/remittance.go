// internal/domain/remittance.go
package domain

import (
	"time"

	"github.com/jellydator/validation"
	"github.com/shopspring/decimal"
)

// Remittance is the cash-payout intent paired 1:1 with a Transaction.
// It reaches processing only after the paired on-chain leg completed.
type Remittance struct {
	ID            int64
	UserID        string
	TransactionID int64
	RecipientID   *int64

	Amount   decimal.Decimal
	Currency string
	Status   TransactionStatus

	Reference     string
	BankCode      string
	AccountNumber string
	Narration     string

	FeeAmount   decimal.Decimal
	TotalAmount decimal.Decimal

	FailureReason *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recipient is a saved payout destination owned by a user
type Recipient struct {
	ID            int64
	UserID        string
	Name          string
	BankCode      string
	AccountNumber string
	Currency      string
	CreatedAt     time.Time
}

// RecipientRequest saves a bank payout destination
type RecipientRequest struct {
	Name          string `json:"name"`
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	Currency      string `json:"currency"`
}

func (r RecipientRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.BankCode, validation.Required, validation.Length(2, 20)),
		validation.Field(&r.AccountNumber, validation.Required, validation.Length(6, 20)),
		validation.Field(&r.Currency, validation.Required, validation.Length(3, 5)),
	)
	return NewValidationError(err)
}
