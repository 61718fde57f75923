// internal/domain/transfer.go
package domain

import (
	"github.com/jellydator/validation"
	"github.com/shopspring/decimal"
)

type TransferType string

const (
	TransferTypeCrypto TransferType = "crypto"
	TransferTypeCash   TransferType = "cash"
)

// TransferRequest is the input of the transfer orchestrator.
type TransferRequest struct {
	Type     TransferType    `json:"transfer_type"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`

	// crypto
	RecipientAddress string `json:"recipient_address,omitempty"`

	// cash: either a saved recipient or inline bank details
	RecipientID   *int64 `json:"recipient_id,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	Narration     string `json:"narration,omitempty"`
}

// Validate checks shape only; amounts are checked against policy later.
func (r TransferRequest) Validate() error {
	inlineBank := r.Type == TransferTypeCash && r.RecipientID == nil

	err := validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Required, validation.In(TransferTypeCrypto, TransferTypeCash)),
		validation.Field(&r.Currency, validation.Required, validation.Length(3, 5)),
		validation.Field(&r.RecipientAddress, validation.When(r.Type == TransferTypeCrypto, validation.Required)),
		validation.Field(&r.BankCode, validation.When(inlineBank, validation.Required)),
		validation.Field(&r.AccountNumber, validation.When(inlineBank, validation.Required, validation.Length(6, 20))),
		validation.Field(&r.Narration, validation.Length(0, 140)),
	)
	if err != nil {
		return NewValidationError(err)
	}
	if !r.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	return nil
}

// TransferResult is what the orchestrator reports back. A post-submission
// failure is a result with Status failed, not an error.
type TransferResult struct {
	TransactionID int64             `json:"transaction_id"`
	RemittanceID  *int64            `json:"remittance_id,omitempty"`
	Reference     string            `json:"reference"`
	Status        TransactionStatus `json:"status"`
	Message       string            `json:"message,omitempty"`
}

// DepositRequest asks an on-ramp provider to fund the caller's wallet.
type DepositRequest struct {
	Provider string          `json:"provider"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (r DepositRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Provider, validation.Required),
		validation.Field(&r.Currency, validation.Required, validation.Length(3, 5)),
	)
	if err != nil {
		return NewValidationError(err)
	}
	if !r.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	return nil
}
