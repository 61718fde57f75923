// internal/domain/ledger.go
package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Ledger is the client side of a settlement blockchain. Implementations
// never retry a submission; read calls may retry internally.
type Ledger interface {
	// Name returns the registry key (STELLAR, ETHEREUM)
	Name() string

	// NativeAsset returns the settlement asset code (XLM, ETH)
	NativeAsset() string

	// Precision is the number of decimal places the asset carries on the ledger
	Precision() int32

	// Reserve is the minimum balance an account must retain
	Reserve() decimal.Decimal

	// BaseFee is the ledger's own per-operation fee
	BaseFee() decimal.Decimal

	ValidateAddress(address string) error

	// GenerateAccount returns a fresh address and its secret (plaintext)
	GenerateAccount(ctx context.Context) (*GeneratedAccount, error)

	GetNativeBalance(ctx context.Context, address string) (decimal.Decimal, error)

	SubmitPayment(ctx context.Context, req *PaymentRequest) (*PaymentResult, error)

	GetTransactionStatus(ctx context.Context, hash string) (LedgerTxStatus, error)
}

// GeneratedAccount holds freshly generated key material; callers encrypt
// Secret before it is stored anywhere.
type GeneratedAccount struct {
	Address string
	Secret  string
}

// PaymentRequest is a single native-asset payment
type PaymentRequest struct {
	From   string
	Secret string
	To     string
	Amount decimal.Decimal
	Memo   string
}

// PaymentResult is the opaque submission outcome. Success means the ledger
// applied the payment; an accepted but unconfirmed broadcast reports
// Success=false with a nil error and is settled by reconciliation.
type PaymentResult struct {
	Hash       string
	Success    bool
	ResultCode string
}

type LedgerTxStatus string

const (
	LedgerTxCompleted LedgerTxStatus = "completed"
	LedgerTxFailed    LedgerTxStatus = "failed"
	LedgerTxUnknown   LedgerTxStatus = "unknown"
)
