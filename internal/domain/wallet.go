// internal/domain/wallet.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the custodial ledger account of a user. EncryptedSecret is
// only decrypted transiently while a payment is signed.
type Wallet struct {
	ID              int64
	UserID          string
	Ledger          string
	Address         string
	EncryptedSecret string
	CreditedTotal   decimal.Decimal
	CreatedAt       time.Time
}

// WalletView is what callers see: never carries key material.
type WalletView struct {
	Address string          `json:"address"`
	Ledger  string          `json:"ledger"`
	Asset   string          `json:"asset"`
	Balance decimal.Decimal `json:"balance"`
}
