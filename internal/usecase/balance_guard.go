// internal/usecase/balance_guard.go
package usecase

import (
	"context"
	"fmt"

	"remittance-service/internal/chains"
	"remittance-service/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceGuard checks a wallet's live native balance before a spend.
// Nothing is cached: every call reads the ledger.
type BalanceGuard struct {
	ledgers *chains.Registry
	logger  *zap.Logger
}

func NewBalanceGuard(ledgers *chains.Registry, logger *zap.Logger) *BalanceGuard {
	return &BalanceGuard{ledgers: ledgers, logger: logger}
}

// RequiredBalance is amount + fee + the ledger's reserve + its per-operation fee
func RequiredBalance(ledger domain.Ledger, amount, fee decimal.Decimal) decimal.Decimal {
	return amount.Add(fee).Add(ledger.Reserve()).Add(ledger.BaseFee())
}

// EnsureSufficient accepts iff balance >= required
func (g *BalanceGuard) EnsureSufficient(ctx context.Context, wallet *domain.Wallet, required decimal.Decimal) error {
	ledger, err := g.ledgers.Get(wallet.Ledger)
	if err != nil {
		return err
	}

	available, err := ledger.GetNativeBalance(ctx, wallet.Address)
	if err != nil {
		return fmt.Errorf("failed to read wallet balance: %w", err)
	}

	if available.LessThan(required) {
		g.logger.Info("balance guard rejected transfer",
			zap.String("address", wallet.Address),
			zap.String("required", required.String()),
			zap.String("available", available.String()),
		)
		return &domain.InsufficientBalanceError{
			Required:  required,
			Available: available,
			Asset:     ledger.NativeAsset(),
		}
	}
	return nil
}
