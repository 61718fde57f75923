// internal/usecase/wallet_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"remittance-service/internal/chains"
	"remittance-service/internal/domain"
	"remittance-service/internal/repository"
	"remittance-service/internal/security"

	"go.uber.org/zap"
)

// CustodyAccount is the single platform wallet that receives the cash path's
// settlement leg. Its secret is sealed with the master key like user wallets.
type CustodyAccount struct {
	Address         string
	EncryptedSecret string
}

type WalletUsecase struct {
	walletRepo       repository.WalletRepository
	ledgers          *chains.Registry
	settlementLedger string
	cipher           *security.KeyCipher
	custody          CustodyAccount
	logger           *zap.Logger
}

func NewWalletUsecase(
	walletRepo repository.WalletRepository,
	ledgers *chains.Registry,
	settlementLedger string,
	cipher *security.KeyCipher,
	custody CustodyAccount,
	logger *zap.Logger,
) *WalletUsecase {
	return &WalletUsecase{
		walletRepo:       walletRepo,
		ledgers:          ledgers,
		settlementLedger: settlementLedger,
		cipher:           cipher,
		custody:          custody,
		logger:           logger,
	}
}

// GetWallet returns the user's wallet or *domain.NoWalletError
func (uc *WalletUsecase) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	wallet, err := uc.walletRepo.GetByUserID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.NoWalletError{UserID: userID}
	}
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// GetOrCreate lazily creates the user's wallet on first access. Two
// concurrent first calls converge on the row that won the insert.
func (uc *WalletUsecase) GetOrCreate(ctx context.Context, userID string) (*domain.Wallet, error) {
	wallet, err := uc.walletRepo.GetByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	ledger, err := uc.ledgers.Get(uc.settlementLedger)
	if err != nil {
		return nil, err
	}

	account, err := ledger.GenerateAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate account: %w", err)
	}

	sealed, err := uc.cipher.Seal(account.Secret, account.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt wallet key: %w", err)
	}

	wallet = &domain.Wallet{
		UserID:          userID,
		Ledger:          ledger.Name(),
		Address:         account.Address,
		EncryptedSecret: sealed,
	}
	if err := uc.walletRepo.Create(ctx, wallet); err != nil {
		if errors.Is(err, domain.ErrDuplicateWallet) {
			return uc.walletRepo.GetByUserID(ctx, userID)
		}
		return nil, err
	}

	uc.logger.Info("wallet created",
		zap.String("user_id", userID),
		zap.String("ledger", wallet.Ledger),
		zap.String("address", wallet.Address),
	)
	return wallet, nil
}

// View returns the caller's wallet with its live native balance
func (uc *WalletUsecase) View(ctx context.Context, userID string) (*domain.WalletView, error) {
	wallet, err := uc.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	ledger, err := uc.ledgers.Get(wallet.Ledger)
	if err != nil {
		return nil, err
	}

	balance, err := ledger.GetNativeBalance(ctx, wallet.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet balance: %w", err)
	}

	return &domain.WalletView{
		Address: wallet.Address,
		Ledger:  wallet.Ledger,
		Asset:   ledger.NativeAsset(),
		Balance: balance,
	}, nil
}

// Secret decrypts the signing key. Callers drop it right after signing.
func (uc *WalletUsecase) Secret(wallet *domain.Wallet) (string, error) {
	return uc.cipher.Open(wallet.EncryptedSecret, wallet.Address)
}

// Custody returns the configured custody wallet on the settlement ledger
func (uc *WalletUsecase) Custody() (*domain.Wallet, error) {
	if uc.custody.Address == "" || uc.custody.EncryptedSecret == "" {
		return nil, fmt.Errorf("custody wallet not configured")
	}
	return &domain.Wallet{
		UserID:          "custody",
		Ledger:          uc.settlementLedger,
		Address:         uc.custody.Address,
		EncryptedSecret: uc.custody.EncryptedSecret,
	}, nil
}
