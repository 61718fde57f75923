// internal/repository/wallet_repo.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"remittance-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

type WalletRepository interface {
	// Create inserts the wallet; a second wallet for the same user yields ErrDuplicateWallet
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error)
	GetByAddress(ctx context.Context, address string) (*domain.Wallet, error)
}

type walletRepo struct {
	pool DB
}

func NewWalletRepository(pool DB) WalletRepository {
	return &walletRepo{pool: pool}
}

func (r *walletRepo) Create(ctx context.Context, wallet *domain.Wallet) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO wallets (user_id, ledger, address, encrypted_secret)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING id, created_at
	`, wallet.UserID, wallet.Ledger, wallet.Address, wallet.EncryptedSecret).Scan(&wallet.ID, &wallet.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrDuplicateWallet
	}
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *walletRepo) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx, `
		SELECT id, user_id, ledger, address, encrypted_secret, credited_total, created_at
		FROM wallets WHERE user_id = $1
	`, userID))
	if err != nil {
		return nil, notFound(err, "wallet", userID)
	}
	return w, nil
}

func (r *walletRepo) GetByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx, `
		SELECT id, user_id, ledger, address, encrypted_secret, credited_total, created_at
		FROM wallets WHERE address = $1
	`, address))
	if err != nil {
		return nil, notFound(err, "wallet", address)
	}
	return w, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var (
		w         domain.Wallet
		creditStr string
	)
	if err := row.Scan(&w.ID, &w.UserID, &w.Ledger, &w.Address, &w.EncryptedSecret, &creditStr, &w.CreatedAt); err != nil {
		return nil, err
	}
	w.CreditedTotal = parseDecimal(creditStr)
	return &w, nil
}
