// internal/repository/recipient_repo.go
package repository

import (
	"context"
	"fmt"
	"strconv"

	"remittance-service/internal/domain"
)

type RecipientRepository interface {
	Create(ctx context.Context, rec *domain.Recipient) error
	GetByID(ctx context.Context, id int64) (*domain.Recipient, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Recipient, error)
}

type recipientRepo struct {
	pool DB
}

func NewRecipientRepository(pool DB) RecipientRepository {
	return &recipientRepo{pool: pool}
}

func (r *recipientRepo) Create(ctx context.Context, rec *domain.Recipient) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO recipients (user_id, name, bank_code, account_number, currency)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, rec.UserID, rec.Name, rec.BankCode, rec.AccountNumber, rec.Currency).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create recipient: %w", err)
	}
	return nil
}

func (r *recipientRepo) GetByID(ctx context.Context, id int64) (*domain.Recipient, error) {
	var rec domain.Recipient
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, bank_code, account_number, currency, created_at
		FROM recipients WHERE id = $1
	`, id).Scan(&rec.ID, &rec.UserID, &rec.Name, &rec.BankCode, &rec.AccountNumber, &rec.Currency, &rec.CreatedAt)
	if err != nil {
		return nil, notFound(err, "recipient", strconv.FormatInt(id, 10))
	}
	return &rec, nil
}

func (r *recipientRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Recipient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, bank_code, account_number, currency, created_at
		FROM recipients WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var out []*domain.Recipient
	for rows.Next() {
		var rec domain.Recipient
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Name, &rec.BankCode, &rec.AccountNumber, &rec.Currency, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
