// internal/repository/remittance_repo.go
package repository

import (
	"context"
	"fmt"
	"strconv"

	"remittance-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

type RemittanceRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Remittance, error)
	GetByTransactionID(ctx context.Context, transactionID int64) (*domain.Remittance, error)
	UpdateStatus(ctx context.Context, id int64, upd *domain.StatusUpdate) (bool, error)
}

type remittanceRepo struct {
	pool DB
}

func NewRemittanceRepository(pool DB) RemittanceRepository {
	return &remittanceRepo{pool: pool}
}

const remittanceColumns = `
	id, user_id, transaction_id, recipient_id, amount, currency, status,
	reference, bank_code, account_number, narration, fee_amount, total_amount,
	failure_reason, created_at, updated_at`

func insertRemittance(ctx context.Context, q querier, rem *domain.Remittance) error {
	if rem.Status == "" {
		rem.Status = domain.StatusPending
	}
	err := q.QueryRow(ctx, `
		INSERT INTO remittances (
			user_id, transaction_id, recipient_id, amount, currency, status,
			reference, bank_code, account_number, narration, fee_amount, total_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`,
		rem.UserID,
		rem.TransactionID,
		rem.RecipientID,
		rem.Amount.String(),
		rem.Currency,
		rem.Status,
		rem.Reference,
		rem.BankCode,
		rem.AccountNumber,
		rem.Narration,
		rem.FeeAmount.String(),
		rem.TotalAmount.String(),
	).Scan(&rem.ID, &rem.CreatedAt, &rem.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create remittance: %w", err)
	}
	return nil
}

func updateRemittanceStatus(ctx context.Context, q querier, id int64, upd *domain.StatusUpdate) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE remittances
		SET status = $2,
		    failure_reason = COALESCE($3, failure_reason),
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)
	`, id, upd.Status, upd.FailureReason, allowedSources(upd.Status))
	if err != nil {
		return false, fmt.Errorf("failed to update remittance status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *remittanceRepo) GetByID(ctx context.Context, id int64) (*domain.Remittance, error) {
	rem, err := scanRemittance(r.pool.QueryRow(ctx, `SELECT `+remittanceColumns+` FROM remittances WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "remittance", strconv.FormatInt(id, 10))
	}
	return rem, nil
}

func (r *remittanceRepo) GetByTransactionID(ctx context.Context, transactionID int64) (*domain.Remittance, error) {
	rem, err := scanRemittance(r.pool.QueryRow(ctx, `SELECT `+remittanceColumns+` FROM remittances WHERE transaction_id = $1`, transactionID))
	if err != nil {
		return nil, notFound(err, "remittance", "transaction "+strconv.FormatInt(transactionID, 10))
	}
	return rem, nil
}

func (r *remittanceRepo) UpdateStatus(ctx context.Context, id int64, upd *domain.StatusUpdate) (bool, error) {
	return updateRemittanceStatus(ctx, r.pool, id, upd)
}

func scanRemittance(row pgx.Row) (*domain.Remittance, error) {
	var (
		rem                         domain.Remittance
		amountStr, feeStr, totalStr string
	)
	err := row.Scan(
		&rem.ID,
		&rem.UserID,
		&rem.TransactionID,
		&rem.RecipientID,
		&amountStr,
		&rem.Currency,
		&rem.Status,
		&rem.Reference,
		&rem.BankCode,
		&rem.AccountNumber,
		&rem.Narration,
		&feeStr,
		&totalStr,
		&rem.FailureReason,
		&rem.CreatedAt,
		&rem.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rem.Amount = parseDecimal(amountStr)
	rem.FeeAmount = parseDecimal(feeStr)
	rem.TotalAmount = parseDecimal(totalStr)
	return &rem, nil
}
