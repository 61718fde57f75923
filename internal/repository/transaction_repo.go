// internal/repository/transaction_repo.go
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"remittance-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	GetByProviderReference(ctx context.Context, provider, providerRef string) (*domain.Transaction, error)
	ListOpenOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.Transaction, error)

	// AttachHash records the ledger hash without changing status. The hash is set once.
	AttachHash(ctx context.Context, id int64, hash string) error

	// AttachProviderReference records the on/off-ramp provider's own id used by webhooks.
	AttachProviderReference(ctx context.Context, id int64, provider, providerRef string) error

	// UpdateStatus applies a guarded transition. It returns false when the row
	// is already terminal (or otherwise not in an allowed source state).
	UpdateStatus(ctx context.Context, id int64, upd *domain.StatusUpdate) (bool, error)

	// CreateWithRemittance inserts the pending pair in one database transaction.
	// rem may be nil for crypto transfers.
	CreateWithRemittance(ctx context.Context, tx *domain.Transaction, rem *domain.Remittance) error

	// SettleWithRemittance moves a transaction and its remittance together.
	SettleWithRemittance(ctx context.Context, txID int64, upd *domain.StatusUpdate, remittanceID int64, remUpd *domain.StatusUpdate) (bool, error)

	// SettleDeposit completes or fails a deposit and, on completion, credits
	// the owner's wallet bookkeeping in the same database transaction.
	SettleDeposit(ctx context.Context, txID int64, upd *domain.StatusUpdate, credit decimal.Decimal) (bool, error)
}

type transactionRepo struct {
	pool DB
}

func NewTransactionRepository(pool DB) TransactionRepository {
	return &transactionRepo{pool: pool}
}

const transactionColumns = `
	id, user_id, type, amount, currency, settlement_amount, ledger,
	status, reference, tx_hash, from_address, to_address,
	service_fee, network_fee, total_fee, failure_reason,
	provider, provider_reference, metadata, created_at, updated_at`

func insertTransaction(ctx context.Context, q querier, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			user_id, type, amount, currency, settlement_amount, ledger,
			status, reference, tx_hash, from_address, to_address,
			service_fee, network_fee, total_fee, failure_reason,
			provider, provider_reference, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18::jsonb)
		RETURNING id, created_at, updated_at
	`
	if tx.Status == "" {
		tx.Status = domain.StatusPending
	}

	err := q.QueryRow(ctx, query,
		tx.UserID,
		tx.Type,
		tx.Amount.String(),
		tx.Currency,
		tx.SettlementAmount.String(),
		tx.Ledger,
		tx.Status,
		tx.Reference,
		tx.TxHash,
		tx.FromAddress,
		tx.ToAddress,
		tx.ServiceFee.String(),
		tx.NetworkFee.String(),
		tx.TotalFee.String(),
		tx.FailureReason,
		tx.Provider,
		tx.ProviderReference,
		marshalMetadata(tx.Metadata),
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("duplicate transaction reference %s: %w", tx.Reference, err)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	return insertTransaction(ctx, r.pool, tx)
}

func (r *transactionRepo) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	tx, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "transaction", strconv.FormatInt(id, 10))
	}
	return tx, nil
}

func (r *transactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`
	tx, err := scanTransaction(r.pool.QueryRow(ctx, query, reference))
	if err != nil {
		return nil, notFound(err, "transaction", reference)
	}
	return tx, nil
}

func (r *transactionRepo) GetByProviderReference(ctx context.Context, provider, providerRef string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE provider = $1 AND provider_reference = $2`
	tx, err := scanTransaction(r.pool.QueryRow(ctx, query, provider, providerRef))
	if err != nil {
		return nil, notFound(err, "transaction", provider+"/"+providerRef)
	}
	return tx, nil
}

func (r *transactionRepo) ListOpenOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status IN ('pending', 'processing')
		  AND (tx_hash IS NOT NULL OR provider_reference IS NOT NULL)
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, time.Now().Add(-age), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *transactionRepo) AttachHash(ctx context.Context, id int64, hash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET tx_hash = COALESCE(tx_hash, $2), updated_at = NOW()
		WHERE id = $1
	`, id, hash)
	if err != nil {
		return fmt.Errorf("failed to attach hash: %w", err)
	}
	return nil
}

func (r *transactionRepo) AttachProviderReference(ctx context.Context, id int64, provider, providerRef string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET provider = $2, provider_reference = $3, updated_at = NOW()
		WHERE id = $1
	`, id, provider, providerRef)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("provider reference %s/%s already used: %w", provider, providerRef, err)
		}
		return fmt.Errorf("failed to attach provider reference: %w", err)
	}
	return nil
}

func updateTransactionStatus(ctx context.Context, q querier, id int64, upd *domain.StatusUpdate) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE transactions
		SET status = $2,
		    tx_hash = COALESCE(tx_hash, $3),
		    failure_reason = COALESCE($4, failure_reason),
		    metadata = metadata || $5::jsonb,
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($6)
	`, id, upd.Status, upd.TxHash, upd.FailureReason, marshalMetadata(upd.Metadata), allowedSources(upd.Status))
	if err != nil {
		return false, fmt.Errorf("failed to update transaction status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, id int64, upd *domain.StatusUpdate) (bool, error) {
	return updateTransactionStatus(ctx, r.pool, id, upd)
}

func (r *transactionRepo) CreateWithRemittance(ctx context.Context, tx *domain.Transaction, rem *domain.Remittance) error {
	dbTx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	if err := insertTransaction(ctx, dbTx, tx); err != nil {
		return err
	}
	if rem != nil {
		rem.TransactionID = tx.ID
		if err := insertRemittance(ctx, dbTx, rem); err != nil {
			return err
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}

func (r *transactionRepo) SettleWithRemittance(ctx context.Context, txID int64, upd *domain.StatusUpdate, remittanceID int64, remUpd *domain.StatusUpdate) (bool, error) {
	dbTx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	applied, err := updateTransactionStatus(ctx, dbTx, txID, upd)
	if err != nil || !applied {
		return false, err
	}
	if _, err := updateRemittanceStatus(ctx, dbTx, remittanceID, remUpd); err != nil {
		return false, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return true, nil
}

func (r *transactionRepo) SettleDeposit(ctx context.Context, txID int64, upd *domain.StatusUpdate, credit decimal.Decimal) (bool, error) {
	dbTx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	applied, err := updateTransactionStatus(ctx, dbTx, txID, upd)
	if err != nil || !applied {
		return false, err
	}
	if upd.Status == domain.StatusCompleted {
		_, err = dbTx.Exec(ctx, `
			UPDATE wallets w
			SET credited_total = w.credited_total + $2
			FROM transactions t
			WHERE t.id = $1 AND w.user_id = t.user_id
		`, txID, credit.String())
		if err != nil {
			return false, fmt.Errorf("failed to credit wallet: %w", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit deposit: %w", err)
	}
	return true, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx                                                         domain.Transaction
		amountStr, settlementStr, serviceStr, networkStr, totalStr string
		metadataJSON                                               []byte
	)

	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Type,
		&amountStr,
		&tx.Currency,
		&settlementStr,
		&tx.Ledger,
		&tx.Status,
		&tx.Reference,
		&tx.TxHash,
		&tx.FromAddress,
		&tx.ToAddress,
		&serviceStr,
		&networkStr,
		&totalStr,
		&tx.FailureReason,
		&tx.Provider,
		&tx.ProviderReference,
		&metadataJSON,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Amount = parseDecimal(amountStr)
	tx.SettlementAmount = parseDecimal(settlementStr)
	tx.ServiceFee = parseDecimal(serviceStr)
	tx.NetworkFee = parseDecimal(networkStr)
	tx.TotalFee = parseDecimal(totalStr)

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return &tx, nil
}
