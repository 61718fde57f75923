// internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"remittance-service/internal/chains"
	"remittance-service/internal/domain"
	"remittance-service/internal/metrics"
	"remittance-service/internal/provider"
	"remittance-service/internal/repository"

	"go.uber.org/zap"
)

const verificationFailedReason = "verification failed"

// ReconcileUsecase re-checks an open transaction against the source of
// truth: the ledger when a hash exists, otherwise the payment provider.
type ReconcileUsecase struct {
	txRepo    repository.TransactionRepository
	remRepo   repository.RemittanceRepository
	ledgers   *chains.Registry
	providers *provider.Registry
	settle    *settler
	logger    *zap.Logger
}

func NewReconcileUsecase(
	txRepo repository.TransactionRepository,
	remRepo repository.RemittanceRepository,
	ledgers *chains.Registry,
	providers *provider.Registry,
	events EventPublisher,
	payouts PayoutNotifier,
	logger *zap.Logger,
) *ReconcileUsecase {
	return &ReconcileUsecase{
		txRepo:    txRepo,
		remRepo:   remRepo,
		ledgers:   ledgers,
		providers: providers,
		settle: &settler{
			txRepo:  txRepo,
			remRepo: remRepo,
			events:  events,
			payouts: payouts,
			logger:  logger,
		},
		logger: logger,
	}
}

// Reconcile is idempotent. Terminal transactions are a no-op (apart from
// promoting a remittance left pending), and an unknown ledger answer
// never flips state.
func (uc *ReconcileUsecase) Reconcile(ctx context.Context, transactionID int64) error {
	tx, err := uc.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.ReconcileTotal.WithLabelValues("not_found").Inc()
			uc.logger.Warn("reconcile: transaction not found", zap.Int64("transaction_id", transactionID))
			return nil
		}
		metrics.ReconcileTotal.WithLabelValues("error").Inc()
		return err
	}

	log := uc.logger.With(
		zap.Int64("transaction_id", tx.ID),
		zap.String("reference", tx.Reference),
	)

	if tx.Status.IsTerminal() {
		if tx.Status == domain.StatusCompleted && tx.Type == domain.TransactionTypeRemittance {
			if err := uc.promoteIfPending(ctx, tx); err != nil {
				return err
			}
		}
		metrics.ReconcileTotal.WithLabelValues("noop").Inc()
		log.Debug("reconcile: already terminal", zap.String("status", string(tx.Status)))
		return nil
	}

	switch {
	case tx.TxHash != nil:
		return uc.reconcileLedger(ctx, log, tx)
	case tx.Provider != nil && tx.ProviderReference != nil:
		return uc.reconcileProvider(ctx, log, tx)
	default:
		metrics.ReconcileTotal.WithLabelValues("unknown").Inc()
		log.Warn("reconcile: nothing to check yet, left pending")
		return nil
	}
}

func (uc *ReconcileUsecase) reconcileLedger(ctx context.Context, log *zap.Logger, tx *domain.Transaction) error {
	ledger, err := uc.ledgers.Get(tx.Ledger)
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues("error").Inc()
		return err
	}

	status, err := ledger.GetTransactionStatus(ctx, *tx.TxHash)
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues("error").Inc()
		log.Warn("reconcile: ledger unreachable, left pending", zap.Error(err))
		return fmt.Errorf("ledger status for %s: %w", tx.Reference, err)
	}

	metadata := map[string]interface{}{"reconciled_ledger_status": string(status)}
	switch status {
	case domain.LedgerTxCompleted:
		applied, err := uc.settle.complete(ctx, tx, tx.TxHash, metadata, "reconcile")
		return uc.finish(log, "completed", applied, err)
	case domain.LedgerTxFailed:
		applied, err := uc.settle.fail(ctx, tx, verificationFailedReason, metadata, "reconcile")
		return uc.finish(log, "failed", applied, err)
	default:
		metrics.ReconcileTotal.WithLabelValues("unknown").Inc()
		log.Info("reconcile: ledger does not know the hash yet, left pending", zap.String("tx_hash", *tx.TxHash))
		return nil
	}
}

func (uc *ReconcileUsecase) reconcileProvider(ctx context.Context, log *zap.Logger, tx *domain.Transaction) error {
	p, err := uc.providers.Get(*tx.Provider)
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues("error").Inc()
		return err
	}

	outcome, err := p.VerifyTransaction(ctx, *tx.ProviderReference)
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues("error").Inc()
		log.Warn("reconcile: provider unreachable, left pending", zap.String("provider", p.Name()), zap.Error(err))
		return fmt.Errorf("provider status for %s: %w", tx.Reference, err)
	}

	metadata := map[string]interface{}{"reconciled_provider_status": string(outcome)}
	switch outcome {
	case domain.WebhookCompleted:
		applied, err := uc.settle.complete(ctx, tx, nil, metadata, "reconcile")
		return uc.finish(log, "completed", applied, err)
	case domain.WebhookFailed:
		applied, err := uc.settle.fail(ctx, tx, verificationFailedReason, metadata, "reconcile")
		return uc.finish(log, "failed", applied, err)
	default:
		metrics.ReconcileTotal.WithLabelValues("unknown").Inc()
		return nil
	}
}

func (uc *ReconcileUsecase) promoteIfPending(ctx context.Context, tx *domain.Transaction) error {
	rem, err := uc.remRepo.GetByTransactionID(ctx, tx.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if rem.Status != domain.StatusPending {
		return nil
	}
	_, err = uc.settle.promoteRemittance(ctx, tx, rem)
	return err
}

func (uc *ReconcileUsecase) finish(log *zap.Logger, result string, applied bool, err error) error {
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues("error").Inc()
		return err
	}
	if !applied {
		metrics.ReconcileTotal.WithLabelValues("noop").Inc()
		return nil
	}
	metrics.ReconcileTotal.WithLabelValues(result).Inc()
	log.Info("reconcile: transaction settled", zap.String("status", result))
	return nil
}
