// internal/usecase/settle.go
package usecase

import (
	"context"
	"fmt"

	"remittance-service/internal/domain"
	"remittance-service/internal/repository"

	"go.uber.org/zap"
)

// settler applies terminal transitions for the orchestrator, the
// reconciliation worker and the webhook reconciler alike. Every write is
// guarded in SQL, so a transition onto a terminal row reports applied=false.
type settler struct {
	txRepo  repository.TransactionRepository
	remRepo repository.RemittanceRepository
	events  EventPublisher
	payouts PayoutNotifier
	logger  *zap.Logger
}

func (s *settler) complete(ctx context.Context, tx *domain.Transaction, hash *string, metadata map[string]interface{}, source string) (bool, error) {
	upd := &domain.StatusUpdate{
		Status:   domain.StatusCompleted,
		TxHash:   hash,
		Metadata: metadata,
	}

	var (
		applied bool
		err     error
		rem     *domain.Remittance
	)

	switch tx.Type {
	case domain.TransactionTypeRemittance:
		rem, err = s.remRepo.GetByTransactionID(ctx, tx.ID)
		if err != nil {
			return false, fmt.Errorf("failed to load remittance: %w", err)
		}
		applied, err = s.txRepo.SettleWithRemittance(ctx, tx.ID, upd, rem.ID,
			&domain.StatusUpdate{Status: domain.StatusProcessing})

	case domain.TransactionTypeDeposit:
		applied, err = s.txRepo.SettleDeposit(ctx, tx.ID, upd, tx.SettlementAmount)

	default:
		applied, err = s.txRepo.UpdateStatus(ctx, tx.ID, upd)
	}
	if err != nil {
		return false, err
	}

	if !applied {
		// the transaction may have been completed before its remittance was promoted
		if rem != nil && rem.Status == domain.StatusPending {
			return s.promoteRemittance(ctx, tx, rem)
		}
		return false, nil
	}

	tx.Status = domain.StatusCompleted
	if hash != nil && tx.TxHash == nil {
		tx.TxHash = hash
	}
	s.publish(ctx, tx, source)

	if rem != nil {
		rem.Status = domain.StatusProcessing
		s.notifyPayout(ctx, tx, rem)
	}
	return true, nil
}

func (s *settler) fail(ctx context.Context, tx *domain.Transaction, reason string, metadata map[string]interface{}, source string) (bool, error) {
	upd := &domain.StatusUpdate{
		Status:        domain.StatusFailed,
		FailureReason: &reason,
		Metadata:      metadata,
	}

	var (
		applied bool
		err     error
	)

	if tx.Type == domain.TransactionTypeRemittance {
		rem, lerr := s.remRepo.GetByTransactionID(ctx, tx.ID)
		if lerr != nil {
			return false, fmt.Errorf("failed to load remittance: %w", lerr)
		}
		applied, err = s.txRepo.SettleWithRemittance(ctx, tx.ID, upd, rem.ID,
			&domain.StatusUpdate{Status: domain.StatusFailed, FailureReason: &reason})
	} else {
		applied, err = s.txRepo.UpdateStatus(ctx, tx.ID, upd)
	}
	if err != nil || !applied {
		return applied, err
	}

	tx.Status = domain.StatusFailed
	tx.FailureReason = &reason
	s.publish(ctx, tx, source)
	return true, nil
}

func (s *settler) promoteRemittance(ctx context.Context, tx *domain.Transaction, rem *domain.Remittance) (bool, error) {
	current, err := s.txRepo.GetByID(ctx, tx.ID)
	if err != nil {
		return false, err
	}
	if current.Status != domain.StatusCompleted {
		return false, nil
	}

	applied, err := s.remRepo.UpdateStatus(ctx, rem.ID, &domain.StatusUpdate{Status: domain.StatusProcessing})
	if err != nil || !applied {
		return applied, err
	}
	rem.Status = domain.StatusProcessing
	s.notifyPayout(ctx, current, rem)
	return true, nil
}

func (s *settler) publish(ctx context.Context, tx *domain.Transaction, source string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionEvent(ctx, domain.NewTransactionEvent(tx, tx.Status, source)); err != nil {
		s.logger.Warn("failed to publish transaction event",
			zap.String("reference", tx.Reference),
			zap.Error(err),
		)
	}
}

func (s *settler) notifyPayout(ctx context.Context, tx *domain.Transaction, rem *domain.Remittance) {
	if s.payouts == nil {
		return
	}
	payout := &domain.PayoutReady{
		RemittanceID:  rem.ID,
		Reference:     rem.Reference,
		UserID:        rem.UserID,
		Amount:        rem.Amount,
		Currency:      rem.Currency,
		BankCode:      rem.BankCode,
		AccountNumber: rem.AccountNumber,
		Narration:     rem.Narration,
	}
	if tx.TxHash != nil {
		payout.TxHash = *tx.TxHash
	}
	if err := s.payouts.NotifyPayoutReady(ctx, payout); err != nil {
		s.logger.Error("failed to notify payout ready",
			zap.String("reference", rem.Reference),
			zap.Error(err),
		)
	}
}
