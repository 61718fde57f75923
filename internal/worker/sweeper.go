// internal/worker/sweeper.go
package worker

import (
	"context"
	"time"

	"remittance-service/internal/domain"

	"go.uber.org/zap"
)

type openTransactionLister interface {
	ListOpenOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.Transaction, error)
}

type scheduler interface {
	Schedule(ctx context.Context, transactionID int64, delay time.Duration) error
}

// StaleSweeper re-queues open transactions whose scheduled check was lost
// (process restart, redis flush) or came back unknown.
type StaleSweeper struct {
	repo      openTransactionLister
	scheduler scheduler
	age       time.Duration
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan bool
}

func NewStaleSweeper(repo openTransactionLister, sched scheduler, age, interval time.Duration, logger *zap.Logger) *StaleSweeper {
	return &StaleSweeper{
		repo:      repo,
		scheduler: sched,
		age:       age,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan bool),
	}
}

func (s *StaleSweeper) Start(ctx context.Context) {
	s.logger.Info("Starting stale transaction sweeper", zap.Duration("age", s.age))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)

		case <-s.stopChan:
			s.logger.Info("Stopping stale transaction sweeper")
			return

		case <-ctx.Done():
			return
		}
	}
}

// Sweep schedules an immediate reconciliation for each stale open transaction
func (s *StaleSweeper) Sweep(ctx context.Context) int {
	txs, err := s.repo.ListOpenOlderThan(ctx, s.age, 100)
	if err != nil {
		s.logger.Error("failed to list stale transactions", zap.Error(err))
		return 0
	}

	scheduled := 0
	for _, tx := range txs {
		if err := s.scheduler.Schedule(ctx, tx.ID, 0); err != nil {
			s.logger.Error("failed to requeue transaction",
				zap.Int64("transaction_id", tx.ID),
				zap.Error(err),
			)
			continue
		}
		scheduled++
	}
	if scheduled > 0 {
		s.logger.Info("requeued stale transactions", zap.Int("count", scheduled))
	}
	return scheduled
}

func (s *StaleSweeper) Stop() {
	close(s.stopChan)
}
