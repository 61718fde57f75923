// internal/worker/reconcile_worker.go
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ReconcileWorker drains the redis reconciliation queue
type ReconcileWorker struct {
	scheduler  *RedisScheduler
	reconciler Reconciler
	interval   time.Duration
	timeout    time.Duration
	batch      int64
	logger     *zap.Logger
	stopChan   chan bool
}

func NewReconcileWorker(
	scheduler *RedisScheduler,
	reconciler Reconciler,
	interval time.Duration,
	timeout time.Duration,
	logger *zap.Logger,
) *ReconcileWorker {
	return &ReconcileWorker{
		scheduler:  scheduler,
		reconciler: reconciler,
		interval:   interval,
		timeout:    timeout,
		batch:      50,
		logger:     logger,
		stopChan:   make(chan bool),
	}
}

func (w *ReconcileWorker) Start(ctx context.Context) {
	w.logger.Info("Starting reconcile worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.runDue(ctx)

		case <-w.stopChan:
			w.logger.Info("Stopping reconcile worker")
			return

		case <-ctx.Done():
			w.logger.Info("Context cancelled, stopping reconcile worker")
			return
		}
	}
}

func (w *ReconcileWorker) runDue(ctx context.Context) {
	ids, err := w.scheduler.Claim(ctx, time.Now(), w.batch)
	if err != nil {
		w.logger.Error("failed to claim due reconciliations", zap.Error(err))
	}

	for _, id := range ids {
		runCtx, cancel := context.WithTimeout(ctx, w.timeout)
		if err := w.reconciler.Reconcile(runCtx, id); err != nil {
			w.logger.Error("reconciliation failed",
				zap.Int64("transaction_id", id),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func (w *ReconcileWorker) Stop() {
	close(w.stopChan)
}
