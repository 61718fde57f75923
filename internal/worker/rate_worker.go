// internal/worker/rate_worker.go
package worker

import (
	"context"
	"time"

	"remittance-service/internal/metrics"
	"remittance-service/internal/rates"

	"go.uber.org/zap"
)

type rateRefresher interface {
	Refresh(ctx context.Context) error
	Current(ctx context.Context) (*rates.Table, error)
}

// RateWorker refreshes the rate table on an interval
type RateWorker struct {
	refresher rateRefresher
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan bool
}

func NewRateWorker(refresher rateRefresher, interval time.Duration, logger *zap.Logger) *RateWorker {
	return &RateWorker{
		refresher: refresher,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan bool),
	}
}

func (w *RateWorker) Start(ctx context.Context) {
	w.logger.Info("Starting rate refresh worker", zap.Duration("interval", w.interval))
	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.refresh(ctx)

		case <-w.stopChan:
			w.logger.Info("Stopping rate refresh worker")
			return

		case <-ctx.Done():
			return
		}
	}
}

func (w *RateWorker) refresh(ctx context.Context) {
	if err := w.refresher.Refresh(ctx); err != nil {
		w.logger.Warn("rate refresh failed, keeping previous table", zap.Error(err))
	}
	if table, err := w.refresher.Current(ctx); err == nil {
		metrics.RateSnapshotAge.Set(time.Since(table.AsOf()).Seconds())
	}
}

func (w *RateWorker) Stop() {
	close(w.stopChan)
}
