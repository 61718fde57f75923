// internal/worker/scheduler.go
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const ReconcileQueueKey = "reconcile:due"

// Reconciler re-checks one transaction against the ledger or provider
type Reconciler interface {
	Reconcile(ctx context.Context, transactionID int64) error
}

// RedisScheduler keeps due reconciliations in a sorted set scored by the
// due unix time. Re-scheduling an id already queued only moves its due time.
type RedisScheduler struct {
	rdb    *redis.Client
	key    string
	logger *zap.Logger
}

func NewRedisScheduler(rdb *redis.Client, logger *zap.Logger) *RedisScheduler {
	return &RedisScheduler{rdb: rdb, key: ReconcileQueueKey, logger: logger}
}

func (s *RedisScheduler) Schedule(ctx context.Context, transactionID int64, delay time.Duration) error {
	due := time.Now().Add(delay)
	err := s.rdb.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(due.Unix()),
		Member: strconv.FormatInt(transactionID, 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}
	s.logger.Debug("reconciliation scheduled",
		zap.Int64("transaction_id", transactionID),
		zap.Time("due", due),
	)
	return nil
}

// Claim pops up to limit ids due at now. Only the caller whose ZREM removes
// a member gets it, so each scheduling runs once across processes.
func (s *RedisScheduler) Claim(ctx context.Context, now time.Time, limit int64) ([]int64, error) {
	members, err := s.rdb.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read reconciliation queue: %w", err)
	}

	claimed := make([]int64, 0, len(members))
	for _, m := range members {
		removed, err := s.rdb.ZRem(ctx, s.key, m).Result()
		if err != nil {
			return claimed, fmt.Errorf("failed to claim %s: %w", m, err)
		}
		if removed == 0 {
			continue
		}
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			s.logger.Warn("dropping malformed queue member", zap.String("member", m))
			continue
		}
		claimed = append(claimed, id)
	}
	return claimed, nil
}

// MemoryScheduler runs reconciliations on in-process timers. Pending timers
// are lost on restart; the stale sweeper picks those transactions up again.
type MemoryScheduler struct {
	reconciler Reconciler
	timeout    time.Duration
	logger     *zap.Logger

	mu     sync.Mutex
	timers map[int64]*time.Timer
	closed bool
}

func NewMemoryScheduler(reconciler Reconciler, timeout time.Duration, logger *zap.Logger) *MemoryScheduler {
	return &MemoryScheduler{
		reconciler: reconciler,
		timeout:    timeout,
		logger:     logger,
		timers:     make(map[int64]*time.Timer),
	}
}

func (s *MemoryScheduler) Schedule(_ context.Context, transactionID int64, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("scheduler stopped")
	}
	if t, ok := s.timers[transactionID]; ok {
		t.Stop()
	}
	s.timers[transactionID] = time.AfterFunc(delay, func() { s.fire(transactionID) })
	return nil
}

func (s *MemoryScheduler) fire(transactionID int64) {
	s.mu.Lock()
	delete(s.timers, transactionID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.reconciler.Reconcile(ctx, transactionID); err != nil {
		s.logger.Error("reconciliation failed",
			zap.Int64("transaction_id", transactionID),
			zap.Error(err),
		)
	}
}

// Pending is the number of timers not yet fired
func (s *MemoryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *MemoryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
