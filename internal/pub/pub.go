// internal/pub/pub.go
package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"remittance-service/internal/domain"
	"remittance-service/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	TransactionEventsChannel = "transaction_events"
)

type TransactionEventPublisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewTransactionEventPublisher(rdb *redis.Client, logger *zap.Logger) *TransactionEventPublisher {
	return &TransactionEventPublisher{rdb: rdb, logger: logger}
}

// PublishTransactionEvent publishes a status transition to redis subscribers
func (p *TransactionEventPublisher) PublishTransactionEvent(ctx context.Context, event *domain.TransactionEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, TransactionEventsChannel, payload).Err(); err != nil {
		metrics.PublishErrors.WithLabelValues("redis").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("transaction event published",
		zap.String("event_type", event.EventType),
		zap.String("reference", event.Reference),
		zap.String("user_id", event.UserID),
	)
	return nil
}
