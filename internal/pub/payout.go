// internal/pub/payout.go
package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"remittance-service/internal/domain"
	"remittance-service/internal/metrics"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const PayoutReadyTopic = "remittance.payout.ready"

// messageWriter is the part of *kafka.Writer the notifier needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PayoutNotifier tells operations that a cash payout can be completed
type PayoutNotifier struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaWriter(brokers []string, topic string, logger *zap.Logger) *kafka.Writer {
	if topic == "" {
		topic = PayoutReadyTopic
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  5,
		BatchTimeout: 10 * time.Millisecond,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...))
		}),
	}
}

func NewPayoutNotifier(writer messageWriter, logger *zap.Logger) *PayoutNotifier {
	return &PayoutNotifier{writer: writer, logger: logger}
}

// NotifyPayoutReady is keyed by remittance reference so retries of the same
// payout land on one partition in order.
func (n *PayoutNotifier) NotifyPayoutReady(ctx context.Context, payout *domain.PayoutReady) error {
	if payout.EventID == "" {
		payout.EventID = uuid.NewString()
	}
	if payout.ReadyAt.IsZero() {
		payout.ReadyAt = time.Now()
	}

	data, err := json.Marshal(payout)
	if err != nil {
		return fmt.Errorf("failed to marshal payout: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(payout.Reference),
		Value: data,
		Time:  payout.ReadyAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(payout.EventID)},
		},
	})
	if err != nil {
		metrics.PublishErrors.WithLabelValues("kafka").Inc()
		n.logger.Error("failed to publish payout ready",
			zap.String("reference", payout.Reference),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish payout: %w", err)
	}

	n.logger.Info("payout ready published",
		zap.String("reference", payout.Reference),
		zap.Int64("remittance_id", payout.RemittanceID),
	)
	return nil
}

func (n *PayoutNotifier) Close() error {
	return n.writer.Close()
}
