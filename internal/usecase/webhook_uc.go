// internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"errors"
	"net/http"

	"remittance-service/internal/domain"
	"remittance-service/internal/metrics"
	"remittance-service/internal/provider"
	"remittance-service/internal/repository"

	"go.uber.org/zap"
)

const providerFailedReason = "provider reported failure"

// WebhookResult is what the handler reports back to the provider
type WebhookResult struct {
	Applied   bool
	Reference string
	Message   string
}

type WebhookUsecase struct {
	txRepo    repository.TransactionRepository
	remRepo   repository.RemittanceRepository
	providers *provider.Registry
	settle    *settler
	logger    *zap.Logger
}

func NewWebhookUsecase(
	txRepo repository.TransactionRepository,
	remRepo repository.RemittanceRepository,
	providers *provider.Registry,
	events EventPublisher,
	payouts PayoutNotifier,
	logger *zap.Logger,
) *WebhookUsecase {
	return &WebhookUsecase{
		txRepo:    txRepo,
		remRepo:   remRepo,
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

// ApplyWebhook verifies and applies a provider webhook. A bad signature or
// an unknown reference never mutates state. Replays of a terminal
// transition are accepted as no-ops.
func (uc *WebhookUsecase) ApplyWebhook(ctx context.Context, providerName string, headers http.Header, body []byte) (*WebhookResult, error) {
	p, err := uc.providers.Get(providerName)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues("unknown", "unsupported").Inc()
		return nil, err
	}
	name := p.Name()

	event, err := p.ParseWebhook(headers, body)
	if err != nil {
		var sigErr *domain.SignatureError
		if errors.As(err, &sigErr) {
			metrics.WebhooksTotal.WithLabelValues(name, "bad_signature").Inc()
			uc.logger.Warn("webhook signature rejected",
				zap.String("provider", name),
				zap.Int("body_bytes", len(body)),
			)
			return nil, err
		}
		metrics.WebhooksTotal.WithLabelValues(name, "invalid").Inc()
		uc.logger.Warn("webhook payload rejected", zap.String("provider", name), zap.Error(err))
		return nil, &domain.ValidationError{Field: "payload", Message: err.Error()}
	}

	tx, err := uc.lookup(ctx, name, event)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues(name, "not_found").Inc()
		uc.logger.Warn("webhook for unknown transaction",
			zap.String("provider", name),
			zap.String("provider_reference", event.ProviderReference),
			zap.String("reference", event.Reference),
		)
		return nil, err
	}

	log := uc.logger.With(
		zap.String("provider", name),
		zap.String("event_id", event.EventID),
		zap.Int64("transaction_id", tx.ID),
		zap.String("reference", tx.Reference),
	)

	if event.Amount != nil && event.Currency == tx.Currency && !event.Amount.Equal(tx.Amount) {
		log.Warn("webhook amount differs from transaction",
			zap.String("webhook_amount", event.Amount.String()),
			zap.String("transaction_amount", tx.Amount.String()),
		)
	}

	metadata := map[string]interface{}{
		"webhook": map[string]interface{}{
			"provider": name,
			"event_id": event.EventID,
			"outcome":  string(event.Outcome),
			"payload":  event.Payload,
		},
	}

	var applied bool
	if tx.Type == domain.TransactionTypeRemittance {
		applied, err = uc.applyPayout(ctx, tx, event)
	} else {
		switch event.Outcome {
		case domain.WebhookCompleted:
			applied, err = uc.settle.complete(ctx, tx, nil, metadata, "webhook")
		case domain.WebhookFailed:
			reason := event.Reason
			if reason == "" {
				reason = providerFailedReason
			}
			applied, err = uc.settle.fail(ctx, tx, reason, metadata, "webhook")
		}
	}
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues(name, "error").Inc()
		log.Error("failed to apply webhook", zap.Error(err))
		return nil, err
	}

	result := &WebhookResult{Applied: applied, Reference: tx.Reference}
	switch {
	case applied:
		result.Message = "Webhook processed"
		metrics.WebhooksTotal.WithLabelValues(name, "applied").Inc()
		log.Info("webhook applied", zap.String("outcome", string(event.Outcome)))
	case event.Outcome == domain.WebhookPending:
		result.Message = "Webhook acknowledged"
		metrics.WebhooksTotal.WithLabelValues(name, "pending").Inc()
	default:
		result.Message = "Webhook already processed"
		metrics.WebhooksTotal.WithLabelValues(name, "duplicate").Inc()
		log.Info("webhook replay ignored", zap.String("status", string(tx.Status)))
	}
	return result, nil
}

// applyPayout moves the bank leg of a remittance whose on-chain leg already
// completed: processing -> completed|failed.
func (uc *WebhookUsecase) applyPayout(ctx context.Context, tx *domain.Transaction, event *domain.WebhookEvent) (bool, error) {
	rem, err := uc.remRepo.GetByTransactionID(ctx, tx.ID)
	if err != nil {
		return false, err
	}

	switch event.Outcome {
	case domain.WebhookCompleted:
		if rem.Status != domain.StatusProcessing {
			return false, nil
		}
		return uc.remRepo.UpdateStatus(ctx, rem.ID, &domain.StatusUpdate{Status: domain.StatusCompleted})
	case domain.WebhookFailed:
		if rem.Status.IsTerminal() {
			return false, nil
		}
		reason := event.Reason
		if reason == "" {
			reason = providerFailedReason
		}
		return uc.remRepo.UpdateStatus(ctx, rem.ID, &domain.StatusUpdate{Status: domain.StatusFailed, FailureReason: &reason})
	}
	return false, nil
}

func (uc *WebhookUsecase) lookup(ctx context.Context, providerName string, event *domain.WebhookEvent) (*domain.Transaction, error) {
	tx, err := uc.txRepo.GetByProviderReference(ctx, providerName, event.ProviderReference)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, domain.ErrNotFound) || event.Reference == "" {
		return nil, err
	}

	// providers echo our reference; accept it only for a transaction opened with them
	tx, rerr := uc.txRepo.GetByReference(ctx, event.Reference)
	if rerr != nil {
		return nil, rerr
	}
	if tx.Provider == nil || *tx.Provider != providerName {
		return nil, &domain.NotFoundError{Resource: "transaction", Key: providerName + "/" + event.ProviderReference}
	}
	return tx, nil
}
