// internal/handler/webhook_handler.go
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"remittance-service/internal/domain"
	"remittance-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type WebhookService interface {
	ApplyWebhook(ctx context.Context, providerName string, headers http.Header, body []byte) (*usecase.WebhookResult, error)
}

// WebhookHandler receives provider callbacks. Each registered provider gets
// its own inbound token bucket; unregistered path values share one.
type WebhookHandler struct {
	webhooks     WebhookService
	limiters     map[string]*rate.Limiter
	unregistered *rate.Limiter
	logger       *zap.Logger
}

func NewWebhookHandler(webhooks WebhookService, providers []string, perSecond float64, burst int, logger *zap.Logger) *WebhookHandler {
	if perSecond <= 0 {
		perSecond = 20
	}
	if burst <= 0 {
		burst = 40
	}
	limiters := make(map[string]*rate.Limiter, len(providers))
	for _, name := range providers {
		limiters[strings.ToLower(name)] = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return &WebhookHandler{
		webhooks:     webhooks,
		limiters:     limiters,
		unregistered: rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:       logger,
	}
}

// limiter never grows the map; it is fixed at construction
func (h *WebhookHandler) limiter(provider string) *rate.Limiter {
	if l, ok := h.limiters[provider]; ok {
		return l
	}
	return h.unregistered
}

// HandleWebhook answers 200 on applied, replayed or pending events; 401 on a
// bad signature; 400 for anything it could not apply.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	providerName := strings.ToLower(chi.URLParam(r, "provider"))

	if !h.limiter(providerName).Allow() {
		h.logger.Warn("webhook rate limited", zap.String("provider", providerName))
		sendError(w, r, http.StatusTooManyRequests, "too many requests")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Warn("failed to read webhook body", zap.String("provider", providerName), zap.Error(err))
		sendError(w, r, http.StatusBadRequest, "failed to read request body")
		return
	}

	h.logger.Info("received webhook",
		zap.String("provider", providerName),
		zap.String("remote_addr", r.RemoteAddr),
		zap.Int("payload_size", len(body)))

	result, err := h.webhooks.ApplyWebhook(r.Context(), providerName, r.Header, body)
	if err != nil {
		var sigErr *domain.SignatureError
		switch code, message := statusFor(err); {
		case errors.As(err, &sigErr):
			sendError(w, r, http.StatusUnauthorized, "invalid signature")
		case code == http.StatusInternalServerError:
			h.logger.Error("webhook processing failed", zap.String("provider", providerName), zap.Error(err))
			sendError(w, r, http.StatusBadRequest, "webhook could not be processed")
		default:
			sendError(w, r, http.StatusBadRequest, message)
		}
		return
	}

	sendSuccess(w, r, http.StatusOK, result.Message, map[string]interface{}{
		"reference": result.Reference,
		"applied":   result.Applied,
	})
}
