package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"remittance-service/internal/domain"
	"remittance-service/internal/handler"
	"remittance-service/internal/usecase"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubRecipients struct{ lastUser string }

func (s *stubRecipients) Create(_ context.Context, userID string, req *domain.RecipientRequest) (*domain.Recipient, error) {
	s.lastUser = userID
	return &domain.Recipient{ID: 1, UserID: userID, Name: req.Name}, nil
}

func (s *stubRecipients) List(_ context.Context, userID string) ([]*domain.Recipient, error) {
	s.lastUser = userID
	return nil, nil
}

type stubWebhooks struct{ provider string }

func (s *stubWebhooks) ApplyWebhook(_ context.Context, providerName string, _ http.Header, _ []byte) (*usecase.WebhookResult, error) {
	s.provider = providerName
	return &usecase.WebhookResult{Message: "Webhook acknowledged"}, nil
}

func newTestRouter(recipients *stubRecipients, webhooks *stubWebhooks) http.Handler {
	logger := zap.NewNop()
	return SetupRoutes(Handlers{
		Transfers:  handler.NewTransferHandler(nil, logger),
		Wallets:    handler.NewWalletHandler(nil, nil, logger),
		Recipients: handler.NewRecipientHandler(recipients, logger),
		Webhooks:   handler.NewWebhookHandler(webhooks, []string{"linkio"}, 100, 100, logger),
		Health:     handler.NewHealthHandler(nil),
	}, Options{}, logger)
}

func TestUserRoutesRequireIdentity(t *testing.T) {
	recipients := &stubRecipients{}
	r := newTestRouter(recipients, &stubWebhooks{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/recipients", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recipients", nil)
	req.Header.Set(UserIDHeader, "u42")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u42", recipients.lastUser)
}

func TestWebhookRouteIsPublic(t *testing.T) {
	webhooks := &stubWebhooks{}
	r := newTestRouter(&stubRecipients{}, webhooks)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/flutterwave", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "flutterwave", webhooks.provider)
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(&stubRecipients{}, &stubWebhooks{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
