package flutterwave

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"remittance-service/internal/domain"
	"remittance-service/internal/provider"
	"remittance-service/internal/security"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const transferWebhook = `{"event":"transfer.completed","data":{"id":4012,"reference":"RMT-7","status":"FAILED","amount":155000,"currency":"NGN","complete_message":"DISBURSE FAILED: Insufficient funds in customer wallet"}}`

func TestParseWebhookVerifHash(t *testing.T) {
	p := New(provider.Config{WebhookSecret: "hash-1"}, zap.NewNop())
	body := []byte(transferWebhook)

	h := http.Header{}
	h.Set(HashHeader, "hash-1")

	ev, err := p.ParseWebhook(h, body)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookFailed, ev.Outcome)
	assert.Equal(t, "4012", ev.ProviderReference)
	assert.Equal(t, "RMT-7", ev.Reference)
	assert.Contains(t, ev.Reason, "Insufficient funds")
}

func TestParseWebhookSignatureChecks(t *testing.T) {
	p := New(provider.Config{WebhookSecret: "hash-1"}, zap.NewNop())
	body := []byte(transferWebhook)
	var sigErr *domain.SignatureError

	h := http.Header{}
	h.Set(HashHeader, "hash-2")
	_, err := p.ParseWebhook(h, body)
	assert.True(t, errors.As(err, &sigErr))

	h.Set(HashHeader, "hash-1")
	h.Set(SignatureHeader, "invalid")
	_, err = p.ParseWebhook(h, body)
	assert.True(t, errors.As(err, &sigErr))

	h.Set(SignatureHeader, security.Sign(security.HMACSHA256Base64, "hash-1", body))
	_, err = p.ParseWebhook(h, body)
	assert.NoError(t, err)
}

func TestCreateTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/transfers", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","message":"Transfer Queued Successfully","data":{"id":4012,"reference":"RMT-7","status":"NEW"}}`))
	}))
	defer srv.Close()

	p := New(provider.Config{BaseURL: srv.URL, APIKey: "k"}, zap.NewNop())
	resp, err := p.CreateTransaction(context.Background(), &domain.ProviderRequest{
		Reference:     "RMT-7",
		Amount:        decimal.RequireFromString("155000"),
		Currency:      "ngn",
		BankCode:      "044",
		AccountNumber: "0690000031",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "4012", resp.Reference)
	assert.Equal(t, "Transfer Queued Successfully", resp.Message)
}
