package yellowcard

import (
	"context"
	"encoding/json"
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

func TestParseWebhook(t *testing.T) {
	p := New(provider.Config{WebhookSecret: "yc"}, zap.NewNop())
	body := []byte(`{"id":"pay_1","sequenceId":"RMT-1","event":"PAYMENT.COMPLETE","amount":"155000","currency":"ngn"}`)

	h := http.Header{}
	h.Set(SignatureHeader, security.Sign(security.HMACSHA256Base64, "yc", body))

	ev, err := p.ParseWebhook(h, body)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookCompleted, ev.Outcome)
	assert.Equal(t, "RMT-1", ev.Reference)
	assert.Equal(t, "NGN", ev.Currency)
	assert.Equal(t, "pay_1:complete", ev.EventID)

	h.Set(SignatureHeader, "bm9wZQ==")
	_, err = p.ParseWebhook(h, body)
	var sigErr *domain.SignatureError
	assert.True(t, errors.As(err, &sigErr))
}

func TestCreateTransactionSendsBankDestination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req paymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "RMT-5", req.SequenceID)
		assert.Equal(t, "0123456789", req.Destination.AccountNumber)
		assert.Equal(t, "058", req.Destination.NetworkID)
		_, _ = w.Write([]byte(`{"id":"pay_5","status":"processing"}`))
	}))
	defer srv.Close()

	p := New(provider.Config{BaseURL: srv.URL, APIKey: "k"}, zap.NewNop())
	resp, err := p.CreateTransaction(context.Background(), &domain.ProviderRequest{
		Reference:     "RMT-5",
		Amount:        decimal.NewFromInt(155000),
		Currency:      "NGN",
		BankCode:      "058",
		AccountNumber: "0123456789",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_5", resp.Reference)
}
