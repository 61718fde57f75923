package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"remittance-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string { return s.name }
func (s stubProvider) CreateTransaction(context.Context, *domain.ProviderRequest) (*domain.ProviderResponse, error) {
	return nil, nil
}
func (s stubProvider) VerifyTransaction(context.Context, string) (domain.WebhookOutcome, error) {
	return domain.WebhookPending, nil
}
func (s stubProvider) ParseWebhook(http.Header, []byte) (*domain.WebhookEvent, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubProvider{"moonpay"}, stubProvider{"Linkio"})

	p, err := r.Get(" MoonPay ")
	require.NoError(t, err)
	assert.Equal(t, "moonpay", p.Name())

	_, err = r.Get("paypal")
	assert.True(t, errors.Is(err, domain.ErrProviderNotFound))

	assert.Equal(t, []string{"linkio", "moonpay"}, r.Names())
}

func TestClientDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/orders", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "RMT-1", body["reference"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ord_1","status":"pending"}`))
	}))
	defer srv.Close()

	c := NewClient("linkio", Config{BaseURL: srv.URL + "/", APIKey: "key-1"}, zap.NewNop())

	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	raw, err := c.Do(context.Background(), http.MethodPost, "/v1/orders", map[string]string{"reference": "RMT-1"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ord_1", out.ID)
	assert.Equal(t, "pending", raw["status"])
}

func TestClientDoAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid account"}`))
	}))
	defer srv.Close()

	c := NewClient("flutterwave", Config{BaseURL: srv.URL, APIKey: "k"}, zap.NewNop())
	_, err := c.Do(context.Background(), http.MethodPost, "/v3/transfers", nil, nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "invalid account", apiErr.Message)
}

func TestParseAmount(t *testing.T) {
	assert.Nil(t, ParseAmount(""))
	assert.Nil(t, ParseAmount("abc"))
	assert.Equal(t, "12.5", ParseAmount("12.50").String())
}

func TestOutcomeFrom(t *testing.T) {
	completed := []string{"completed", "successful"}
	failed := []string{"failed"}

	assert.Equal(t, domain.WebhookCompleted, OutcomeFrom(" SUCCESSFUL", completed, failed))
	assert.Equal(t, domain.WebhookFailed, OutcomeFrom("Failed", completed, failed))
	assert.Equal(t, domain.WebhookPending, OutcomeFrom("processing", completed, failed))
}
