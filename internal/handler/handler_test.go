package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"remittance-service/internal/domain"
	"remittance-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockTransfers struct{ mock.Mock }

func (m *mockTransfers) QuoteTransfer(ctx context.Context, userID string, req *domain.TransferRequest) (*domain.Quote, error) {
	args := m.Called(ctx, userID, req)
	q, _ := args.Get(0).(*domain.Quote)
	return q, args.Error(1)
}

func (m *mockTransfers) InitiateTransfer(ctx context.Context, userID string, req *domain.TransferRequest) (*domain.TransferResult, error) {
	args := m.Called(ctx, userID, req)
	res, _ := args.Get(0).(*domain.TransferResult)
	return res, args.Error(1)
}

func (m *mockTransfers) GetTransfer(ctx context.Context, userID, reference string) (*usecase.TransferDetails, error) {
	args := m.Called(ctx, userID, reference)
	details, _ := args.Get(0).(*usecase.TransferDetails)
	return details, args.Error(1)
}

type mockWebhooks struct{ mock.Mock }

func (m *mockWebhooks) ApplyWebhook(ctx context.Context, providerName string, headers http.Header, body []byte) (*usecase.WebhookResult, error) {
	args := m.Called(ctx, providerName, headers, body)
	res, _ := args.Get(0).(*usecase.WebhookResult)
	return res, args.Error(1)
}

type response struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var out response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(WithUserID(r.Context(), userID))
}

func TestInitiateTransferStatusCodes(t *testing.T) {
	tests := []struct {
		name    string
		result  *domain.TransferResult
		err     error
		code    int
		message string
	}{
		{
			name:   "completed",
			result: &domain.TransferResult{TransactionID: 1, Reference: "RMT-1", Status: domain.StatusCompleted, Message: "transfer completed"},
			code:   http.StatusOK, message: "transfer completed",
		},
		{
			name:   "pending",
			result: &domain.TransferResult{TransactionID: 1, Reference: "RMT-1", Status: domain.StatusPending, Message: "transfer submitted, awaiting confirmation"},
			code:   http.StatusAccepted, message: "transfer submitted, awaiting confirmation",
		},
		{
			name:   "failed after submission",
			result: &domain.TransferResult{TransactionID: 1, Reference: "RMT-1", Status: domain.StatusFailed, Message: "transfer failed, reference #RMT-1"},
			code:   http.StatusOK, message: "transfer failed, reference #RMT-1",
		},
		{
			name: "below minimum",
			err:  &domain.LimitError{Message: "Minimum transfer amount is $20 USD"},
			code: http.StatusUnprocessableEntity, message: "Minimum transfer amount is $20 USD",
		},
		{
			name: "validation",
			err:  &domain.ValidationError{Field: "recipient_address", Message: "is not a valid address"},
			code: http.StatusBadRequest, message: "recipient_address: is not a valid address",
		},
		{
			name: "insufficient balance",
			err:  &domain.InsufficientBalanceError{Required: decimal.NewFromInt(420), Available: decimal.NewFromInt(10), Asset: "XLM"},
			code: http.StatusUnprocessableEntity, message: "insufficient balance: required 420 XLM, available 10 XLM",
		},
		{
			name: "wallet busy",
			err:  domain.ErrLockNotAcquired,
			code: http.StatusConflict, message: domain.ErrLockNotAcquired.Error(),
		},
		{
			name: "internal errors stay generic",
			err:  errors.New("pq: connection refused"),
			code: http.StatusInternalServerError, message: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockTransfers{}
			svc.On("InitiateTransfer", mock.Anything, "u1", mock.MatchedBy(func(req *domain.TransferRequest) bool {
				return req.Type == domain.TransferTypeCrypto && req.Amount.Equal(decimal.NewFromInt(100))
			})).Return(tt.result, tt.err)

			h := NewTransferHandler(svc, zap.NewNop())
			body := `{"transfer_type":"crypto","amount":"100","currency":"USD","recipient_address":"GABC"}`
			req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(body)), "u1")
			rec := httptest.NewRecorder()

			h.Initiate(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			out := decode(t, rec)
			assert.Equal(t, tt.message, out.Message)
			if tt.result != nil {
				assert.Equal(t, tt.result.Reference, out.Data["reference"])
				assert.Equal(t, string(tt.result.Status), out.Data["status"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestInitiateTransferRejectsMalformedBody(t *testing.T) {
	svc := &mockTransfers{}
	h := NewTransferHandler(svc, zap.NewNop())

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(`{"amount":`)), "u1")
	rec := httptest.NewRecorder()
	h.Initiate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "InitiateTransfer", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetTransfer(t *testing.T) {
	hash := "abc123"
	svc := &mockTransfers{}
	svc.On("GetTransfer", mock.Anything, "u1", "RMT-1").Return(&usecase.TransferDetails{
		Transaction: &domain.Transaction{ID: 9, Reference: "RMT-1", Status: domain.StatusCompleted, TxHash: &hash},
		Remittance:  &domain.Remittance{ID: 10, Status: domain.StatusProcessing},
	}, nil)
	svc.On("GetTransfer", mock.Anything, "u1", "RMT-2").Return(nil, &domain.NotFoundError{Resource: "transaction", Key: "RMT-2"})

	h := NewTransferHandler(svc, zap.NewNop())
	r := chi.NewRouter()
	r.Get("/api/v1/transfers/{reference}", h.Get)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/transfers/RMT-1", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "abc123", out.Data["tx_hash"])
	assert.Equal(t, "processing", out.Data["remittance"].(map[string]interface{})["status"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/transfers/RMT-2", nil), "u1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleWebhook(t *testing.T) {
	tests := []struct {
		name    string
		result  *usecase.WebhookResult
		err     error
		code    int
		message string
	}{
		{"applied", &usecase.WebhookResult{Applied: true, Reference: "DEP-1", Message: "Webhook processed"}, nil, http.StatusOK, "Webhook processed"},
		{"replay", &usecase.WebhookResult{Reference: "DEP-1", Message: "Webhook already processed"}, nil, http.StatusOK, "Webhook already processed"},
		{"bad signature", nil, &domain.SignatureError{Provider: "linkio"}, http.StatusUnauthorized, "invalid signature"},
		{"unknown reference", nil, &domain.NotFoundError{Resource: "transaction", Key: "linkio/x"}, http.StatusBadRequest, "transaction not found: linkio/x"},
		{"store down", nil, errors.New("conn reset"), http.StatusBadRequest, "webhook could not be processed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockWebhooks{}
			svc.On("ApplyWebhook", mock.Anything, "linkio", mock.Anything, []byte(`{"event":"x"}`)).Return(tt.result, tt.err)

			h := NewWebhookHandler(svc, []string{"linkio"}, 10, 10, zap.NewNop())
			r := chi.NewRouter()
			r.Post("/api/v1/webhooks/{provider}", h.HandleWebhook)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/LinkIO", strings.NewReader(`{"event":"x"}`)))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.message, decode(t, rec).Message)
		})
	}
}

func TestWebhookRateLimitedPerProvider(t *testing.T) {
	svc := &mockWebhooks{}
	svc.On("ApplyWebhook", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&usecase.WebhookResult{Message: "Webhook acknowledged"}, nil)

	h := NewWebhookHandler(svc, []string{"moonpay", "yellowcard"}, 0.001, 1, zap.NewNop())
	r := chi.NewRouter()
	r.Post("/api/v1/webhooks/{provider}", h.HandleWebhook)

	send := func(provider string) int {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/"+provider, strings.NewReader(`{}`)))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("moonpay"))
	assert.Equal(t, http.StatusTooManyRequests, send("moonpay"))
	assert.Equal(t, http.StatusOK, send("yellowcard"))

	// arbitrary path values share one bucket and never add limiters
	assert.Equal(t, http.StatusOK, send("unknown-1"))
	assert.Equal(t, http.StatusTooManyRequests, send("unknown-2"))
	assert.Len(t, h.limiters, 2)
}

func TestHealth(t *testing.T) {
	ok := NewHealthHandler(map[string]Check{
		"postgres": func(context.Context) error { return nil },
	})
	rec := httptest.NewRecorder()
	ok.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := NewHealthHandler(map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	rec = httptest.NewRecorder()
	down.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
