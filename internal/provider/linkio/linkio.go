// internal/provider/linkio/linkio.go
package linkio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"remittance-service/internal/domain"
	"remittance-service/internal/provider"
	"remittance-service/internal/security"

	"go.uber.org/zap"
)

const (
	Name            = "linkio"
	SignatureHeader = "X-Linkio-Signature"
)

var (
	completedStatuses = []string{"completed", "successful", "success"}
	failedStatuses    = []string{"failed", "cancelled", "expired"}
)

type Provider struct {
	client *provider.Client
	secret string
	logger *zap.Logger
}

func New(cfg provider.Config, logger *zap.Logger) *Provider {
	return &Provider{
		client: provider.NewClient(Name, cfg, logger),
		secret: cfg.WebhookSecret,
		logger: logger,
	}
}

func (p *Provider) Name() string { return Name }

type order struct {
	OrderID     string      `json:"order_id"`
	Reference   string      `json:"reference"`
	Status      string      `json:"status"`
	CheckoutURL string      `json:"checkout_url"`
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	Reason      string      `json:"reason"`
}

type envelope struct {
	EventID string `json:"event_id"`
	Event   string `json:"event"`
	Data    order  `json:"data"`
}

func (p *Provider) CreateTransaction(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
	body := map[string]interface{}{
		"amount":         req.Amount.String(),
		"currency":       strings.ToUpper(req.Currency),
		"asset":          req.Asset,
		"wallet_address": req.WalletAddress,
		"reference":      req.Reference,
		"callback_url":   req.CallbackURL,
	}

	var out envelope
	raw, err := p.client.Do(ctx, http.MethodPost, "/v1/onramp/orders", body, &out)
	if err != nil {
		return nil, err
	}

	return &domain.ProviderResponse{
		Success:     out.Data.OrderID != "",
		Reference:   out.Data.OrderID,
		Status:      out.Data.Status,
		RedirectURL: out.Data.CheckoutURL,
		Message:     "Linkio order created",
		RawResponse: raw,
	}, nil
}

func (p *Provider) VerifyTransaction(ctx context.Context, providerRef string) (domain.WebhookOutcome, error) {
	var out envelope
	if _, err := p.client.Do(ctx, http.MethodGet, "/v1/onramp/orders/"+url.PathEscape(providerRef), nil, &out); err != nil {
		return domain.WebhookPending, err
	}
	return provider.OutcomeFrom(out.Data.Status, completedStatuses, failedStatuses), nil
}

func (p *Provider) ParseWebhook(headers http.Header, body []byte) (*domain.WebhookEvent, error) {
	if !security.VerifySignature(security.HMACSHA256Hex, p.secret, body, headers.Get(SignatureHeader)) {
		return nil, &domain.SignatureError{Provider: Name}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("invalid linkio payload: %w", err)
	}
	payload, err := provider.DecodePayload(body)
	if err != nil {
		return nil, err
	}
	if env.Data.OrderID == "" {
		return nil, fmt.Errorf("linkio payload missing order_id")
	}

	// "order.completed" style events carry the outcome in the name when status is absent
	status := env.Data.Status
	if status == "" {
		status = strings.TrimPrefix(env.Event, "order.")
	}

	eventID := env.EventID
	if eventID == "" {
		eventID = env.Data.OrderID + ":" + provider.NormalizeStatus(status)
	}

	return &domain.WebhookEvent{
		Provider:          Name,
		EventID:           eventID,
		ProviderReference: env.Data.OrderID,
		Reference:         env.Data.Reference,
		Outcome:           provider.OutcomeFrom(status, completedStatuses, failedStatuses),
		Amount:            provider.ParseAmount(env.Data.Amount),
		Currency:          strings.ToUpper(env.Data.Currency),
		Reason:            env.Data.Reason,
		Payload:           payload,
	}, nil
}
