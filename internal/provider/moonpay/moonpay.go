// internal/provider/moonpay/moonpay.go
package moonpay

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
	Name            = "moonpay"
	SignatureHeader = "Moonpay-Signature-V2"
)

var (
	completedStatuses = []string{"completed"}
	failedStatuses    = []string{"failed"}
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

type createRequest struct {
	BaseCurrencyAmount    string `json:"baseCurrencyAmount"`
	BaseCurrencyCode      string `json:"baseCurrencyCode"`
	CurrencyCode          string `json:"currencyCode"`
	WalletAddress         string `json:"walletAddress"`
	ExternalTransactionID string `json:"externalTransactionId"`
	RedirectURL           string `json:"redirectUrl,omitempty"`
}

type transaction struct {
	ID                    string      `json:"id"`
	Status                string      `json:"status"`
	ExternalTransactionID string      `json:"externalTransactionId"`
	RedirectURL           string      `json:"redirectUrl"`
	BaseCurrencyAmount    json.Number `json:"baseCurrencyAmount"`
	BaseCurrencyCode      string      `json:"baseCurrencyCode"`
	FailureReason         string      `json:"failureReason"`
}

// CreateTransaction opens a buy (on-ramp) into the user's wallet
func (p *Provider) CreateTransaction(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
	body := createRequest{
		BaseCurrencyAmount:    req.Amount.String(),
		BaseCurrencyCode:      strings.ToLower(req.Currency),
		CurrencyCode:          strings.ToLower(req.Asset),
		WalletAddress:         req.WalletAddress,
		ExternalTransactionID: req.Reference,
		RedirectURL:           req.CallbackURL,
	}

	var out transaction
	raw, err := p.client.Do(ctx, http.MethodPost, "/v1/transactions", body, &out)
	if err != nil {
		return nil, err
	}

	return &domain.ProviderResponse{
		Success:     out.ID != "",
		Reference:   out.ID,
		Status:      out.Status,
		RedirectURL: out.RedirectURL,
		Message:     "MoonPay transaction created",
		RawResponse: raw,
	}, nil
}

func (p *Provider) VerifyTransaction(ctx context.Context, providerRef string) (domain.WebhookOutcome, error) {
	var out transaction
	if _, err := p.client.Do(ctx, http.MethodGet, "/v1/transactions/"+url.PathEscape(providerRef), nil, &out); err != nil {
		return domain.WebhookPending, err
	}
	return provider.OutcomeFrom(out.Status, completedStatuses, failedStatuses), nil
}

type webhookBody struct {
	Type string      `json:"type"`
	Data transaction `json:"data"`
}

// ParseWebhook verifies "t=<timestamp>,s=<hex>" where s signs "<timestamp>.<body>"
func (p *Provider) ParseWebhook(headers http.Header, body []byte) (*domain.WebhookEvent, error) {
	timestamp, sig := splitSignatureHeader(headers.Get(SignatureHeader))
	signed := append([]byte(timestamp+"."), body...)
	if timestamp == "" || !security.VerifySignature(security.HMACSHA256Hex, p.secret, signed, sig) {
		return nil, &domain.SignatureError{Provider: Name}
	}

	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, fmt.Errorf("invalid moonpay payload: %w", err)
	}
	payload, err := provider.DecodePayload(body)
	if err != nil {
		return nil, err
	}
	if wb.Data.ID == "" {
		return nil, fmt.Errorf("moonpay payload missing transaction id")
	}

	return &domain.WebhookEvent{
		Provider:          Name,
		EventID:           wb.Data.ID + ":" + provider.NormalizeStatus(wb.Data.Status),
		ProviderReference: wb.Data.ID,
		Reference:         wb.Data.ExternalTransactionID,
		Outcome:           provider.OutcomeFrom(wb.Data.Status, completedStatuses, failedStatuses),
		Amount:            provider.ParseAmount(wb.Data.BaseCurrencyAmount),
		Currency:          strings.ToUpper(wb.Data.BaseCurrencyCode),
		Reason:            wb.Data.FailureReason,
		Payload:           payload,
	}, nil
}

func splitSignatureHeader(h string) (timestamp, sig string) {
	for _, part := range strings.Split(h, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "s":
			sig = kv[1]
		}
	}
	return timestamp, sig
}
