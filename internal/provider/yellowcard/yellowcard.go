// internal/provider/yellowcard/yellowcard.go
package yellowcard

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
	Name            = "yellowcard"
	SignatureHeader = "X-YC-Signature"
)

var (
	completedStatuses = []string{"complete", "completed"}
	failedStatuses    = []string{"failed", "expired", "cancelled"}
)

// Provider pays out to bank accounts (off-ramp)
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

type destination struct {
	AccountNumber string `json:"accountNumber"`
	AccountType   string `json:"accountType"`
	NetworkID     string `json:"networkId"`
}

type paymentRequest struct {
	SequenceID  string      `json:"sequenceId"`
	Amount      string      `json:"amount"`
	Currency    string      `json:"currency"`
	Reason      string      `json:"reason"`
	Destination destination `json:"destination"`
	ForceAccept bool        `json:"forceAccept"`
}

type payment struct {
	ID         string      `json:"id"`
	SequenceID string      `json:"sequenceId"`
	Status     string      `json:"status"`
	Event      string      `json:"event"`
	Amount     json.Number `json:"amount"`
	Currency   string      `json:"currency"`
	ErrorCode  string      `json:"errorCode"`
}

func (p *Provider) CreateTransaction(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
	body := paymentRequest{
		SequenceID: req.Reference,
		Amount:     req.Amount.String(),
		Currency:   strings.ToUpper(req.Currency),
		Reason:     "remittance",
		Destination: destination{
			AccountNumber: req.AccountNumber,
			AccountType:   "bank",
			NetworkID:     req.BankCode,
		},
		ForceAccept: true,
	}

	var out payment
	raw, err := p.client.Do(ctx, http.MethodPost, "/business/payments", body, &out)
	if err != nil {
		return nil, err
	}

	return &domain.ProviderResponse{
		Success:     out.ID != "",
		Reference:   out.ID,
		Status:      out.Status,
		Message:     "YellowCard payment submitted",
		RawResponse: raw,
	}, nil
}

func (p *Provider) VerifyTransaction(ctx context.Context, providerRef string) (domain.WebhookOutcome, error) {
	var out payment
	if _, err := p.client.Do(ctx, http.MethodGet, "/business/payments/"+url.PathEscape(providerRef), nil, &out); err != nil {
		return domain.WebhookPending, err
	}
	return provider.OutcomeFrom(out.Status, completedStatuses, failedStatuses), nil
}

// ParseWebhook expects X-YC-Signature = base64(HMAC-SHA256(body))
func (p *Provider) ParseWebhook(headers http.Header, body []byte) (*domain.WebhookEvent, error) {
	if !security.VerifySignature(security.HMACSHA256Base64, p.secret, body, headers.Get(SignatureHeader)) {
		return nil, &domain.SignatureError{Provider: Name}
	}

	var pm payment
	if err := json.Unmarshal(body, &pm); err != nil {
		return nil, fmt.Errorf("invalid yellowcard payload: %w", err)
	}
	payload, err := provider.DecodePayload(body)
	if err != nil {
		return nil, err
	}
	if pm.ID == "" {
		return nil, fmt.Errorf("yellowcard payload missing id")
	}

	status := pm.Status
	if status == "" {
		// PAYMENT.COMPLETE / PAYMENT.FAILED
		status = strings.TrimPrefix(strings.ToLower(pm.Event), "payment.")
	}

	return &domain.WebhookEvent{
		Provider:          Name,
		EventID:           pm.ID + ":" + provider.NormalizeStatus(status),
		ProviderReference: pm.ID,
		Reference:         pm.SequenceID,
		Outcome:           provider.OutcomeFrom(status, completedStatuses, failedStatuses),
		Amount:            provider.ParseAmount(pm.Amount),
		Currency:          strings.ToUpper(pm.Currency),
		Reason:            pm.ErrorCode,
		Payload:           payload,
	}, nil
}
