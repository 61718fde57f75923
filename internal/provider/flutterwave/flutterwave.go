// internal/provider/flutterwave/flutterwave.go
package flutterwave

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
	Name = "flutterwave"

	// HashHeader carries the secret hash configured on the dashboard
	HashHeader      = "verif-hash"
	SignatureHeader = "flutterwave-signature"
)

var (
	completedStatuses = []string{"successful", "success", "completed"}
	failedStatuses    = []string{"failed", "cancelled"}
)

// Provider sends bank transfers (off-ramp)
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

type transferRequest struct {
	AccountBank   string      `json:"account_bank"`
	AccountNumber string      `json:"account_number"`
	Amount        json.Number `json:"amount"`
	Currency      string      `json:"currency"`
	Narration     string      `json:"narration,omitempty"`
	Reference     string      `json:"reference"`
	CallbackURL   string      `json:"callback_url,omitempty"`
}

type transferData struct {
	ID              json.Number `json:"id"`
	Reference       string      `json:"reference"`
	TxRef           string      `json:"tx_ref"`
	Status          string      `json:"status"`
	Amount          json.Number `json:"amount"`
	Currency        string      `json:"currency"`
	CompleteMessage string      `json:"complete_message"`
}

type envelope struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Event   string       `json:"event"`
	Data    transferData `json:"data"`
}

func (p *Provider) CreateTransaction(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
	body := transferRequest{
		AccountBank:   req.BankCode,
		AccountNumber: req.AccountNumber,
		Amount:        json.Number(req.Amount.String()),
		Currency:      strings.ToUpper(req.Currency),
		Narration:     "Remittance " + req.Reference,
		Reference:     req.Reference,
		CallbackURL:   req.CallbackURL,
	}

	var out envelope
	raw, err := p.client.Do(ctx, http.MethodPost, "/v3/transfers", body, &out)
	if err != nil {
		return nil, err
	}

	return &domain.ProviderResponse{
		Success:     out.Status == "success" && out.Data.ID != "",
		Reference:   out.Data.ID.String(),
		Status:      out.Data.Status,
		Message:     out.Message,
		RawResponse: raw,
	}, nil
}

func (p *Provider) VerifyTransaction(ctx context.Context, providerRef string) (domain.WebhookOutcome, error) {
	var out envelope
	if _, err := p.client.Do(ctx, http.MethodGet, "/v3/transfers/"+url.PathEscape(providerRef), nil, &out); err != nil {
		return domain.WebhookPending, err
	}
	return provider.OutcomeFrom(out.Data.Status, completedStatuses, failedStatuses), nil
}

// ParseWebhook requires verif-hash to equal the secret hash. When the newer
// flutterwave-signature header is present it must verify as well.
func (p *Provider) ParseWebhook(headers http.Header, body []byte) (*domain.WebhookEvent, error) {
	if !security.EqualToken(p.secret, headers.Get(HashHeader)) {
		return nil, &domain.SignatureError{Provider: Name}
	}
	if sig := headers.Get(SignatureHeader); sig != "" {
		if !security.VerifySignature(security.HMACSHA256Base64, p.secret, body, sig) {
			return nil, &domain.SignatureError{Provider: Name}
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("invalid flutterwave payload: %w", err)
	}
	payload, err := provider.DecodePayload(body)
	if err != nil {
		return nil, err
	}
	if env.Data.ID == "" {
		return nil, fmt.Errorf("flutterwave payload missing data.id")
	}

	reference := env.Data.Reference
	if reference == "" {
		reference = env.Data.TxRef
	}

	return &domain.WebhookEvent{
		Provider:          Name,
		EventID:           env.Data.ID.String() + ":" + provider.NormalizeStatus(env.Data.Status),
		ProviderReference: env.Data.ID.String(),
		Reference:         reference,
		Outcome:           provider.OutcomeFrom(env.Data.Status, completedStatuses, failedStatuses),
		Amount:            provider.ParseAmount(env.Data.Amount),
		Currency:          strings.ToUpper(env.Data.Currency),
		Reason:            env.Data.CompleteMessage,
		Payload:           payload,
	}, nil
}
