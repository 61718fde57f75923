// internal/domain/provider.go
package domain

import "github.com/shopspring/decimal"

// ProviderRequest is what an on/off-ramp provider needs to open a transaction
type ProviderRequest struct {
	Reference     string
	Amount        decimal.Decimal
	Currency      string
	Asset         string // settlement asset bought or sold, on-ramp only
	WalletAddress string
	BankCode      string
	AccountNumber string
	CallbackURL   string
}

// ProviderResponse is the uniform shape the core consumes
type ProviderResponse struct {
	Success     bool
	Reference   string
	Status      string
	Message     string
	RedirectURL string
	RawResponse map[string]interface{}
}

type WebhookOutcome string

const (
	WebhookCompleted WebhookOutcome = "completed"
	WebhookFailed    WebhookOutcome = "failed"
	WebhookPending   WebhookOutcome = "pending"
)

// WebhookEvent is a provider webhook after signature verification and parsing
type WebhookEvent struct {
	Provider          string
	EventID           string
	ProviderReference string
	Reference         string
	Outcome           WebhookOutcome
	Amount            *decimal.Decimal
	Currency          string
	Reason            string
	Payload           map[string]interface{}
}
