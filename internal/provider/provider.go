// internal/provider/provider.go
package provider

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"remittance-service/internal/domain"
)

// PaymentProvider is the uniform capability every on/off-ramp implements
type PaymentProvider interface {
	// Name returns the lowercase provider key used in routes and rows
	Name() string

	// CreateTransaction opens a deposit (on-ramp) or payout (off-ramp) at the provider
	CreateTransaction(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error)

	// VerifyTransaction asks the provider for the current outcome of one of its transactions
	VerifyTransaction(ctx context.Context, providerRef string) (domain.WebhookOutcome, error)

	// ParseWebhook verifies the signature and decodes the payload. A bad
	// signature yields *domain.SignatureError and nothing else is parsed.
	ParseWebhook(headers http.Header, body []byte) (*domain.WebhookEvent, error)
}

// Config is shared by all providers
type Config struct {
	BaseURL           string
	APIKey            string
	WebhookSecret     string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Enabled reports whether the provider has enough configuration to be registered
func (c Config) Enabled() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

type Registry struct {
	providers map[string]PaymentProvider
}

func NewRegistry(providers ...PaymentProvider) *Registry {
	r := &Registry{providers: make(map[string]PaymentProvider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p PaymentProvider) {
	r.providers[strings.ToLower(p.Name())] = p
}

func (r *Registry) Get(name string) (PaymentProvider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
