// internal/provider/webhook.go
package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"remittance-service/internal/domain"

	"github.com/shopspring/decimal"
)

// DecodePayload keeps the raw JSON object for the transaction audit metadata
func DecodePayload(body []byte) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	return payload, nil
}

// ParseAmount accepts both JSON numbers and numeric strings
func ParseAmount(v json.Number) *decimal.Decimal {
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return nil
	}
	return &d
}

// NormalizeStatus lowercases provider statuses ("SUCCESSFUL", "Complete")
func NormalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// OutcomeFrom maps a provider status onto the webhook outcome. Anything not
// listed is still pending.
func OutcomeFrom(status string, completed, failed []string) domain.WebhookOutcome {
	s := NormalizeStatus(status)
	for _, c := range completed {
		if s == c {
			return domain.WebhookCompleted
		}
	}
	for _, f := range failed {
		if s == f {
			return domain.WebhookFailed
		}
	}
	return domain.WebhookPending
}
