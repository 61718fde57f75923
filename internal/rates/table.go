// internal/rates/table.go
package rates

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"remittance-service/internal/domain"

	"github.com/shopspring/decimal"
)

// PivotCurrency is the currency every rate is quoted against.
const PivotCurrency = "USD"

// Table is an immutable snapshot of currency code -> units per USD.
type Table struct {
	rates  map[string]decimal.Decimal
	asOf   time.Time
	source string
}

// Provider hands out the current snapshot. Implementations must return a
// table that stays unchanged for the caller's whole request.
type Provider interface {
	Current(ctx context.Context) (*Table, error)
}

// NewTable copies rates and normalizes codes to upper case. USD is forced to 1.
func NewTable(rates map[string]decimal.Decimal, asOf time.Time, source string) (*Table, error) {
	t := &Table{
		rates:  make(map[string]decimal.Decimal, len(rates)+1),
		asOf:   asOf,
		source: source,
	}
	for code, rate := range rates {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive, got %s", code, rate.String())
		}
		t.rates[code] = rate
	}
	t.rates[PivotCurrency] = decimal.NewFromInt(1)
	return t, nil
}

// Rate returns units of code per one USD.
func (t *Table) Rate(code string) (decimal.Decimal, error) {
	rate, ok := t.rates[strings.ToUpper(code)]
	if !ok {
		return decimal.Zero, &domain.UnknownCurrencyError{Currency: code}
	}
	return rate, nil
}

func (t *Table) Has(code string) bool {
	_, ok := t.rates[strings.ToUpper(code)]
	return ok
}

func (t *Table) AsOf() time.Time { return t.asOf }

func (t *Table) Source() string { return t.source }

// Codes lists the supported currency codes in sorted order
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.rates))
	for code := range t.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Snapshot returns a copy of the underlying map
func (t *Table) Snapshot() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(t.rates))
	for k, v := range t.rates {
		out[k] = v
	}
	return out
}

// IsStale reports whether the snapshot is older than maxAge at now.
func (t *Table) IsStale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(t.asOf) > maxAge
}

// ParseSeed parses "NGN=1550.25,KES=129.4" into a rate map.
func ParseSeed(seed string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(seed, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid rate entry %q", pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", parts[0], err)
		}
		out[strings.ToUpper(strings.TrimSpace(parts[0]))] = rate
	}
	return out, nil
}
