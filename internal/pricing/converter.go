// internal/pricing/converter.go
package pricing

import (
	"strings"

	"remittance-service/internal/domain"
	"remittance-service/internal/rates"

	"github.com/shopspring/decimal"
)

// divisionPrecision is the number of places kept when dividing by a rate.
// Only the settlement conversion is rounded to the asset precision.
const divisionPrecision = 16

// Converter converts through USD using one rate table snapshot.
// Settlement conversions round half away from zero to the asset precision.
type Converter struct {
	table           *rates.Table
	settlementAsset string
	precision       int32
}

func NewConverter(table *rates.Table, settlementAsset string, precision int32) *Converter {
	return &Converter{
		table:           table,
		settlementAsset: strings.ToUpper(settlementAsset),
		precision:       precision,
	}
}

func (c *Converter) SettlementAsset() string { return c.settlementAsset }

func (c *Converter) Precision() int32 { return c.precision }

func (c *Converter) Table() *rates.Table { return c.table }

// ToUSD converts amount in currency to USD.
func (c *Converter) ToUSD(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	rate, err := c.table.Rate(currency)
	if err != nil {
		return decimal.Zero, err
	}
	if isPivot(currency) {
		return amount, nil
	}
	return amount.DivRound(rate, divisionPrecision), nil
}

// FromUSD converts a USD amount into currency.
func (c *Converter) FromUSD(amountUSD decimal.Decimal, currency string) (decimal.Decimal, error) {
	rate, err := c.table.Rate(currency)
	if err != nil {
		return decimal.Zero, err
	}
	if isPivot(currency) {
		return amountUSD, nil
	}
	return amountUSD.Mul(rate), nil
}

// Convert moves amount from one currency to another through USD.
// Same-currency conversion is the identity.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		if !c.table.Has(from) {
			return decimal.Zero, &domain.UnknownCurrencyError{Currency: from}
		}
		return amount, nil
	}
	usd, err := c.ToUSD(amount, from)
	if err != nil {
		return decimal.Zero, err
	}
	return c.FromUSD(usd, to)
}

// ToSettlementAsset converts to the settlement asset and rounds to its precision.
func (c *Converter) ToSettlementAsset(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	if strings.EqualFold(currency, c.settlementAsset) {
		return amount.Round(c.precision), nil
	}
	out, err := c.Convert(amount, currency, c.settlementAsset)
	if err != nil {
		return decimal.Zero, err
	}
	return out.Round(c.precision), nil
}

// FromSettlementAsset converts settlement units into currency without rounding.
func (c *Converter) FromSettlementAsset(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	return c.Convert(amount, c.settlementAsset, currency)
}

func isPivot(currency string) bool {
	return strings.EqualFold(currency, rates.PivotCurrency)
}
