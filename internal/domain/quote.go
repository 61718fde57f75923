// internal/domain/quote.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PolicyConfig is a per-request snapshot of the fee and limit settings.
type PolicyConfig struct {
	ServiceFeeRate decimal.Decimal // fraction, 0.025 = 2.5%
	FixedFeeUSD    decimal.Decimal
	NetworkFee     decimal.Decimal // settlement asset native units
	MinUSD         decimal.Decimal
	MaxUSD         decimal.Decimal
}

// Quote is expressed in the request currency; Settlement* fields are the
// same figures converted to the settlement asset and rounded to its precision.
type Quote struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	ServiceFee  decimal.Decimal `json:"service_fee"`
	NetworkFee  decimal.Decimal `json:"network_fee"`
	TotalFee    decimal.Decimal `json:"total_fee"`
	TotalAmount decimal.Decimal `json:"total_amount"`

	SettlementAsset  string          `json:"settlement_asset"`
	SettlementAmount decimal.Decimal `json:"settlement_amount"`
	SettlementFee    decimal.Decimal `json:"settlement_fee"`
	SettlementTotal  decimal.Decimal `json:"settlement_total"`

	RatesAsOf time.Time `json:"rates_as_of"`
}
