// internal/pricing/policy.go
package pricing

import (
	"fmt"
	"strings"

	"remittance-service/internal/domain"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the precision fees are kept at in the request currency.
const MoneyPlaces int32 = 7

// Quote prices a transfer of amount in currency. It has no side effects:
// the result depends only on cfg and the converter's rate snapshot.
//
// serviceFee = amount * rate + fixed USD fee in currency
// networkFee = cfg.NetworkFee (settlement units) in currency
// totalAmount = amount + serviceFee + networkFee
//
// Limits are inclusive: min <= amountUSD <= max is accepted.
func Quote(amount decimal.Decimal, currency string, cfg domain.PolicyConfig, conv *Converter) (*domain.Quote, error) {
	if !amount.IsPositive() {
		return nil, &domain.ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	currency = strings.ToUpper(currency)

	amountUSD, err := conv.ToUSD(amount, currency)
	if err != nil {
		return nil, err
	}

	if cfg.MinUSD.IsPositive() && amountUSD.LessThan(cfg.MinUSD) {
		return nil, &domain.LimitError{
			Message:   fmt.Sprintf("Minimum transfer amount is $%s USD", cfg.MinUSD.String()),
			AmountUSD: amountUSD,
			MinUSD:    cfg.MinUSD,
			MaxUSD:    cfg.MaxUSD,
		}
	}
	if cfg.MaxUSD.IsPositive() && amountUSD.GreaterThan(cfg.MaxUSD) {
		return nil, &domain.LimitError{
			Message:   fmt.Sprintf("Maximum transfer amount is $%s USD", cfg.MaxUSD.String()),
			AmountUSD: amountUSD,
			MinUSD:    cfg.MinUSD,
			MaxUSD:    cfg.MaxUSD,
		}
	}

	fixedFee, err := conv.FromUSD(cfg.FixedFeeUSD, currency)
	if err != nil {
		return nil, err
	}
	serviceFee := amount.Mul(cfg.ServiceFeeRate).Add(fixedFee).Round(MoneyPlaces)

	networkFee, err := conv.FromSettlementAsset(cfg.NetworkFee, currency)
	if err != nil {
		return nil, err
	}
	networkFee = networkFee.Round(MoneyPlaces)

	totalFee := serviceFee.Add(networkFee)

	settlementAmount, err := conv.ToSettlementAsset(amount, currency)
	if err != nil {
		return nil, err
	}
	settlementService, err := conv.ToSettlementAsset(serviceFee, currency)
	if err != nil {
		return nil, err
	}
	settlementFee := settlementService.Add(cfg.NetworkFee.Round(conv.Precision()))

	return &domain.Quote{
		Amount:           amount,
		Currency:         currency,
		AmountUSD:        amountUSD,
		ServiceFee:       serviceFee,
		NetworkFee:       networkFee,
		TotalFee:         totalFee,
		TotalAmount:      amount.Add(totalFee),
		SettlementAsset:  conv.SettlementAsset(),
		SettlementAmount: settlementAmount,
		SettlementFee:    settlementFee,
		SettlementTotal:  settlementAmount.Add(settlementFee),
		RatesAsOf:        conv.Table().AsOf(),
	}, nil
}

// ValidatePolicy rejects settings rows that cannot produce sane quotes.
func ValidatePolicy(cfg domain.PolicyConfig) error {
	if cfg.ServiceFeeRate.IsNegative() || cfg.ServiceFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("service fee rate must be in [0, 1), got %s", cfg.ServiceFeeRate.String())
	}
	if cfg.FixedFeeUSD.IsNegative() || cfg.NetworkFee.IsNegative() {
		return fmt.Errorf("fees must not be negative")
	}
	if cfg.MaxUSD.IsPositive() && cfg.MinUSD.GreaterThan(cfg.MaxUSD) {
		return fmt.Errorf("minimum %s exceeds maximum %s", cfg.MinUSD.String(), cfg.MaxUSD.String())
	}
	return nil
}
