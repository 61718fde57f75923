package pricing

import (
	"errors"
	"testing"

	"remittance-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() domain.PolicyConfig {
	return domain.PolicyConfig{
		ServiceFeeRate: d("0.025"),
		FixedFeeUSD:    d("2"),
		NetworkFee:     d("0.00001"),
		MinUSD:         d("20"),
		MaxUSD:         d("5000"),
	}
}

func TestQuoteTotalsAddUp(t *testing.T) {
	conv := testConverter(t)
	cfg := testPolicy()

	for _, currency := range []string{"USD", "NGN", "KES", "GHS", "EUR"} {
		for _, usd := range []string{"20", "37.13", "100", "999.99", "5000"} {
			amount, err := conv.FromUSD(d(usd), currency)
			require.NoError(t, err)

			q, err := Quote(amount, currency, cfg, conv)
			require.NoError(t, err, "%s %s", usd, currency)

			assert.True(t, q.TotalAmount.Equal(amount.Add(q.ServiceFee).Add(q.NetworkFee)))
			assert.True(t, q.TotalFee.Equal(q.ServiceFee.Add(q.NetworkFee)))
			assert.True(t, q.SettlementTotal.Equal(q.SettlementAmount.Add(q.SettlementFee)))
		}
	}
}

func TestQuoteNGNScenario(t *testing.T) {
	conv := testConverter(t)

	// $100 expressed in NGN at 1550 NGN/USD, 2.5% + $2 fixed, XLM at 4/USD
	q, err := Quote(d("155000"), "ngn", testPolicy(), conv)
	require.NoError(t, err)

	assert.Equal(t, "NGN", q.Currency)
	assert.True(t, q.AmountUSD.Equal(d("100")))
	assert.True(t, q.ServiceFee.Equal(d("6975")), q.ServiceFee.String())
	assert.True(t, q.NetworkFee.Equal(d("0.003875")), q.NetworkFee.String())
	assert.True(t, q.TotalAmount.Equal(d("161975.003875")), q.TotalAmount.String())

	assert.Equal(t, "XLM", q.SettlementAsset)
	assert.True(t, q.SettlementAmount.Equal(d("400")))
	assert.True(t, q.SettlementFee.Equal(d("18.00001")), q.SettlementFee.String())
	assert.True(t, q.SettlementTotal.Equal(d("418.00001")))
}

func TestQuoteLimitsAreInclusive(t *testing.T) {
	conv := testConverter(t)
	cfg := testPolicy()

	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{"exactly minimum", "31000", false},
		{"just below minimum", "30999.99", true},
		{"exactly maximum", "7750000", false},
		{"just above maximum", "7750000.01", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Quote(d(tt.amount), "NGN", cfg, conv)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var limitErr *domain.LimitError
			require.True(t, errors.As(err, &limitErr))
		})
	}
}

func TestQuoteLimitMessage(t *testing.T) {
	conv := testConverter(t)

	_, err := Quote(d("10"), "USD", testPolicy(), conv)
	require.Error(t, err)
	assert.Equal(t, "Minimum transfer amount is $20 USD", err.Error())

	_, err = Quote(d("5000.01"), "USD", testPolicy(), conv)
	require.Error(t, err)
	assert.Equal(t, "Maximum transfer amount is $5000 USD", err.Error())
}

func TestQuoteRejectsBadInput(t *testing.T) {
	conv := testConverter(t)

	_, err := Quote(d("0"), "USD", testPolicy(), conv)
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = Quote(d("100"), "JPY", testPolicy(), conv)
	var unknown *domain.UnknownCurrencyError
	assert.True(t, errors.As(err, &unknown))
}

func TestValidatePolicy(t *testing.T) {
	assert.NoError(t, ValidatePolicy(testPolicy()))

	bad := testPolicy()
	bad.ServiceFeeRate = d("1.5")
	assert.Error(t, ValidatePolicy(bad))

	bad = testPolicy()
	bad.MinUSD = d("6000")
	assert.Error(t, ValidatePolicy(bad))

	bad = testPolicy()
	bad.FixedFeeUSD = d("-1")
	assert.Error(t, ValidatePolicy(bad))
}
