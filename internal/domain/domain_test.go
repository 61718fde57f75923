package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	all := []TransactionStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}
	allowed := map[TransactionStatus][]TransactionStatus{
		StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed},
		StatusProcessing: {StatusCompleted, StatusFailed},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
}

func TestTransferRequestValidate(t *testing.T) {
	id := int64(7)
	tests := []struct {
		name  string
		req   TransferRequest
		field string
	}{
		{"crypto ok", TransferRequest{Type: TransferTypeCrypto, Amount: decimal.NewFromInt(50), Currency: "USD", RecipientAddress: "GABC"}, ""},
		{"crypto needs address", TransferRequest{Type: TransferTypeCrypto, Amount: decimal.NewFromInt(50), Currency: "USD"}, "recipient_address"},
		{"cash inline needs bank", TransferRequest{Type: TransferTypeCash, Amount: decimal.NewFromInt(50), Currency: "USD", AccountNumber: "01234567"}, "bank_code"},
		{"cash with saved recipient", TransferRequest{Type: TransferTypeCash, Amount: decimal.NewFromInt(50), Currency: "USD", RecipientID: &id}, ""},
		{"negative amount", TransferRequest{Type: TransferTypeCrypto, Amount: decimal.NewFromInt(-1), Currency: "USD", RecipientAddress: "GABC"}, "amount"},
		{"missing type", TransferRequest{Amount: decimal.NewFromInt(50), Currency: "USD"}, "transfer_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestNotFoundErrorUnwraps(t *testing.T) {
	err := &NotFoundError{Resource: "transaction", Key: "RMT-1"}
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "transaction not found: RMT-1", err.Error())
}
