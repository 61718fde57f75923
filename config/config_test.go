package config

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MASTER_ENCRYPTION_KEY", "k")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "STELLAR", cfg.Ledger.Settlement)
	assert.Equal(t, 60*time.Second, cfg.Ledger.SubmitTimeout)
	assert.Equal(t, "2", cfg.Ledger.StellarReserve.String())
	assert.Equal(t, "0.00001", cfg.Ledger.StellarBaseFee.String())
	assert.Equal(t, "0.025", cfg.Policy.ServiceFeeRate.String())
	assert.Equal(t, "20", cfg.Policy.MinUSD.String())
	assert.Equal(t, "5000", cfg.Policy.MaxUSD.String())
	assert.False(t, cfg.Redis.Enabled())
	assert.Empty(t, cfg.Providers)
	assert.Equal(t, "postgres://postgres:@localhost:5432/remittance?sslmode=disable", cfg.Database.URL())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MASTER_ENCRYPTION_KEY", "k")
	t.Setenv("SETTLEMENT_LEDGER", "ethereum")
	t.Setenv("ETHEREUM_ENABLED", "true")
	t.Setenv("ETHEREUM_RPC_URL", "http://geth:8545")
	t.Setenv("ETHEREUM_CHAIN_ID", "11155111")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PROVIDER_FLUTTERWAVE_BASE_URL", "https://api.flutterwave.test")
	t.Setenv("PROVIDER_FLUTTERWAVE_WEBHOOK_SECRET", "hash")
	t.Setenv("PAYOUT_PROVIDER", "Flutterwave")
	t.Setenv("MIN_TRANSFER_USD", "10")
	t.Setenv("LEDGER_SUBMIT_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ETHEREUM", cfg.Ledger.Settlement)
	assert.Equal(t, "11155111", cfg.Ledger.EthereumChainID.String())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "flutterwave", cfg.PayoutProvider)
	assert.Equal(t, "hash", cfg.Providers["flutterwave"].WebhookSecret)
	assert.Equal(t, "10", cfg.Policy.MinUSD.String())
	assert.Equal(t, 60*time.Second, cfg.Ledger.SubmitTimeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing master key", map[string]string{}},
		{"min above max", map[string]string{"MASTER_ENCRYPTION_KEY": "k", "MIN_TRANSFER_USD": "6000"}},
		{"payout provider not configured", map[string]string{"MASTER_ENCRYPTION_KEY": "k", "PAYOUT_PROVIDER": "yellowcard"}},
		{"ethereum without rpc", map[string]string{"MASTER_ENCRYPTION_KEY": "k", "ETHEREUM_ENABLED": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MASTER_ENCRYPTION_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestConnectRedis(t *testing.T) {
	rdb, err := ConnectRedis(context.Background(), RedisConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, rdb)

	mr := miniredis.RunT(t)
	rdb, err = ConnectRedis(context.Background(), RedisConfig{Host: mr.Host(), Port: mr.Port()}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, rdb)
	_ = rdb.Close()
}
