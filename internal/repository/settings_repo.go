// internal/repository/settings_repo.go
package repository

import (
	"context"
	"fmt"

	"remittance-service/internal/domain"

	"github.com/shopspring/decimal"
)

// SettingsRepository reads the mutable fee and limit settings. Callers get a
// snapshot value, never a live view.
type SettingsRepository interface {
	PolicySnapshot(ctx context.Context) (domain.PolicyConfig, error)
}

type settingsRepo struct {
	pool     DB
	defaults domain.PolicyConfig
}

// NewSettingsRepository falls back to defaults for keys missing in the table
func NewSettingsRepository(pool DB, defaults domain.PolicyConfig) SettingsRepository {
	return &settingsRepo{pool: pool, defaults: defaults}
}

func (r *settingsRepo) PolicySnapshot(ctx context.Context) (domain.PolicyConfig, error) {
	cfg := r.defaults

	rows, err := r.pool.Query(ctx, `
		SELECT key, value FROM settings
		WHERE key IN ('service_fee_rate', 'fixed_fee_usd', 'network_fee', 'min_transfer_usd', 'max_transfer_usd')
	`)
	if err != nil {
		return cfg, fmt.Errorf("failed to load settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return cfg, err
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return cfg, fmt.Errorf("setting %s is not a number: %w", key, err)
		}
		switch key {
		case "service_fee_rate":
			cfg.ServiceFeeRate = d
		case "fixed_fee_usd":
			cfg.FixedFeeUSD = d
		case "network_fee":
			cfg.NetworkFee = d
		case "min_transfer_usd":
			cfg.MinUSD = d
		case "max_transfer_usd":
			cfg.MaxUSD = d
		}
	}
	return cfg, rows.Err()
}
