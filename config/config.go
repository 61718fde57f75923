// config/config.go
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"remittance-service/internal/domain"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	Ledger         LedgerConfig
	Custody        CustodyConfig
	Security       SecurityConfig
	Policy         domain.PolicyConfig
	Rates          RatesConfig
	Providers      map[string]ProviderConfig
	PayoutProvider string
	Reconcile      ReconcileConfig
}

type ServerConfig struct {
	Port            string
	Env             string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	AllowedOrigins  []string
	CallbackBaseURL string
	WebhookRPS      float64
	WebhookBurst    int
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	MigrationsPath  string
	AutoMigrate     bool
}

// URL is the postgres connection string shared by pgxpool and migrate
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// RedisConfig is optional; with no host the service falls back to in-process
// locks and timers, which is only safe for a single replica.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool { return r.Host != "" }

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

type KafkaConfig struct {
	Brokers     []string
	PayoutTopic string
}

type LedgerConfig struct {
	Settlement    string
	SubmitTimeout time.Duration
	LockTTL       time.Duration
	LockWait      time.Duration

	StellarHorizonURL  string
	StellarPassphrase  string
	StellarReserve     decimal.Decimal
	StellarBaseFee     decimal.Decimal
	StellarFriendbot   bool
	EthereumEnabled    bool
	EthereumRPCURL     string
	EthereumChainID    *big.Int
	EthereumPrecision  int32
	EthereumMaxGasGwei int64
}

type CustodyConfig struct {
	Address         string
	EncryptedSecret string
}

type SecurityConfig struct {
	MasterKey   string
	PreviousKey string
}

type RatesConfig struct {
	SourceURL       string
	APIKey          string
	RefreshInterval time.Duration
	MaxAge          time.Duration
	Seed            string
}

type ProviderConfig struct {
	BaseURL           string
	APIKey            string
	WebhookSecret     string
	RequestsPerSecond float64
	Timeout           time.Duration
}

type ReconcileConfig struct {
	TransferDelay time.Duration
	DepositDelay  time.Duration
	PollInterval  time.Duration
	SweepAge      time.Duration
	SweepInterval time.Duration
}

// ProviderNames are the payment providers the service knows how to talk to
var ProviderNames = []string{"moonpay", "linkio", "yellowcard", "flutterwave"}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8030"),
			Env:             getEnv("ENVIRONMENT", "development"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 90*time.Second),
			AllowedOrigins:  getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			CallbackBaseURL: strings.TrimRight(getEnv("CALLBACK_BASE_URL", "http://localhost:8030"), "/"),
			WebhookRPS:      getEnvAsFloat("WEBHOOK_RATE_PER_SECOND", 20),
			WebhookBurst:    getEnvAsInt("WEBHOOK_RATE_BURST", 40),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			DBName:          getEnv("DB_NAME", "remittance"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			MigrationsPath:  getEnv("DB_MIGRATIONS_PATH", "migrations"),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvSlice("KAFKA_BROKERS", nil),
			PayoutTopic: getEnv("KAFKA_PAYOUT_TOPIC", "remittance.payout.ready"),
		},
		Ledger: LedgerConfig{
			Settlement:         strings.ToUpper(getEnv("SETTLEMENT_LEDGER", "STELLAR")),
			SubmitTimeout:      getEnvAsDuration("LEDGER_SUBMIT_TIMEOUT", 60*time.Second),
			LockTTL:            getEnvAsDuration("WALLET_LOCK_TTL", 2*time.Minute),
			LockWait:           getEnvAsDuration("WALLET_LOCK_WAIT", 10*time.Second),
			StellarHorizonURL:  getEnv("STELLAR_HORIZON_URL", "https://horizon-testnet.stellar.org"),
			StellarPassphrase:  getEnv("STELLAR_NETWORK_PASSPHRASE", "Test SDF Network ; September 2015"),
			StellarReserve:     getEnvAsDecimal("STELLAR_RESERVE", decimal.NewFromInt(2)),
			StellarBaseFee:     getEnvAsDecimal("STELLAR_BASE_FEE", decimal.New(1, -5)),
			StellarFriendbot:   getEnvAsBool("STELLAR_FRIENDBOT", false),
			EthereumEnabled:    getEnvAsBool("ETHEREUM_ENABLED", false),
			EthereumRPCURL:     getEnv("ETHEREUM_RPC_URL", ""),
			EthereumPrecision:  int32(getEnvAsInt("ETHEREUM_PRECISION", 7)),
			EthereumMaxGasGwei: int64(getEnvAsInt("ETHEREUM_MAX_GAS_GWEI", 100)),
		},
		Custody: CustodyConfig{
			Address:         getEnv("CUSTODY_ADDRESS", ""),
			EncryptedSecret: getEnv("CUSTODY_SECRET_ENC", ""),
		},
		Security: SecurityConfig{
			MasterKey:   getEnv("MASTER_ENCRYPTION_KEY", ""),
			PreviousKey: getEnv("PREVIOUS_ENCRYPTION_KEY", ""),
		},
		Policy: domain.PolicyConfig{
			ServiceFeeRate: getEnvAsDecimal("SERVICE_FEE_RATE", decimal.RequireFromString("0.025")),
			FixedFeeUSD:    getEnvAsDecimal("FIXED_FEE_USD", decimal.NewFromInt(2)),
			NetworkFee:     getEnvAsDecimal("NETWORK_FEE", decimal.New(1, -5)),
			MinUSD:         getEnvAsDecimal("MIN_TRANSFER_USD", decimal.NewFromInt(20)),
			MaxUSD:         getEnvAsDecimal("MAX_TRANSFER_USD", decimal.NewFromInt(5000)),
		},
		Rates: RatesConfig{
			SourceURL:       getEnv("RATES_SOURCE_URL", ""),
			APIKey:          getEnv("RATES_API_KEY", ""),
			RefreshInterval: getEnvAsDuration("RATES_REFRESH_INTERVAL", 10*time.Minute),
			MaxAge:          getEnvAsDuration("RATES_MAX_AGE", time.Hour),
			Seed:            getEnv("RATES_SEED", "NGN=1550,KES=129.35,GHS=15.2,XLM=8.5,ETH=0.00038"),
		},
		PayoutProvider: strings.ToLower(getEnv("PAYOUT_PROVIDER", "")),
		Reconcile: ReconcileConfig{
			TransferDelay: getEnvAsDuration("RECONCILE_TRANSFER_DELAY", 5*time.Minute),
			DepositDelay:  getEnvAsDuration("RECONCILE_DEPOSIT_DELAY", 30*time.Minute),
			PollInterval:  getEnvAsDuration("RECONCILE_POLL_INTERVAL", 15*time.Second),
			SweepAge:      getEnvAsDuration("RECONCILE_SWEEP_AGE", time.Hour),
			SweepInterval: getEnvAsDuration("RECONCILE_SWEEP_INTERVAL", 10*time.Minute),
		},
	}

	if v := getEnv("ETHEREUM_CHAIN_ID", ""); v != "" {
		chainID, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("invalid ETHEREUM_CHAIN_ID: %s", v)
		}
		cfg.Ledger.EthereumChainID = chainID
	}

	cfg.loadProviders()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadProviders reads PROVIDER_<NAME>_* for every known provider. A provider
// without a base URL is left out.
func (c *Config) loadProviders() {
	c.Providers = make(map[string]ProviderConfig)
	for _, name := range ProviderNames {
		prefix := fmt.Sprintf("PROVIDER_%s_", strings.ToUpper(name))
		p := ProviderConfig{
			BaseURL:           getEnv(prefix+"BASE_URL", ""),
			APIKey:            getEnv(prefix+"API_KEY", ""),
			WebhookSecret:     getEnv(prefix+"WEBHOOK_SECRET", ""),
			RequestsPerSecond: getEnvAsFloat(prefix+"RPS", 5),
			Timeout:           getEnvAsDuration(prefix+"TIMEOUT", 30*time.Second),
		}
		if p.BaseURL == "" {
			continue
		}
		c.Providers[name] = p
	}
}

func (c *Config) validate() error {
	if c.Security.MasterKey == "" {
		return fmt.Errorf("MASTER_ENCRYPTION_KEY is required")
	}
	if c.Policy.MinUSD.GreaterThan(c.Policy.MaxUSD) {
		return fmt.Errorf("MIN_TRANSFER_USD %s exceeds MAX_TRANSFER_USD %s", c.Policy.MinUSD, c.Policy.MaxUSD)
	}
	if c.PayoutProvider != "" {
		if _, ok := c.Providers[c.PayoutProvider]; !ok {
			return fmt.Errorf("PAYOUT_PROVIDER %s has no PROVIDER_%s_BASE_URL", c.PayoutProvider, strings.ToUpper(c.PayoutProvider))
		}
	}
	if c.Ledger.EthereumEnabled && c.Ledger.EthereumRPCURL == "" {
		return fmt.Errorf("ETHEREUM_RPC_URL is required when ETHEREUM_ENABLED=true")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolVal, err := strconv.ParseBool(value)
		if err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvSlice(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
