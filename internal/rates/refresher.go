// internal/rates/refresher.go
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const cacheKey = "rates:usd"

// RefresherConfig controls where rates come from and how old they may get
type RefresherConfig struct {
	SourceURL string
	APIKey    string
	MaxAge    time.Duration
	CacheTTL  time.Duration
}

// Refresher is a Provider backed by a periodically fetched snapshot. The
// seed table is served until the first successful refresh.
type Refresher struct {
	cfg         RefresherConfig
	httpClient  *http.Client
	redisClient *redis.Client
	logger      *zap.Logger
	current     atomic.Pointer[Table]
}

// ratesPayload is the document served by the rate source and cached in redis
type ratesPayload struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	Timestamp int64                      `json:"timestamp"`
}

func NewRefresher(cfg RefresherConfig, seed *Table, redisClient *redis.Client, logger *zap.Logger) *Refresher {
	r := &Refresher{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		redisClient: redisClient,
		logger:      logger,
	}
	r.current.Store(seed)
	return r
}

// Current returns the latest snapshot. A stale snapshot is still served.
func (r *Refresher) Current(ctx context.Context) (*Table, error) {
	t := r.current.Load()
	if t == nil {
		return nil, errors.New("rate table not loaded")
	}
	if t.IsStale(time.Now(), r.cfg.MaxAge) {
		r.logger.Warn("serving stale rate table",
			zap.Time("as_of", t.AsOf()),
			zap.String("source", t.Source()))
	}
	return t, nil
}

// LoadCached restores the last snapshot from redis, if one is there and it is
// newer than what is in memory.
func (r *Refresher) LoadCached(ctx context.Context) error {
	if r.redisClient == nil {
		return nil
	}
	val, err := r.redisClient.Get(ctx, cacheKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cached rates: %w", err)
	}

	var payload ratesPayload
	if err := json.Unmarshal([]byte(val), &payload); err != nil {
		return fmt.Errorf("failed to decode cached rates: %w", err)
	}
	t, err := payload.table("cache")
	if err != nil {
		return err
	}
	if cur := r.current.Load(); cur == nil || t.AsOf().After(cur.AsOf()) {
		r.current.Store(t)
	}
	return nil
}

// Refresh fetches the source once and swaps the snapshot on success.
func (r *Refresher) Refresh(ctx context.Context) error {
	if r.cfg.SourceURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.SourceURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rate source returned status %d", resp.StatusCode)
	}

	var payload ratesPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode rates: %w", err)
	}
	if payload.Timestamp == 0 {
		payload.Timestamp = time.Now().Unix()
	}

	t, err := payload.table(r.cfg.SourceURL)
	if err != nil {
		return err
	}
	r.current.Store(t)

	if r.redisClient != nil {
		data, _ := json.Marshal(payload)
		if err := r.redisClient.Set(ctx, cacheKey, data, r.cfg.CacheTTL).Err(); err != nil {
			r.logger.Warn("failed to cache rates", zap.Error(err))
		}
	}

	r.logger.Info("rate table refreshed",
		zap.Int("currencies", len(payload.Rates)),
		zap.Time("as_of", t.AsOf()))
	return nil
}

func (p ratesPayload) table(source string) (*Table, error) {
	if p.Base != "" && !strings.EqualFold(p.Base, PivotCurrency) {
		return nil, fmt.Errorf("rate source base must be %s, got %s", PivotCurrency, p.Base)
	}
	if len(p.Rates) == 0 {
		return nil, errors.New("rate source returned no rates")
	}
	return NewTable(p.Rates, time.Unix(p.Timestamp, 0).UTC(), source)
}
