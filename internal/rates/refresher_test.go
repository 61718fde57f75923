package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSeed(t *testing.T) *Table {
	t.Helper()
	seed, err := NewTable(map[string]decimal.Decimal{"NGN": decimal.NewFromInt(1500)}, time.Unix(1000, 0), "seed")
	require.NoError(t, err)
	return seed
}

func TestRefresherRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"NGN":1600.5,"KES":"130"},"timestamp":1760000000}`))
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	r := NewRefresher(RefresherConfig{SourceURL: srv.URL, APIKey: "secret", CacheTTL: time.Hour}, newSeed(t), rdb, zap.NewNop())
	require.NoError(t, r.Refresh(context.Background()))

	table, err := r.Current(context.Background())
	require.NoError(t, err)
	rate, err := table.Rate("NGN")
	require.NoError(t, err)
	assert.Equal(t, "1600.5", rate.String())
	assert.Equal(t, int64(1760000000), table.AsOf().Unix())

	assert.True(t, mr.Exists(cacheKey))

	// a fresh process restores the cached snapshot
	restored := NewRefresher(RefresherConfig{}, newSeed(t), rdb, zap.NewNop())
	require.NoError(t, restored.LoadCached(context.Background()))
	table, err = restored.Current(context.Background())
	require.NoError(t, err)
	rate, err = table.Rate("KES")
	require.NoError(t, err)
	assert.Equal(t, "130", rate.String())
}

func TestRefresherKeepsSeedOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	seed := newSeed(t)
	r := NewRefresher(RefresherConfig{SourceURL: srv.URL}, seed, nil, zap.NewNop())
	assert.Error(t, r.Refresh(context.Background()))

	table, err := r.Current(context.Background())
	require.NoError(t, err)
	assert.Same(t, seed, table)
}

func TestRefresherRejectsWrongBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"base":"EUR","rates":{"NGN":1700}}`))
	}))
	defer srv.Close()

	r := NewRefresher(RefresherConfig{SourceURL: srv.URL}, newSeed(t), nil, zap.NewNop())
	assert.Error(t, r.Refresh(context.Background()))
}
