package marketdata

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptouniverse/discovery/pkg/config"
	"github.com/cryptouniverse/discovery/pkg/logger"
	"github.com/cryptouniverse/discovery/pkg/redis"
)

func testReader(t *testing.T) (*Reader, redismock.ClientMock) {
	t.Helper()

	rdb, mock := redismock.NewClientMock()
	cfg := &config.Config{
		Env:        "development",
		LogLevel:   "error",
		LogFormat:  "json",
		MarketData: config.MarketDataConfig{RateLimit: 1000, Burst: 1000},
	}
	log := logger.New(cfg)

	return NewReader(cfg, redis.NewFromClient(rdb), log), mock
}

func TestReader_Stats(t *testing.T) {
	reader, mock := testReader(t)

	stats := TickerStats{
		Symbol:      "BTC/USDT",
		LastPrice:   64000,
		Change24h:   3.2,
		High24h:     65000,
		Low24h:      62000,
		QuoteVolume: 1.2e9,
		UpdatedAt:   time.Now().UTC(),
	}
	data, _ := json.Marshal(stats)
	mock.ExpectGet("ticker:stats:BTC/USDT").SetVal(string(data))

	got, err := reader.Stats(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "BTC/USDT", got.Symbol)
	assert.Equal(t, 64000.0, got.LastPrice)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReader_Stats_Missing(t *testing.T) {
	reader, mock := testReader(t)

	mock.ExpectGet("ticker:stats:DOGE/USDT").RedisNil()

	got, err := reader.Stats(context.Background(), "DOGE/USDT")
	require.NoError(t, err)
	assert.Nil(t, got, "unpublished symbol must return nil, not an error")
}

func TestReader_BatchStats_SkipsMissing(t *testing.T) {
	reader, mock := testReader(t)

	btc, _ := json.Marshal(TickerStats{Symbol: "BTC/USDT", LastPrice: 64000, QuoteVolume: 1e9})
	mock.ExpectGet("ticker:stats:BTC/USDT").SetVal(string(btc))
	mock.ExpectGet("ticker:stats:DOGE/USDT").RedisNil()

	got, err := reader.BatchStats(context.Background(), []string{"BTC/USDT", "DOGE/USDT"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "BTC/USDT")
}

func TestReader_TopByQuoteVolume(t *testing.T) {
	reader, mock := testReader(t)

	mock.ExpectSMembers(SymbolIndexKey).SetVal([]string{"BTC/USDT", "ETH/USDT", "SOL/USDT"})

	btc, _ := json.Marshal(TickerStats{Symbol: "BTC/USDT", LastPrice: 64000, QuoteVolume: 1e9})
	eth, _ := json.Marshal(TickerStats{Symbol: "ETH/USDT", LastPrice: 3200, QuoteVolume: 5e8})
	sol, _ := json.Marshal(TickerStats{Symbol: "SOL/USDT", LastPrice: 150, QuoteVolume: 2e9})
	mock.ExpectGet("ticker:stats:BTC/USDT").SetVal(string(btc))
	mock.ExpectGet("ticker:stats:ETH/USDT").SetVal(string(eth))
	mock.ExpectGet("ticker:stats:SOL/USDT").SetVal(string(sol))

	got, err := reader.TopByQuoteVolume(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "SOL/USDT", got[0].Symbol)
	assert.Equal(t, "BTC/USDT", got[1].Symbol)
}

func TestTickerStats_Range24h(t *testing.T) {
	stats := &TickerStats{LastPrice: 100, High24h: 110, Low24h: 90}
	assert.InDelta(t, 0.2, stats.Range24h(), 1e-9)

	zero := &TickerStats{}
	assert.Equal(t, 0.0, zero.Range24h())
}
