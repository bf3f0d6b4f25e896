package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/cryptouniverse/discovery/pkg/config"
	"github.com/cryptouniverse/discovery/pkg/logger"
	"github.com/cryptouniverse/discovery/pkg/redis"
)

// SymbolIndexKey is the redis set holding every symbol the external feed
// ingesters currently publish stats for.
const SymbolIndexKey = "ticker:symbols"

// TickerStats is one symbol's 24h market snapshot, deposited in redis by
// the out-of-process feed ingesters.
type TickerStats struct {
	Symbol      string    `json:"symbol"`
	LastPrice   float64   `json:"last_price"`
	Change24h   float64   `json:"change_24h"` // percent
	High24h     float64   `json:"high_24h"`
	Low24h      float64   `json:"low_24h"`
	BaseVolume  float64   `json:"base_volume"`
	QuoteVolume float64   `json:"quote_volume"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Range24h returns the 24h high-low spread relative to the last price
func (t *TickerStats) Range24h() float64 {
	if t.LastPrice == 0 {
		return 0
	}
	return (t.High24h - t.Low24h) / t.LastPrice
}

// Source provides market snapshots to strategy evaluators
type Source interface {
	Stats(ctx context.Context, symbol string) (*TickerStats, error)
	BatchStats(ctx context.Context, symbols []string) (map[string]*TickerStats, error)
	TopByQuoteVolume(ctx context.Context, n int) ([]*TickerStats, error)
}

// Reader reads ticker snapshots from redis, throttled by a shared
// limiter so concurrent strategies cannot stampede the store.
// ⭐ SSOT: 시세 스냅샷 조회 및 Rate Limit 관리는 이 리더에서만
type Reader struct {
	client  *redis.Client
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewReader creates a new snapshot reader
func NewReader(cfg *config.Config, client *redis.Client, log *logger.Logger) *Reader {
	return &Reader{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.MarketData.RateLimit), cfg.MarketData.Burst),
		logger:  log,
	}
}

// Stats returns the snapshot for one symbol, or (nil, nil) when the feed
// has not published it.
func (r *Reader) Stats(ctx context.Context, symbol string) (*TickerStats, error) {
	if !r.client.Enabled() {
		return nil, fmt.Errorf("market data unavailable: redis disabled")
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("market data rate limit: %w", err)
	}

	data, err := r.client.Redis().Get(ctx, redis.TickerStatsKey(symbol)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch ticker stats for %s: %w", symbol, err)
	}

	var stats TickerStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decode ticker stats for %s: %w", symbol, err)
	}

	return &stats, nil
}

// BatchStats returns snapshots for the given symbols, skipping symbols
// the feed has not published.
func (r *Reader) BatchStats(ctx context.Context, symbols []string) (map[string]*TickerStats, error) {
	out := make(map[string]*TickerStats, len(symbols))

	for _, symbol := range symbols {
		stats, err := r.Stats(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if stats == nil {
			r.logger.WithField("symbol", symbol).Debug("No ticker snapshot published")
			continue
		}
		out[symbol] = stats
	}

	return out, nil
}

// TopByQuoteVolume returns the n highest-activity symbols, used for tier
// assignment and the market-watch fallback.
func (r *Reader) TopByQuoteVolume(ctx context.Context, n int) ([]*TickerStats, error) {
	if !r.client.Enabled() {
		return nil, fmt.Errorf("market data unavailable: redis disabled")
	}

	symbols, err := r.client.Redis().SMembers(ctx, SymbolIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list published symbols: %w", err)
	}

	stats, err := r.BatchStats(ctx, symbols)
	if err != nil {
		return nil, err
	}

	ranked := make([]*TickerStats, 0, len(stats))
	for _, s := range stats {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].QuoteVolume > ranked[j].QuoteVolume
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	return ranked, nil
}
