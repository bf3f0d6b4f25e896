package universe

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/internal/marketdata"
	"github.com/cryptouniverse/discovery/pkg/config"
	"github.com/cryptouniverse/discovery/pkg/logger"
	"github.com/cryptouniverse/discovery/pkg/redis"
)

// seedSymbols bootstraps the universe in environments where no feed
// ingester has published ticker snapshots yet.
var seedSymbols = []string{
	"BTC/USDT", "ETH/USDT", "SOL/USDT", "BNB/USDT", "XRP/USDT",
	"ADA/USDT", "DOGE/USDT", "AVAX/USDT", "LINK/USDT", "DOT/USDT",
}

// Provider builds and serves the tiered asset universe
// ⭐ SSOT: 유니버스 생성은 여기서만
type Provider struct {
	cache  *redis.Cache
	source marketdata.Source
	cfg    config.UniverseConfig
	logger *logger.Logger
}

// NewProvider creates a new universe provider
func NewProvider(cfg *config.Config, cache *redis.Cache, source marketdata.Source, log *logger.Logger) *Provider {
	return &Provider{
		cache:  cache,
		source: source,
		cfg:    cfg.Universe,
		logger: log,
	}
}

// GetUniverse returns the current tiered universe for a user. The
// universe is shared across users; per-user entitlement is handled by
// strategy eligibility, not by symbol visibility.
func (p *Provider) GetUniverse(ctx context.Context, userID string) (*contracts.Universe, error) {
	var universe contracts.Universe
	found, err := p.cache.Get(ctx, redis.UniverseSnapshotKey(), &universe)
	if err != nil {
		p.logger.WithError(err).Warn("Universe snapshot read failed, rebuilding")
	}
	if found && universe.Size() > 0 {
		return &universe, nil
	}

	rebuilt, err := p.Rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve universe: %w", err)
	}

	return rebuilt, nil
}

// Rebuild reconstructs the tiered universe from market activity and
// stores the snapshot for subsequent reads.
func (p *Provider) Rebuild(ctx context.Context) (*contracts.Universe, error) {
	ranked, err := p.source.TopByQuoteVolume(ctx, p.cfg.Tier1Size+p.cfg.Tier2Size)
	if err != nil {
		return nil, fmt.Errorf("rank symbols by activity: %w", err)
	}

	universe := &contracts.Universe{AsOf: time.Now().UTC()}

	for i, stats := range ranked {
		if i < p.cfg.Tier1Size {
			universe.Tier1 = append(universe.Tier1, stats.Symbol)
		} else {
			universe.Tier2 = append(universe.Tier2, stats.Symbol)
		}
	}

	// No feed data yet: fall back to the static seed so development and
	// cold-start environments still have a scannable universe.
	if universe.Size() == 0 {
		p.logger.Warn("No market activity published, using seed universe")
		universe.Tier1 = append(universe.Tier1, seedSymbols...)
	}

	if err := p.cache.Set(ctx, redis.UniverseSnapshotKey(), universe, redis.TTLMedium); err != nil {
		p.logger.WithError(err).Warn("Failed to store universe snapshot")
	}

	p.logger.WithFields(map[string]interface{}{
		"tier1": len(universe.Tier1),
		"tier2": len(universe.Tier2),
	}).Info("Universe rebuilt")

	return universe, nil
}
