package strategies

import (
	"context"
	"time"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/internal/marketdata"
	"github.com/cryptouniverse/discovery/pkg/logger"
)

const (
	// marketWatchCount is how many fallback entries one scan emits
	marketWatchCount = 3

	// marketWatchConfidence sits below every genuine strategy threshold
	marketWatchConfidence = 35.0
)

// MarketWatchGenerator emits low-priority fallback opportunities from
// the highest-activity symbols. It runs only when every strategy's
// thresholds filtered all candidates out, so an active user with
// eligible strategies never sees a structurally empty scan. Its output
// is tagged fallback-tier and never mixes with genuine signals.
type MarketWatchGenerator struct {
	source marketdata.Source
	logger *logger.Logger
}

// NewMarketWatchGenerator creates the fallback generator
func NewMarketWatchGenerator(source marketdata.Source, log *logger.Logger) *MarketWatchGenerator {
	return &MarketWatchGenerator{
		source: source,
		logger: log,
	}
}

// Generate builds the fallback opportunities
func (g *MarketWatchGenerator) Generate(ctx context.Context, universe *contracts.Universe) []contracts.Opportunity {
	ranked, err := g.source.TopByQuoteVolume(ctx, marketWatchCount)
	if err != nil || len(ranked) == 0 {
		if err != nil {
			g.logger.WithError(err).Warn("Market-watch fallback could not rank symbols")
		}
		// Degrade to the universe's top tier so the scan still returns
		// something watchable
		ranked = nil
		for _, symbol := range universe.Tier1 {
			if len(ranked) >= marketWatchCount {
				break
			}
			ranked = append(ranked, &marketdata.TickerStats{Symbol: symbol})
		}
	}

	opportunities := make([]contracts.Opportunity, 0, len(ranked))
	for _, s := range ranked {
		opp := contracts.Opportunity{
			Symbol:     s.Symbol,
			Strategy:   "market_watch",
			Type:       contracts.OpportunityTypeMarketWatch,
			Confidence: marketWatchConfidence,
			Action:     contracts.ActionWatch,
			Fallback:   true,
			Metadata: map[string]interface{}{
				"tier":   "market_watch",
				"reason": "no qualifying strategy signals this scan",
			},
			DiscoveredAt: time.Now().UTC(),
		}
		if s.LastPrice > 0 {
			opp.EntryPrice = contracts.Float(s.LastPrice)
			opp.Metadata["quote_volume"] = s.QuoteVolume
		}
		opportunities = append(opportunities, opp)
	}

	return opportunities
}
