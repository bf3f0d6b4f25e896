package strategies

import (
	"context"
	"math"
	"time"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/internal/marketdata"
	"github.com/cryptouniverse/discovery/pkg/logger"
)

// volatilityMinRange is the minimum 24h range (fraction of price) that
// counts as an expanded regime
const volatilityMinRange = 0.08

// VolatilityEvaluator flags symbols in an expanded volatility regime.
// These are watch signals: the edge is in the regime, not a direction.
type VolatilityEvaluator struct {
	source marketdata.Source
	logger *logger.Logger
}

// NewVolatilityEvaluator creates a new volatility-regime evaluator
func NewVolatilityEvaluator(source marketdata.Source, log *logger.Logger) *VolatilityEvaluator {
	return &VolatilityEvaluator{
		source: source,
		logger: log,
	}
}

// ID returns the strategy identifier
func (e *VolatilityEvaluator) ID() string {
	return "volatility_regime"
}

// Evaluate scans the universe for expanded-range symbols
func (e *VolatilityEvaluator) Evaluate(ctx context.Context, userID string, universe *contracts.Universe) ([]contracts.Opportunity, error) {
	stats, err := e.source.BatchStats(ctx, universe.Symbols())
	if err != nil {
		return nil, err
	}

	var opportunities []contracts.Opportunity

	for symbol, s := range stats {
		if err := ctx.Err(); err != nil {
			return opportunities, err
		}

		rng := s.Range24h()
		if rng < volatilityMinRange {
			continue
		}

		confidence := math.Min(50+rng*200, 85)

		opportunities = append(opportunities, contracts.Opportunity{
			Symbol:     symbol,
			Strategy:   e.ID(),
			Type:       contracts.OpportunityTypeVolatility,
			Confidence: confidence,
			Action:     contracts.ActionWatch,
			// No entry/exit levels: regime signals carry no direction
			Metadata: map[string]interface{}{
				"range_24h": rng,
				"high_24h":  s.High24h,
				"low_24h":   s.Low24h,
				"tier":      universe.Tier(symbol),
			},
			DiscoveredAt: time.Now().UTC(),
		})
	}

	e.logger.WithFields(map[string]interface{}{
		"strategy": e.ID(),
		"symbols":  len(stats),
		"found":    len(opportunities),
	}).Debug("Volatility evaluation finished")

	return opportunities, nil
}
