package strategies

import (
	"context"
	"time"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/internal/marketdata"
	"github.com/cryptouniverse/discovery/pkg/logger"
)

// breakoutProximity is how close (fraction of last price) to the 24h
// high a symbol must trade to count as testing the level
const breakoutProximity = 0.005

// BreakoutEvaluator signals symbols pressing against their 24h extremes
type BreakoutEvaluator struct {
	source marketdata.Source
	logger *logger.Logger
}

// NewBreakoutEvaluator creates a new breakout evaluator
func NewBreakoutEvaluator(source marketdata.Source, log *logger.Logger) *BreakoutEvaluator {
	return &BreakoutEvaluator{
		source: source,
		logger: log,
	}
}

// ID returns the strategy identifier
func (e *BreakoutEvaluator) ID() string {
	return "breakout"
}

// Evaluate scans the universe for range-edge setups
func (e *BreakoutEvaluator) Evaluate(ctx context.Context, userID string, universe *contracts.Universe) ([]contracts.Opportunity, error) {
	stats, err := e.source.BatchStats(ctx, universe.Symbols())
	if err != nil {
		return nil, err
	}

	var opportunities []contracts.Opportunity

	for symbol, s := range stats {
		if err := ctx.Err(); err != nil {
			return opportunities, err
		}
		if s.LastPrice == 0 || s.High24h == 0 {
			continue
		}

		distance := (s.High24h - s.LastPrice) / s.LastPrice
		if distance < 0 || distance > breakoutProximity {
			continue
		}

		// Tighter to the level and wider range both raise conviction
		confidence := 55 + (1-distance/breakoutProximity)*25 + s.Range24h()*50
		if confidence > 95 {
			confidence = 95
		}

		opportunities = append(opportunities, contracts.Opportunity{
			Symbol:          symbol,
			Strategy:        e.ID(),
			Type:            contracts.OpportunityTypeBreakout,
			Confidence:      confidence,
			Action:          contracts.ActionBuy,
			EntryPrice:      contracts.Float(s.High24h),
			StopLoss:        contracts.Float((s.High24h + s.Low24h) / 2),
			ProfitPotential: contracts.Float(s.Range24h() * 100),
			Metadata: map[string]interface{}{
				"high_24h":         s.High24h,
				"distance_to_high": distance,
				"tier":             universe.Tier(symbol),
			},
			DiscoveredAt: time.Now().UTC(),
		})
	}

	e.logger.WithFields(map[string]interface{}{
		"strategy": e.ID(),
		"symbols":  len(stats),
		"found":    len(opportunities),
	}).Debug("Breakout evaluation finished")

	return opportunities, nil
}
