package strategies

import (
	"context"
	"math"
	"time"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/internal/marketdata"
	"github.com/cryptouniverse/discovery/pkg/logger"
)

// Mean reversion thresholds
const (
	reversionMinDrop  = 5.0  // percent drop in 24h before reversion interests us
	reversionOverheat = 12.0 // percent rally considered stretched
)

// MeanReversionEvaluator signals snap-backs on oversold and overbought
// 24h extremes
type MeanReversionEvaluator struct {
	source marketdata.Source
	logger *logger.Logger
}

// NewMeanReversionEvaluator creates a new mean-reversion evaluator
func NewMeanReversionEvaluator(source marketdata.Source, log *logger.Logger) *MeanReversionEvaluator {
	return &MeanReversionEvaluator{
		source: source,
		logger: log,
	}
}

// ID returns the strategy identifier
func (e *MeanReversionEvaluator) ID() string {
	return "mean_reversion"
}

// Evaluate scans the universe for reversion setups
func (e *MeanReversionEvaluator) Evaluate(ctx context.Context, userID string, universe *contracts.Universe) ([]contracts.Opportunity, error) {
	stats, err := e.source.BatchStats(ctx, universe.Symbols())
	if err != nil {
		return nil, err
	}

	var opportunities []contracts.Opportunity

	for symbol, s := range stats {
		if err := ctx.Err(); err != nil {
			return opportunities, err
		}

		var action string
		var stretch float64

		switch {
		case s.Change24h <= -reversionMinDrop:
			// Oversold: expect a bounce toward the 24h midpoint
			action = contracts.ActionBuy
			stretch = -s.Change24h
		case s.Change24h >= reversionOverheat:
			// Overbought: fade the rally
			action = contracts.ActionSell
			stretch = s.Change24h
		default:
			continue
		}

		mid := (s.High24h + s.Low24h) / 2
		entry := s.LastPrice
		confidence := math.Min(45+stretch*2, 90)

		opportunities = append(opportunities, contracts.Opportunity{
			Symbol:          symbol,
			Strategy:        e.ID(),
			Type:            contracts.OpportunityTypeMeanReversion,
			Confidence:      confidence,
			Action:          action,
			EntryPrice:      contracts.Float(entry),
			ExitPrice:       contracts.Float(mid),
			ProfitPotential: profitPotential(entry, mid),
			Metadata: map[string]interface{}{
				"change_24h": s.Change24h,
				"midpoint":   mid,
				"tier":       universe.Tier(symbol),
			},
			DiscoveredAt: time.Now().UTC(),
		})
	}

	e.logger.WithFields(map[string]interface{}{
		"strategy": e.ID(),
		"symbols":  len(stats),
		"found":    len(opportunities),
	}).Debug("Mean-reversion evaluation finished")

	return opportunities, nil
}

// profitPotential returns the percent distance to the exit, or nil when
// the entry is unusable
func profitPotential(entry, exit float64) *float64 {
	if entry == 0 {
		return nil
	}
	return contracts.Float(math.Abs(exit-entry) / entry * 100)
}
