package strategies

import (
	"context"
	"math"
	"time"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/internal/marketdata"
	"github.com/cryptouniverse/discovery/pkg/logger"
)

// Momentum thresholds
const (
	momentumMinMove = 2.0 // minimum abs 24h change (percent) to signal
	momentumMaxMove = 25.0
)

// MomentumEvaluator signals continuation on strong 24h directional moves
// ⭐ SSOT: 모멘텀 시그널 계산은 여기서만
type MomentumEvaluator struct {
	source marketdata.Source
	logger *logger.Logger
}

// NewMomentumEvaluator creates a new momentum evaluator
func NewMomentumEvaluator(source marketdata.Source, log *logger.Logger) *MomentumEvaluator {
	return &MomentumEvaluator{
		source: source,
		logger: log,
	}
}

// ID returns the strategy identifier
func (e *MomentumEvaluator) ID() string {
	return "momentum"
}

// Evaluate scans the universe for momentum signals
func (e *MomentumEvaluator) Evaluate(ctx context.Context, userID string, universe *contracts.Universe) ([]contracts.Opportunity, error) {
	stats, err := e.source.BatchStats(ctx, universe.Symbols())
	if err != nil {
		return nil, err
	}

	var opportunities []contracts.Opportunity

	for symbol, s := range stats {
		if err := ctx.Err(); err != nil {
			return opportunities, err
		}

		move := s.Change24h
		if math.Abs(move) < momentumMinMove {
			continue
		}

		action := contracts.ActionBuy
		if move < 0 {
			action = contracts.ActionSell
		}

		// Scale confidence with move size, capped at the blow-off region
		strength := math.Min(math.Abs(move), momentumMaxMove) / momentumMaxMove
		confidence := 50 + strength*45

		entry := s.LastPrice
		stop := entry * (1 - 0.03)
		target := entry * (1 + math.Abs(move)/200)
		if action == contracts.ActionSell {
			stop = entry * (1 + 0.03)
			target = entry * (1 - math.Abs(move)/200)
		}

		opportunities = append(opportunities, contracts.Opportunity{
			Symbol:          symbol,
			Strategy:        e.ID(),
			Type:            contracts.OpportunityTypeMomentum,
			Confidence:      confidence,
			Action:          action,
			EntryPrice:      contracts.Float(entry),
			StopLoss:        contracts.Float(stop),
			TakeProfit:      contracts.Float(target),
			ProfitPotential: contracts.Float(math.Abs(target-entry) / entry * 100),
			Metadata: map[string]interface{}{
				"change_24h": s.Change24h,
				"tier":       universe.Tier(symbol),
			},
			DiscoveredAt: time.Now().UTC(),
		})
	}

	e.logger.WithFields(map[string]interface{}{
		"strategy": e.ID(),
		"symbols":  len(stats),
		"found":    len(opportunities),
	}).Debug("Momentum evaluation finished")

	return opportunities, nil
}
