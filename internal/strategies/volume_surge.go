package strategies

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/internal/marketdata"
	"github.com/cryptouniverse/discovery/pkg/logger"
)

// volumeSurgeFactor is the multiple of the universe's median quote
// volume that counts as a surge
const volumeSurgeFactor = 4.0

// VolumeSurgeEvaluator flags symbols trading at a multiple of the
// universe's typical activity
type VolumeSurgeEvaluator struct {
	source marketdata.Source
	logger *logger.Logger
}

// NewVolumeSurgeEvaluator creates a new volume-surge evaluator
func NewVolumeSurgeEvaluator(source marketdata.Source, log *logger.Logger) *VolumeSurgeEvaluator {
	return &VolumeSurgeEvaluator{
		source: source,
		logger: log,
	}
}

// ID returns the strategy identifier
func (e *VolumeSurgeEvaluator) ID() string {
	return "volume_surge"
}

// Evaluate scans the universe for unusual activity
func (e *VolumeSurgeEvaluator) Evaluate(ctx context.Context, userID string, universe *contracts.Universe) ([]contracts.Opportunity, error) {
	stats, err := e.source.BatchStats(ctx, universe.Symbols())
	if err != nil {
		return nil, err
	}

	median := medianQuoteVolume(stats)
	if median == 0 {
		return nil, nil
	}

	var opportunities []contracts.Opportunity

	for symbol, s := range stats {
		if err := ctx.Err(); err != nil {
			return opportunities, err
		}

		ratio := s.QuoteVolume / median
		if ratio < volumeSurgeFactor {
			continue
		}

		action := contracts.ActionWatch
		if s.Change24h > 1.0 {
			action = contracts.ActionBuy
		} else if s.Change24h < -1.0 {
			action = contracts.ActionSell
		}

		confidence := math.Min(50+math.Log2(ratio)*10, 90)

		opportunities = append(opportunities, contracts.Opportunity{
			Symbol:     symbol,
			Strategy:   e.ID(),
			Type:       contracts.OpportunityTypeVolumeSurge,
			Confidence: confidence,
			Action:     action,
			EntryPrice: contracts.Float(s.LastPrice),
			Metadata: map[string]interface{}{
				"volume_ratio": ratio,
				"quote_volume": s.QuoteVolume,
				"tier":         universe.Tier(symbol),
			},
			DiscoveredAt: time.Now().UTC(),
		})
	}

	e.logger.WithFields(map[string]interface{}{
		"strategy": e.ID(),
		"symbols":  len(stats),
		"found":    len(opportunities),
	}).Debug("Volume-surge evaluation finished")

	return opportunities, nil
}

// medianQuoteVolume returns the median quote volume across snapshots
func medianQuoteVolume(stats map[string]*marketdata.TickerStats) float64 {
	if len(stats) == 0 {
		return 0
	}

	volumes := make([]float64, 0, len(stats))
	for _, s := range stats {
		volumes = append(volumes, s.QuoteVolume)
	}
	sort.Float64s(volumes)

	mid := len(volumes) / 2
	if len(volumes)%2 == 1 {
		return volumes[mid]
	}
	return (volumes[mid-1] + volumes[mid]) / 2
}
