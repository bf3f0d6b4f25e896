package strategies

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cryptouniverse/discovery/internal/contracts"
)

// rawOpportunity is the loose wire shape external strategy engines
// publish. Numeric fields may be absent, explicitly null, or present;
// all three must survive decoding.
type rawOpportunity struct {
	Symbol          string                 `json:"symbol"`
	Type            string                 `json:"type"`
	Confidence      *float64               `json:"confidence"`
	Action          string                 `json:"action"`
	ProfitPotential *float64               `json:"profit_potential"`
	EntryPrice      *float64               `json:"entry_price"`
	ExitPrice       *float64               `json:"exit_price"`
	StopLoss        *float64               `json:"stop_loss"`
	TakeProfit      *float64               `json:"take_profit"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// DecodeStrategyPayload converts a loose external strategy payload into
// strict internal opportunities. Present-but-null numeric fields resolve
// to their documented fallbacks here, at the boundary, never later in
// numeric code.
func DecodeStrategyPayload(strategyID string, payload []byte) ([]contracts.Opportunity, error) {
	var raw []rawOpportunity
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", strategyID, err)
	}

	opportunities := make([]contracts.Opportunity, 0, len(raw))

	for i, r := range raw {
		if r.Symbol == "" {
			return nil, fmt.Errorf("decode %s payload: entry %d has no symbol", strategyID, i)
		}

		oppType := contracts.OpportunityType(r.Type)
		if r.Type == "" {
			oppType = contracts.OpportunityType(strategyID)
		}

		action := r.Action
		if action == "" {
			action = contracts.ActionWatch
		}

		opportunities = append(opportunities, contracts.Opportunity{
			Symbol:   r.Symbol,
			Strategy: strategyID,
			Type:     oppType,
			// Null confidence means the engine could not score the
			// signal; it enters as zero and is filtered downstream.
			Confidence:      contracts.FloatOrDefault(r.Confidence, 0),
			Action:          action,
			ProfitPotential: r.ProfitPotential,
			EntryPrice:      r.EntryPrice,
			ExitPrice:       r.ExitPrice,
			StopLoss:        r.StopLoss,
			TakeProfit:      r.TakeProfit,
			Metadata:        r.Metadata,
			DiscoveredAt:    time.Now().UTC(),
		})
	}

	return opportunities, nil
}
