package contracts

import "time"

// OpportunityType categorizes a discovered trading signal
type OpportunityType string

const (
	OpportunityTypeMomentum      OpportunityType = "momentum"
	OpportunityTypeMeanReversion OpportunityType = "mean_reversion"
	OpportunityTypeBreakout      OpportunityType = "breakout"
	OpportunityTypeVolatility    OpportunityType = "volatility"
	OpportunityTypeVolumeSurge   OpportunityType = "volume_surge"

	// OpportunityTypeMarketWatch marks fallback-tier opportunities emitted
	// only when no strategy produced a qualifying signal. Must stay
	// distinguishable from genuine strategy output.
	OpportunityTypeMarketWatch OpportunityType = "market_watch"
)

// Suggested actions
const (
	ActionBuy   = "buy"
	ActionSell  = "sell"
	ActionWatch = "watch"
)

// Opportunity is a discovered trading signal.
//
// ProfitPotential, EntryPrice, ExitPrice, StopLoss and TakeProfit are
// nullable: a nil pointer means the strategy did not provide the field
// (absent or explicit null upstream). Numeric code must go through
// FloatOrDefault rather than dereferencing.
type Opportunity struct {
	Symbol     string          `json:"symbol"`
	Strategy   string          `json:"strategy"`
	Type       OpportunityType `json:"type"`
	Confidence float64         `json:"confidence"` // 0-100
	Action     string          `json:"action"`

	ProfitPotential *float64 `json:"profit_potential"`
	EntryPrice      *float64 `json:"entry_price"`
	ExitPrice       *float64 `json:"exit_price"`
	StopLoss        *float64 `json:"stop_loss"`
	TakeProfit      *float64 `json:"take_profit"`

	Fallback     bool                   `json:"fallback,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	DiscoveredAt time.Time              `json:"discovered_at"`
}

// IsFallback reports whether this is a fallback-tier market-watch entry
func (o *Opportunity) IsFallback() bool {
	return o.Fallback || o.Type == OpportunityTypeMarketWatch
}

// Clone returns a copy whose pointer fields and metadata do not alias
// the receiver.
func (o Opportunity) Clone() Opportunity {
	cp := o
	cp.ProfitPotential = cloneFloat(o.ProfitPotential)
	cp.EntryPrice = cloneFloat(o.EntryPrice)
	cp.ExitPrice = cloneFloat(o.ExitPrice)
	cp.StopLoss = cloneFloat(o.StopLoss)
	cp.TakeProfit = cloneFloat(o.TakeProfit)
	if o.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(o.Metadata))
		for k, v := range o.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// FloatOrDefault resolves a nullable numeric field: nil (absent or
// explicit null) yields the documented fallback value.
func FloatOrDefault(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// Float returns a pointer to v, for building nullable fields inline
func Float(v float64) *float64 {
	return &v
}
