package contracts

import (
	"fmt"
	"time"
)

// ScanState is the lifecycle state of a discovery scan
type ScanState string

const (
	ScanStateInitiated ScanState = "initiated"
	ScanStateScanning  ScanState = "scanning"
	ScanStatePartial   ScanState = "partial"
	ScanStateComplete  ScanState = "complete"
	ScanStateFailed    ScanState = "failed"

	// ScanStateNotFound is synthetic: produced on the read path when the
	// lookup cannot be resolved in either cache layer. Never stored.
	ScanStateNotFound ScanState = "not_found"
)

// IsTerminal reports whether the state admits no further mutation
func (s ScanState) IsTerminal() bool {
	return s == ScanStateComplete || s == ScanStateFailed
}

// RiskTolerance hints how aggressive the strategy thresholds should be
type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskBalanced     RiskTolerance = "balanced"
	RiskAggressive   RiskTolerance = "aggressive"
)

// ScanRequest describes one discovery scan as accepted from a caller.
// Immutable once accepted.
type ScanRequest struct {
	UserID        string        `json:"user_id"`
	ForceRefresh  bool          `json:"force_refresh"`
	Limit         int           `json:"limit,omitempty"`
	MinConfidence float64       `json:"min_confidence,omitempty"`
	RiskTolerance RiskTolerance `json:"risk_tolerance,omitempty"`
}

// Validate checks structural preconditions of a request
func (r *ScanRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if r.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	if r.MinConfidence < 0 || r.MinConfidence > 100 {
		return fmt.Errorf("min_confidence must be within [0, 100]")
	}
	switch r.RiskTolerance {
	case "", RiskConservative, RiskBalanced, RiskAggressive:
	default:
		return fmt.Errorf("unknown risk_tolerance: %s", r.RiskTolerance)
	}
	return nil
}

// StrategyStatus is the terminal outcome of one strategy inside a scan
type StrategyStatus string

const (
	StrategyStatusCompleted StrategyStatus = "completed"
	StrategyStatusError     StrategyStatus = "error"
	StrategyStatusTimedOut  StrategyStatus = "timed_out"
)

// StrategyPerformance records how one strategy fared during a scan.
// ElapsedMS is milliseconds, matching its wire name.
type StrategyPerformance struct {
	Status             StrategyStatus `json:"status"`
	OpportunitiesFound int            `json:"opportunities_found"`
	ElapsedMS          int64          `json:"elapsed_ms"`
	Error              string         `json:"error,omitempty"`
}

// ScanRecord is the mutable unit of scan state shared between the
// orchestrator, the result store and the status gateway.
// ⭐ SSOT: 스캔 상태는 이 레코드로만 표현
type ScanRecord struct {
	ScanID   string    `json:"scan_id"`
	CacheKey string    `json:"cache_key"`
	UserID   string    `json:"user_id"`
	State    ScanState `json:"state"`

	StrategiesTotal     int `json:"strategies_total"`
	StrategiesCompleted int `json:"strategies_completed"`

	// Opportunities preserve discovery (insertion) order, not rank.
	Opportunities []Opportunity `json:"opportunities"`

	StrategyPerformance map[string]StrategyPerformance `json:"strategy_performance"`

	StartedAt     time.Time `json:"started_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// NewScanRecord builds the placeholder record written synchronously at
// scan acceptance, before any strategy has run.
func NewScanRecord(scanID, cacheKey, userID string, strategiesTotal int, ttl time.Duration) *ScanRecord {
	now := time.Now().UTC()
	return &ScanRecord{
		ScanID:              scanID,
		CacheKey:            cacheKey,
		UserID:              userID,
		State:               ScanStateInitiated,
		StrategiesTotal:     strategiesTotal,
		StrategiesCompleted: 0,
		Opportunities:       []Opportunity{},
		StrategyPerformance: make(map[string]StrategyPerformance),
		StartedAt:           now,
		LastUpdatedAt:       now,
		ExpiresAt:           now.Add(ttl),
	}
}

// Touch refreshes the sliding expiry window after a write
func (r *ScanRecord) Touch(ttl time.Duration) {
	r.LastUpdatedAt = time.Now().UTC()
	r.ExpiresAt = r.LastUpdatedAt.Add(ttl)
}

// Progress returns completed/total as a ratio in [0, 1]
func (r *ScanRecord) Progress() float64 {
	if r.StrategiesTotal == 0 {
		return 0
	}
	return float64(r.StrategiesCompleted) / float64(r.StrategiesTotal)
}

// Done reports whether every strategy has reached a terminal status
func (r *ScanRecord) Done() bool {
	return r.StrategiesCompleted >= r.StrategiesTotal
}

// Clone returns a deep copy so readers never alias the stored record
func (r *ScanRecord) Clone() *ScanRecord {
	cp := *r
	cp.Opportunities = make([]Opportunity, len(r.Opportunities))
	for i := range r.Opportunities {
		cp.Opportunities[i] = r.Opportunities[i].Clone()
	}
	cp.StrategyPerformance = make(map[string]StrategyPerformance, len(r.StrategyPerformance))
	for k, v := range r.StrategyPerformance {
		cp.StrategyPerformance[k] = v
	}
	return &cp
}
