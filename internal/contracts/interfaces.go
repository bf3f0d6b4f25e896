package contracts

import (
	"context"
	"time"
)

// StrategyEvaluator produces candidate opportunities for a symbol universe.
// ⭐ SSOT: 전략 평가 인터페이스는 여기서만 정의
//
// Evaluate must respect ctx (which carries the per-strategy budget as a
// deadline) and return promptly on expiry rather than blocking past it.
type StrategyEvaluator interface {
	// ID returns the stable strategy identifier (e.g. "momentum")
	ID() string

	// Evaluate scans the universe for this strategy's signals
	Evaluate(ctx context.Context, userID string, universe *Universe) ([]Opportunity, error)
}

// UniverseProvider supplies the tiered symbol set available to a user.
// A failure here is a structural precondition failure of a scan start.
type UniverseProvider interface {
	GetUniverse(ctx context.Context, userID string) (*Universe, error)
}

// ResultStore is the dual-layer scan state repository: fast in-process
// layer in front of a durable shared layer, read-through on miss.
type ResultStore interface {
	// Put writes the record through both layers, refreshing the sliding TTL
	Put(ctx context.Context, record *ScanRecord) error

	// Get returns the record for a cache key, or (nil, nil) when absent
	Get(ctx context.Context, cacheKey string) (*ScanRecord, error)

	// Register writes both lookup entries (scan_id and latest-for-user)
	Register(ctx context.Context, scanID, userID, cacheKey string) error

	// ResolveCacheKey maps scan_id to cache_key, or empty when absent
	ResolveCacheKey(ctx context.Context, scanID string) (string, error)

	// ResolveLatestCacheKey maps user_id to the latest scan's cache_key
	ResolveLatestCacheKey(ctx context.Context, userID string) (string, error)

	// ApplyStrategyResult atomically merges one strategy completion into
	// the record: increments the counter, appends opportunities and
	// upserts the performance entry. The merge is rejected when the
	// stored record no longer belongs to scanID or is already terminal.
	ApplyStrategyResult(ctx context.Context, cacheKey, scanID, strategyID string, opps []Opportunity, perf StrategyPerformance) (*ScanRecord, error)

	// MarkScanning transitions the placeholder into the scanning state
	MarkScanning(ctx context.Context, cacheKey, scanID string) error

	// Finalize transitions the record into a terminal state: pending
	// entries record strategies that never finished (e.g. timed_out),
	// fallback carries market-watch opportunities appended when no
	// strategy produced a qualifying signal.
	Finalize(ctx context.Context, cacheKey, scanID string, state ScanState, pending map[string]StrategyStatus, fallback []Opportunity) (*ScanRecord, error)

	// Unregister removes the lookup entries for a scan, but only once the
	// underlying record is confirmed absent in BOTH layers
	Unregister(ctx context.Context, scanID string) error
}

// ScanHistory archives finalized scans for later inspection
type ScanHistory interface {
	SaveScan(ctx context.Context, record *ScanRecord) error
	RecentScans(ctx context.Context, userID string, limit int) ([]ScanSummary, error)
}

// ScanSummary is a compact row of a finalized, archived scan
type ScanSummary struct {
	ScanID             string    `json:"scan_id"`
	UserID             string    `json:"user_id"`
	State              ScanState `json:"state"`
	OpportunitiesFound int       `json:"opportunities_found"`
	StrategiesTotal    int       `json:"strategies_total"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
}
