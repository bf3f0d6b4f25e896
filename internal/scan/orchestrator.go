package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/internal/store"
	"github.com/cryptouniverse/discovery/internal/strategies"
	"github.com/cryptouniverse/discovery/pkg/config"
	"github.com/cryptouniverse/discovery/pkg/logger"
	"github.com/cryptouniverse/discovery/pkg/redis"
)

// Precondition errors surfaced synchronously by StartScan. Everything
// past acceptance degrades into a partial scan instead of failing.
var (
	ErrNoEligibleStrategies = errors.New("no eligible strategies for user")
	ErrUniverseUnavailable  = errors.New("asset universe unavailable")
	ErrRateLimited          = errors.New("scan start rate limit exceeded")
)

// Confidence floors applied on top of the request's min_confidence.
// Aggressive users see everything the strategies emit.
const (
	floorConservative = 70.0
	floorBalanced     = 40.0
)

// StartResult is what the caller gets back from an accepted scan start
type StartResult struct {
	ScanID   string              `json:"scan_id"`
	CacheKey string              `json:"-"`
	State    contracts.ScanState `json:"state"`

	// Reused is set when a live scan for the same user was returned
	// instead of starting a new fan-out
	Reused bool `json:"reused,omitempty"`
}

// Orchestrator coordinates the discovery scan lifecycle: accept the
// request synchronously, fan strategies out in the background under a
// shared budget, merge completions into the result store.
// ⭐ SSOT: 스캔 수명주기 조율은 여기서만
type Orchestrator struct {
	cfg          *config.Config
	store        contracts.ResultStore
	universe     contracts.UniverseProvider
	registry     *strategies.Registry
	fallback     *strategies.MarketWatchGenerator
	entitlements *Entitlements
	limiter      *redis.RateLimiter
	history      contracts.ScanHistory

	logger *logger.Logger

	// Tracks in-flight fan-outs so shutdown can drain them
	wg sync.WaitGroup
}

// NewOrchestrator creates a scan orchestrator. limiter and history are
// optional: pass nil to disable start throttling or archiving.
func NewOrchestrator(
	cfg *config.Config,
	resultStore contracts.ResultStore,
	universe contracts.UniverseProvider,
	registry *strategies.Registry,
	fallback *strategies.MarketWatchGenerator,
	entitlements *Entitlements,
	limiter *redis.RateLimiter,
	history contracts.ScanHistory,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		store:        resultStore,
		universe:     universe,
		registry:     registry,
		fallback:     fallback,
		entitlements: entitlements,
		limiter:      limiter,
		history:      history,
		logger:       log,
	}
}

// StartScan accepts a discovery request. It does the synchronous
// bookkeeping (eligibility, universe, placeholder write, lookups),
// schedules the fan-out and returns immediately. From the moment this
// returns, polling the scan_id resolves a real record.
func (o *Orchestrator) StartScan(ctx context.Context, req contracts.ScanRequest) (*StartResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cacheKey := store.UserCacheKey(req.UserID)

	// A live scan for the same user is returned as-is unless the caller
	// forces a refresh. Force refresh reuses the cache key with a new
	// scan_id and overwrites the slot.
	if !req.ForceRefresh {
		if existing, err := o.store.Get(ctx, cacheKey); err == nil && existing != nil && !existing.State.IsTerminal() {
			return &StartResult{
				ScanID:   existing.ScanID,
				CacheKey: cacheKey,
				State:    existing.State,
				Reused:   true,
			}, nil
		}
	}

	if err := o.allowStart(ctx, req.UserID); err != nil {
		return nil, err
	}

	eligible := o.entitlements.EligibleStrategies(ctx, req.UserID)
	evaluators := o.registry.Select(eligible)
	if len(evaluators) == 0 {
		return nil, ErrNoEligibleStrategies
	}

	universe, err := o.universe.GetUniverse(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUniverseUnavailable, err)
	}

	scanID := uuid.NewString()
	record := contracts.NewScanRecord(scanID, cacheKey, req.UserID, len(evaluators), o.cfg.Scan.ResultTTL)

	if err := o.store.Register(ctx, scanID, req.UserID, cacheKey); err != nil {
		return nil, fmt.Errorf("register scan lookups: %w", err)
	}
	// Placeholder-write-before-return: a failure here is fatal for the
	// scan, the caller must never receive a scan_id that cannot resolve.
	if err := o.store.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("write scan placeholder: %w", err)
	}

	o.logger.WithFields(map[string]interface{}{
		"scan_id":    scanID,
		"user_id":    req.UserID,
		"strategies": len(evaluators),
		"universe":   universe.Size(),
	}).Info("Scan accepted")

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runScan(req, scanID, cacheKey, evaluators, universe)
	}()

	return &StartResult{ScanID: scanID, CacheKey: cacheKey, State: contracts.ScanStateInitiated}, nil
}

// Drain blocks until every in-flight fan-out has finalized
func (o *Orchestrator) Drain() {
	o.wg.Wait()
}

// allowStart applies the per-user scan-start throttle when a limiter is
// configured. A limiter failure never blocks a scan.
func (o *Orchestrator) allowStart(ctx context.Context, userID string) error {
	if o.limiter == nil {
		return nil
	}

	allowed, _, err := o.limiter.Allow(ctx, redis.ScanStartRateLimit(userID))
	if err != nil {
		o.logger.WithError(err).WithField("user_id", userID).
			Warn("Rate limiter unavailable, allowing scan start")
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// runScan executes the bounded fan-out for one accepted scan. It runs
// detached from the request context: the caller has already returned.
func (o *Orchestrator) runScan(req contracts.ScanRequest, scanID, cacheKey string, evaluators []contracts.StrategyEvaluator, universe *contracts.Universe) {
	startedAt := time.Now()
	deadline := startedAt.Add(o.cfg.Scan.OverallBudget)

	scanCtx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	if err := o.store.MarkScanning(scanCtx, cacheKey, scanID); err != nil {
		if errors.Is(err, store.ErrStaleScan) {
			// A forced refresh reclaimed the slot before we started
			o.logger.WithField("scan_id", scanID).Debug("Scan superseded before fan-out")
			return
		}
		o.logger.WithError(err).WithField("scan_id", scanID).Error("Mark scanning failed")
		o.finalize(scanID, cacheKey, contracts.ScanStateFailed, evaluators, universe)
		return
	}

	threshold := effectiveMinConfidence(req)

	// Bounded fan-out: the semaphore protects the shared price feed,
	// the join waits for all strategies or the overall deadline,
	// whichever comes first. Stragglers are abandoned, not killed;
	// their late merges are rejected by the store.
	sem := make(chan struct{}, o.cfg.Scan.Concurrency)
	var wg sync.WaitGroup

	for _, evaluator := range evaluators {
		wg.Add(1)
		go func(ev contracts.StrategyEvaluator) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-scanCtx.Done():
				return
			}

			o.runStrategy(scanCtx, deadline, req.UserID, scanID, cacheKey, ev, universe, threshold)
		}(evaluator)
	}

	joined := make(chan struct{})
	go func() {
		wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-scanCtx.Done():
		o.logger.WithFields(map[string]interface{}{
			"scan_id": scanID,
			"elapsed": time.Since(startedAt).Seconds(),
		}).Warn("Overall scan deadline reached, finalizing with stragglers pending")
	}

	o.finalize(scanID, cacheKey, contracts.ScanStateComplete, evaluators, universe)
}

// runStrategy evaluates one strategy under its remaining budget and
// merges whatever it produced into the scan record.
func (o *Orchestrator) runStrategy(scanCtx context.Context, deadline time.Time, userID, scanID, cacheKey string, ev contracts.StrategyEvaluator, universe *contracts.Universe, threshold float64) {
	// Remaining budget: the per-strategy cap, tightened by however much
	// of the overall window is left. Recomputed here so early finishers
	// leave more room for strategies queued behind the semaphore.
	budget := o.cfg.Scan.StrategyBudget
	if remaining := time.Until(deadline); remaining < budget {
		budget = remaining
	}
	if budget <= 0 {
		return
	}

	strategyCtx, cancel := context.WithTimeout(scanCtx, budget)
	defer cancel()

	started := time.Now()
	opps, err := ev.Evaluate(strategyCtx, userID, universe)
	elapsed := time.Since(started)

	perf := contracts.StrategyPerformance{
		Status:    contracts.StrategyStatusCompleted,
		ElapsedMS: elapsed.Milliseconds(),
	}

	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		perf.Status = contracts.StrategyStatusTimedOut
		perf.Error = "budget exceeded"
	default:
		perf.Status = contracts.StrategyStatusError
		perf.Error = err.Error()
		o.logger.WithError(err).WithFields(map[string]interface{}{
			"scan_id":  scanID,
			"strategy": ev.ID(),
			"user_id":  userID,
			"elapsed":  elapsed.Seconds(),
		}).Warn("Strategy evaluation failed")
	}

	qualified := filterByConfidence(opps, threshold)
	perf.OpportunitiesFound = len(qualified)

	if _, err := o.store.ApplyStrategyResult(scanCtx, cacheKey, scanID, ev.ID(), qualified, perf); err != nil {
		if errors.Is(err, store.ErrStaleScan) {
			o.logger.WithFields(map[string]interface{}{
				"scan_id":  scanID,
				"strategy": ev.ID(),
			}).Debug("Late strategy result discarded")
			return
		}
		o.logger.WithError(err).WithField("scan_id", scanID).Warn("Strategy result merge failed")
	}
}

// finalize transitions the record to its terminal state, marking
// strategies that never reported and appending fallback opportunities
// when the scan would otherwise come back empty.
func (o *Orchestrator) finalize(scanID, cacheKey string, state contracts.ScanState, evaluators []contracts.StrategyEvaluator, universe *contracts.Universe) {
	// Finalization gets its own short window: the scan deadline may
	// already be behind us.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	current, err := o.store.Get(ctx, cacheKey)
	if err != nil || current == nil || current.ScanID != scanID {
		o.logger.WithField("scan_id", scanID).Warn("Scan record gone before finalization")
		return
	}

	pending := make(map[string]contracts.StrategyStatus)
	for _, ev := range evaluators {
		if _, reported := current.StrategyPerformance[ev.ID()]; !reported {
			pending[ev.ID()] = contracts.StrategyStatusTimedOut
		}
	}

	var fallback []contracts.Opportunity
	if state == contracts.ScanStateComplete && len(current.Opportunities) == 0 {
		fallback = o.fallback.Generate(ctx, universe)
	}

	final, err := o.store.Finalize(ctx, cacheKey, scanID, state, pending, fallback)
	if err != nil {
		if !errors.Is(err, store.ErrStaleScan) {
			o.logger.WithError(err).WithField("scan_id", scanID).Error("Scan finalization failed")
		}
		return
	}

	o.logger.WithFields(map[string]interface{}{
		"scan_id":       scanID,
		"state":         string(final.State),
		"opportunities": len(final.Opportunities),
		"completed":     final.StrategiesCompleted,
		"total":         final.StrategiesTotal,
		"timed_out":     len(pending),
	}).Info("Scan finalized")

	o.archive(final)
}

// archive persists the finalized record, best effort
func (o *Orchestrator) archive(record *contracts.ScanRecord) {
	if o.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := o.history.SaveScan(ctx, record); err != nil {
		o.logger.WithError(err).WithField("scan_id", record.ScanID).
			Warn("Scan archive failed")
	}
}

// effectiveMinConfidence combines the explicit min_confidence with the
// floor implied by the user's risk tolerance
func effectiveMinConfidence(req contracts.ScanRequest) float64 {
	floor := 0.0
	switch req.RiskTolerance {
	case contracts.RiskConservative:
		floor = floorConservative
	case contracts.RiskBalanced:
		floor = floorBalanced
	}

	if req.MinConfidence > floor {
		return req.MinConfidence
	}
	return floor
}

// filterByConfidence keeps opportunities at or above the threshold
func filterByConfidence(opps []contracts.Opportunity, threshold float64) []contracts.Opportunity {
	if threshold <= 0 {
		return opps
	}

	kept := make([]contracts.Opportunity, 0, len(opps))
	for _, opp := range opps {
		if opp.Confidence >= threshold {
			kept = append(kept, opp)
		}
	}
	return kept
}
