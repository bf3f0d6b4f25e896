package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/pkg/config"
	"github.com/cryptouniverse/discovery/pkg/logger"
)

// ErrRecordLive is returned by Unregister when the underlying record is
// still present in either cache layer. Removing the lookup then would
// orphan a record another worker may still be serving.
var ErrRecordLive = errors.New("scan record still live in a cache layer")

// ErrStaleScan is returned when a merge targets a record that no longer
// belongs to the writing scan (a newer scan overwrote the slot) or that
// has already been finalized. Late straggler results hit this and are
// discarded rather than reopening the record.
var ErrStaleScan = errors.New("scan record is finalized or superseded")

// Store composes the fast in-process layer and the durable shared layer
// into the dual-layer scan result store: write-through on writes,
// read-through repopulation on fast-layer misses.
// ⭐ SSOT: 스캔 상태 저장은 이 스토어를 통해서만
type Store struct {
	fast    *MemoryStore
	durable *DurableStore
	logger  *logger.Logger

	resultTTL time.Duration
	lookupTTL time.Duration

	// Per-cache-key mutexes serialize merges from concurrently
	// completing strategies. The fan-out for one scan runs inside one
	// process, so in-process serialization is sufficient for merge
	// atomicity; the durable layer carries the merged state to readers
	// on other workers.
	keysMu sync.Mutex
	keys   map[string]*sync.Mutex
}

// New creates the dual-layer store
func New(cfg *config.Config, fast *MemoryStore, durable *DurableStore, log *logger.Logger) *Store {
	return &Store{
		fast:      fast,
		durable:   durable,
		logger:    log,
		resultTTL: cfg.Scan.ResultTTL,
		lookupTTL: cfg.Scan.LookupTTL,
		keys:      make(map[string]*sync.Mutex),
	}
}

// keyLock returns the mutex serializing writes for one cache key
func (s *Store) keyLock(cacheKey string) *sync.Mutex {
	s.keysMu.Lock()
	defer s.keysMu.Unlock()

	mu, ok := s.keys[cacheKey]
	if !ok {
		mu = &sync.Mutex{}
		s.keys[cacheKey] = mu
	}
	return mu
}

// Put writes the record through both layers, refreshing the sliding TTL
func (s *Store) Put(ctx context.Context, record *contracts.ScanRecord) error {
	mu := s.keyLock(record.CacheKey)
	mu.Lock()
	defer mu.Unlock()

	return s.writeThrough(ctx, record)
}

// writeThrough performs the actual dual write. Callers hold the key lock.
func (s *Store) writeThrough(ctx context.Context, record *contracts.ScanRecord) error {
	record.Touch(s.resultTTL)
	s.fast.PutRecord(record.CacheKey, record, s.resultTTL)

	if err := s.durable.PutRecord(ctx, record.CacheKey, record, s.resultTTL); err != nil {
		// Degrade to fast-layer-only for this write; reads on other
		// workers will miss until the next successful durable write.
		s.logger.WithError(err).WithField("cache_key", record.CacheKey).
			Warn("Durable write failed, serving from fast layer only")
	}
	return nil
}

// Get returns the record for a cache key, or (nil, nil) when absent.
// A fast-layer miss falls through to the durable layer and repopulates
// the fast layer, so reads landing on a different worker than the one
// executing the fan-out still resolve.
func (s *Store) Get(ctx context.Context, cacheKey string) (*contracts.ScanRecord, error) {
	if record, ok := s.fast.GetRecord(cacheKey); ok {
		return record, nil
	}

	record, err := s.durable.GetRecord(ctx, cacheKey)
	if err != nil {
		s.logger.WithError(err).WithField("cache_key", cacheKey).
			Warn("Durable read failed")
		return nil, nil
	}
	if record == nil {
		return nil, nil
	}

	// Read-through: repopulate the fast layer for subsequent polls
	ttl := time.Until(record.ExpiresAt)
	if ttl > 0 {
		s.fast.PutRecord(cacheKey, record, ttl)
	}

	return record, nil
}

// Register writes both lookup entries: scan_id → cache_key and
// user_id → cache_key (latest scan for that user)
func (s *Store) Register(ctx context.Context, scanID, userID, cacheKey string) error {
	scanKey := scanLookupKey(scanID)
	latestKey := latestLookupKey(userID)

	s.fast.PutLookup(scanKey, cacheKey, s.lookupTTL)
	s.fast.PutLookup(latestKey, cacheKey, s.lookupTTL)

	if err := s.durable.PutLookup(ctx, scanKey, cacheKey, s.lookupTTL); err != nil {
		s.logger.WithError(err).WithField("scan_id", scanID).
			Warn("Durable scan lookup write failed")
	}
	if err := s.durable.PutLookup(ctx, latestKey, cacheKey, s.lookupTTL); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).
			Warn("Durable latest lookup write failed")
	}
	return nil
}

// ResolveCacheKey maps scan_id to cache_key, or empty when absent
func (s *Store) ResolveCacheKey(ctx context.Context, scanID string) (string, error) {
	return s.resolveLookup(ctx, scanLookupKey(scanID))
}

// ResolveLatestCacheKey maps user_id to the latest scan's cache_key
func (s *Store) ResolveLatestCacheKey(ctx context.Context, userID string) (string, error) {
	return s.resolveLookup(ctx, latestLookupKey(userID))
}

// resolveLookup follows the same fast-then-durable read-through pattern
// as Get
func (s *Store) resolveLookup(ctx context.Context, key string) (string, error) {
	if value, ok := s.fast.GetLookup(key); ok {
		return value, nil
	}

	value, err := s.durable.GetLookup(ctx, key)
	if err != nil {
		s.logger.WithError(err).WithField("lookup", key).Warn("Durable lookup read failed")
		return "", nil
	}
	if value == "" {
		return "", nil
	}

	s.fast.PutLookup(key, value, s.lookupTTL)
	return value, nil
}

// loadForWrite fetches the current record for a merge. Callers hold the
// key lock.
func (s *Store) loadForWrite(ctx context.Context, cacheKey, scanID string) (*contracts.ScanRecord, error) {
	record, err := s.Get(ctx, cacheKey)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("scan record missing for %s: %w", cacheKey, ErrStaleScan)
	}
	if record.ScanID != scanID || record.State.IsTerminal() {
		return nil, ErrStaleScan
	}
	return record, nil
}

// MarkScanning transitions the placeholder into the scanning state
func (s *Store) MarkScanning(ctx context.Context, cacheKey, scanID string) error {
	mu := s.keyLock(cacheKey)
	mu.Lock()
	defer mu.Unlock()

	record, err := s.loadForWrite(ctx, cacheKey, scanID)
	if err != nil {
		return err
	}
	if record.State != contracts.ScanStateInitiated {
		return nil
	}

	record.State = contracts.ScanStateScanning
	return s.writeThrough(ctx, record)
}

// ApplyStrategyResult atomically merges one strategy completion:
// increment the counter, append opportunities, upsert the performance
// entry. Appends from different strategies never clobber each other
// because the merge happens under the key lock against the freshest
// record.
func (s *Store) ApplyStrategyResult(ctx context.Context, cacheKey, scanID, strategyID string, opps []contracts.Opportunity, perf contracts.StrategyPerformance) (*contracts.ScanRecord, error) {
	mu := s.keyLock(cacheKey)
	mu.Lock()
	defer mu.Unlock()

	record, err := s.loadForWrite(ctx, cacheKey, scanID)
	if err != nil {
		return nil, err
	}

	if _, seen := record.StrategyPerformance[strategyID]; !seen {
		record.StrategiesCompleted++
	}
	record.Opportunities = append(record.Opportunities, opps...)
	record.StrategyPerformance[strategyID] = perf

	// Terminal transition is the orchestrator's call (Finalize); until
	// then the record is partial, even once every strategy has reported.
	record.State = contracts.ScanStatePartial

	if err := s.writeThrough(ctx, record); err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// Finalize transitions the record into a terminal state. Strategies
// listed in pending never reported and get their terminal performance
// status here. Fallback opportunities are appended only when the record
// is still empty under the key lock, so a straggler merging between the
// orchestrator's emptiness check and finalization keeps its genuine
// results free of fallback entries.
func (s *Store) Finalize(ctx context.Context, cacheKey, scanID string, state contracts.ScanState, pending map[string]contracts.StrategyStatus, fallback []contracts.Opportunity) (*contracts.ScanRecord, error) {
	if !state.IsTerminal() {
		return nil, fmt.Errorf("finalize requires a terminal state, got %s", state)
	}

	mu := s.keyLock(cacheKey)
	mu.Lock()
	defer mu.Unlock()

	record, err := s.loadForWrite(ctx, cacheKey, scanID)
	if err != nil {
		return nil, err
	}

	for strategyID, status := range pending {
		if _, seen := record.StrategyPerformance[strategyID]; seen {
			continue
		}
		record.StrategyPerformance[strategyID] = contracts.StrategyPerformance{Status: status}
	}

	if len(record.Opportunities) == 0 {
		record.Opportunities = append(record.Opportunities, fallback...)
	}
	record.State = state

	if err := s.writeThrough(ctx, record); err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// Unregister removes the scan_id lookup, but only once the underlying
// record is confirmed absent in BOTH layers. Checking only the fast
// layer here caused a production race where durable, still-valid
// records became unreachable right after a successful scan.
// The user-latest lookup expires on its own TTL: it points at the
// user's slot, which a newer scan may have reclaimed.
func (s *Store) Unregister(ctx context.Context, scanID string) error {
	scanKey := scanLookupKey(scanID)

	cacheKey, err := s.resolveLookup(ctx, scanKey)
	if err != nil {
		return err
	}
	if cacheKey == "" {
		return nil
	}

	if _, ok := s.fast.GetRecord(cacheKey); ok {
		return ErrRecordLive
	}

	durableRecord, err := s.durable.GetRecord(ctx, cacheKey)
	if err != nil {
		// Cannot confirm absence: keep the lookup
		return fmt.Errorf("confirm durable absence: %w", err)
	}
	if durableRecord != nil {
		return ErrRecordLive
	}

	s.fast.DeleteLookup(scanKey)
	if err := s.durable.DeleteLookup(ctx, scanKey); err != nil {
		s.logger.WithError(err).WithField("scan_id", scanID).
			Warn("Durable lookup delete failed")
	}
	return nil
}

// CleanExpired drops expired fast-layer entries; redis expires its own
func (s *Store) CleanExpired() int {
	return s.fast.CleanExpired()
}
