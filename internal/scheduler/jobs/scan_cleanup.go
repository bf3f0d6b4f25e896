package jobs

import (
	"context"
	"errors"

	"github.com/cryptouniverse/discovery/internal/history"
	"github.com/cryptouniverse/discovery/internal/store"
	"github.com/cryptouniverse/discovery/pkg/config"
	"github.com/cryptouniverse/discovery/pkg/logger"
)

const (
	// scanCleanupBatch caps how many archived scans one run sweeps
	scanCleanupBatch = 500

	// historyRetentionDays is how long archived scans are kept
	historyRetentionDays = 30
)

// ScanCleanupJob evicts expired entries from the fast cache layer and
// sweeps lookup indices of long-finalized scans. Lookups are only
// removed once the underlying record is gone from both layers, so a
// scan still inside its TTL window keeps resolving.
// ⭐ SSOT: 스캔 캐시 정리 스케줄은 이 Job에서만
type ScanCleanupJob struct {
	store   *store.Store
	history *history.Repository
	config  *config.Config
	logger  *logger.Logger
}

// NewScanCleanupJob creates a new scan cleanup job. history may be nil
// when no database is configured; the job then only sweeps the fast
// layer.
func NewScanCleanupJob(s *store.Store, h *history.Repository, cfg *config.Config, log *logger.Logger) *ScanCleanupJob {
	return &ScanCleanupJob{
		store:   s,
		history: h,
		config:  cfg,
		logger:  log,
	}
}

// Name returns the job name
func (j *ScanCleanupJob) Name() string {
	return "scan_cleanup"
}

// Schedule returns the cron schedule (every 5 minutes, with seconds)
func (j *ScanCleanupJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run executes the cleanup
func (j *ScanCleanupJob) Run(ctx context.Context) error {
	evicted := j.store.CleanExpired()
	if evicted > 0 {
		j.logger.WithField("evicted", evicted).Info("Fast layer entries evicted")
	}

	if j.history == nil {
		return nil
	}

	// Sweep lookups for scans finalized at least two TTL windows ago:
	// their records have had ample time to expire from both layers.
	cutoff := 2 * j.config.Scan.ResultTTL
	scanIDs, err := j.history.FinalizedScanIDs(ctx, cutoff, scanCleanupBatch)
	if err != nil {
		return err
	}

	removed := 0
	for _, scanID := range scanIDs {
		err := j.store.Unregister(ctx, scanID)
		if errors.Is(err, store.ErrRecordLive) {
			// Record resurrected by a recent write, leave it alone
			continue
		}
		if err != nil {
			j.logger.WithError(err).WithField("scan_id", scanID).
				Warn("Lookup sweep failed for scan")
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Stale scan lookups swept")
	}

	pruned, err := j.history.PruneOlderThan(ctx, historyRetentionDays)
	if err != nil {
		return err
	}
	if pruned > 0 {
		j.logger.WithField("pruned", pruned).Info("Old scan history pruned")
	}

	return nil
}
