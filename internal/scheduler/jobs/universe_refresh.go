package jobs

import (
	"context"
	"fmt"

	"github.com/cryptouniverse/discovery/internal/universe"
	"github.com/cryptouniverse/discovery/pkg/logger"
)

// UniverseRefreshJob rebuilds the tiered symbol universe from the live
// market feed so scan starts read a warm snapshot instead of paying the
// ranking cost inline.
type UniverseRefreshJob struct {
	provider *universe.Provider
	logger   *logger.Logger
}

// NewUniverseRefreshJob creates a new universe refresh job
func NewUniverseRefreshJob(p *universe.Provider, log *logger.Logger) *UniverseRefreshJob {
	return &UniverseRefreshJob{
		provider: p,
		logger:   log,
	}
}

// Name returns the job name
func (j *UniverseRefreshJob) Name() string {
	return "universe_refresh"
}

// Schedule returns the cron schedule (every 15 minutes, with seconds)
func (j *UniverseRefreshJob) Schedule() string {
	return "0 */15 * * * *"
}

// Run executes the refresh
func (j *UniverseRefreshJob) Run(ctx context.Context) error {
	u, err := j.provider.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild universe: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"tier1": len(u.Tier1),
		"tier2": len(u.Tier2),
	}).Info("Universe snapshot refreshed")

	return nil
}
