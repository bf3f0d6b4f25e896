package scan

import (
	"context"
	"sort"

	"github.com/cryptouniverse/discovery/pkg/config"
	"github.com/cryptouniverse/discovery/pkg/logger"
	"github.com/cryptouniverse/discovery/pkg/redis"
)

// Entitlements resolves which strategies a user may run: the free tier
// every user gets, plus any strategies attached to the user's plan.
// ⭐ SSOT: 전략 자격 판정은 여기서만
type Entitlements struct {
	client *redis.Client
	free   []string
	logger *logger.Logger
}

// NewEntitlements creates the eligibility resolver
func NewEntitlements(cfg *config.Config, client *redis.Client, log *logger.Logger) *Entitlements {
	return &Entitlements{
		client: client,
		free:   cfg.Scan.FreeStrategies,
		logger: log,
	}
}

// EligibleStrategies returns the sorted union of free and owned
// strategy ids. When the owned-strategy set cannot be read the user is
// degraded to the free tier rather than locked out.
func (e *Entitlements) EligibleStrategies(ctx context.Context, userID string) []string {
	seen := make(map[string]struct{}, len(e.free))
	for _, id := range e.free {
		seen[id] = struct{}{}
	}

	if e.client.Enabled() {
		owned, err := e.client.Redis().SMembers(ctx, redis.OwnedStrategiesKey(userID)).Result()
		if err != nil {
			e.logger.WithError(err).WithField("user_id", userID).
				Warn("Owned strategies unavailable, serving free tier only")
		}
		for _, id := range owned {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
