package strategies

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/pkg/logger"
	"github.com/cryptouniverse/discovery/pkg/redis"
)

// SignalFeedKey is the redis key an external strategy engine publishes
// its latest signals under
func SignalFeedKey(strategyID string) string {
	return fmt.Sprintf("strategy:signals:%s", strategyID)
}

// SignalFeedEvaluator adapts a strategy whose math runs in an external
// engine (options, pairs trading) and whose signals arrive as loose JSON
// payloads in redis. The payload is normalized through
// DecodeStrategyPayload on ingestion.
type SignalFeedEvaluator struct {
	id     string
	client *redis.Client
	logger *logger.Logger
}

// NewSignalFeedEvaluator creates an evaluator backed by a published feed
func NewSignalFeedEvaluator(id string, client *redis.Client, log *logger.Logger) *SignalFeedEvaluator {
	return &SignalFeedEvaluator{
		id:     id,
		client: client,
		logger: log,
	}
}

// ID returns the strategy identifier
func (e *SignalFeedEvaluator) ID() string {
	return e.id
}

// Evaluate fetches the feed's latest payload and keeps only signals for
// symbols inside the user's universe
func (e *SignalFeedEvaluator) Evaluate(ctx context.Context, userID string, universe *contracts.Universe) ([]contracts.Opportunity, error) {
	if !e.client.Enabled() {
		return nil, fmt.Errorf("signal feed unavailable: redis disabled")
	}

	payload, err := e.client.Redis().Get(ctx, SignalFeedKey(e.id)).Bytes()
	if err == goredis.Nil {
		// Engine has not published this cycle: an empty result, not an error
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s signal feed: %w", e.id, err)
	}

	decoded, err := DecodeStrategyPayload(e.id, payload)
	if err != nil {
		return nil, err
	}

	inUniverse := make(map[string]bool, universe.Size())
	for _, s := range universe.Symbols() {
		inUniverse[s] = true
	}

	opportunities := decoded[:0]
	for _, opp := range decoded {
		if inUniverse[opp.Symbol] {
			opportunities = append(opportunities, opp)
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"strategy":  e.id,
		"published": len(decoded),
		"kept":      len(opportunities),
	}).Debug("Signal feed evaluation finished")

	return opportunities, nil
}
