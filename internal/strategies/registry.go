package strategies

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cryptouniverse/discovery/internal/contracts"
)

// Registry is the lookup table of strategy evaluators keyed by strategy
// identifier. New strategies register here; the orchestrator never needs
// to change.
// ⭐ SSOT: 전략 등록은 이 레지스트리에서만
type Registry struct {
	mu         sync.RWMutex
	evaluators map[string]contracts.StrategyEvaluator
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		evaluators: make(map[string]contracts.StrategyEvaluator),
	}
}

// Register adds an evaluator under its own ID
func (r *Registry) Register(evaluator contracts.StrategyEvaluator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := evaluator.ID()
	if id == "" {
		return fmt.Errorf("evaluator has an empty ID")
	}
	if _, exists := r.evaluators[id]; exists {
		return fmt.Errorf("strategy %s already registered", id)
	}

	r.evaluators[id] = evaluator
	return nil
}

// Get returns the evaluator for a strategy ID
func (r *Registry) Get(id string) (contracts.StrategyEvaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	evaluator, ok := r.evaluators[id]
	return evaluator, ok
}

// IDs returns all registered strategy IDs, sorted for determinism
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.evaluators))
	for id := range r.evaluators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Select returns the evaluators for the requested IDs, skipping unknown
// ones. The result preserves the sorted order of known IDs.
func (r *Registry) Select(ids []string) []contracts.StrategyEvaluator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	known := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := r.evaluators[id]; ok {
			known = append(known, id)
		}
	}
	sort.Strings(known)

	out := make([]contracts.StrategyEvaluator, 0, len(known))
	for _, id := range known {
		out = append(out, r.evaluators[id])
	}
	return out
}
