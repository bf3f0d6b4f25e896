package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cryptouniverse/discovery/internal/contracts"
)

// Repository archives finalized scans to PostgreSQL for later
// inspection. The cache layers hold live scans; this is the audit trail
// that outlives their TTLs.
// ⭐ SSOT: 스캔 이력 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new scan history repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveScan persists one finalized scan record. Re-saving the same
// scan_id overwrites: a forced refresh finalizing twice is not an error.
func (r *Repository) SaveScan(ctx context.Context, record *contracts.ScanRecord) error {
	opportunitiesJSON, err := json.Marshal(record.Opportunities)
	if err != nil {
		return fmt.Errorf("failed to marshal opportunities: %w", err)
	}

	performanceJSON, err := json.Marshal(record.StrategyPerformance)
	if err != nil {
		return fmt.Errorf("failed to marshal strategy performance: %w", err)
	}

	query := `
		INSERT INTO discovery.scan_history (
			scan_id, user_id, state, strategies_total, strategies_completed,
			opportunities, strategy_performance, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (scan_id) DO UPDATE SET
			state = EXCLUDED.state,
			strategies_completed = EXCLUDED.strategies_completed,
			opportunities = EXCLUDED.opportunities,
			strategy_performance = EXCLUDED.strategy_performance,
			finished_at = EXCLUDED.finished_at
	`

	_, err = r.pool.Exec(ctx, query,
		record.ScanID, record.UserID, string(record.State),
		record.StrategiesTotal, record.StrategiesCompleted,
		opportunitiesJSON, performanceJSON,
		record.StartedAt, record.LastUpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save scan history: %w", err)
	}

	return nil
}

// RecentScans returns the newest archived scans for a user
func (r *Repository) RecentScans(ctx context.Context, userID string, limit int) ([]contracts.ScanSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT scan_id, user_id, state, strategies_total,
		       jsonb_array_length(opportunities), started_at, finished_at
		FROM discovery.scan_history
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan history: %w", err)
	}
	defer rows.Close()

	summaries := make([]contracts.ScanSummary, 0, limit)
	for rows.Next() {
		var s contracts.ScanSummary
		var state string

		err := rows.Scan(&s.ScanID, &s.UserID, &state, &s.StrategiesTotal,
			&s.OpportunitiesFound, &s.StartedAt, &s.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		s.State = contracts.ScanState(state)
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scan history: %w", err)
	}

	return summaries, nil
}

// FinalizedScanIDs returns scan ids archived before the cutoff. The
// cleanup job feeds these to the store's lookup sweep once their cache
// TTLs have had time to expire.
func (r *Repository) FinalizedScanIDs(ctx context.Context, olderThan time.Duration, limit int) ([]string, error) {
	query := `
		SELECT scan_id
		FROM discovery.scan_history
		WHERE finished_at < now() - ($1 || ' seconds')::interval
		ORDER BY finished_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, int(olderThan.Seconds()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query finalized scans: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id row: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// PruneOlderThan removes archived scans past the retention window,
// returning how many rows were deleted
func (r *Repository) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	query := `
		DELETE FROM discovery.scan_history
		WHERE started_at < now() - ($1 || ' days')::interval
	`

	tag, err := r.pool.Exec(ctx, query, days)
	if err != nil {
		return 0, fmt.Errorf("failed to prune scan history: %w", err)
	}

	return tag.RowsAffected(), nil
}
