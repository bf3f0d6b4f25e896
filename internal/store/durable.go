package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/pkg/redis"
)

// Lookup key builders. Both indices live in redis next to the records
// so any worker process can resolve them.
func scanLookupKey(scanID string) string {
	return fmt.Sprintf("scan:lookup:%s", scanID)
}

func latestLookupKey(userID string) string {
	return fmt.Sprintf("scan:latest:%s", userID)
}

// UserCacheKey derives the deterministic cache key for a user's current
// scan result slot. Stable across repeated scans (force refresh reuses
// it with a new scan_id and overwrites).
func UserCacheKey(userID string) string {
	return fmt.Sprintf("scan:user:%s", userID)
}

// DurableStore is the shared redis layer: the source of truth for scan
// state across worker processes.
type DurableStore struct {
	client *redis.Client
}

// NewDurableStore wraps a redis client as the durable layer
func NewDurableStore(client *redis.Client) *DurableStore {
	return &DurableStore{client: client}
}

// Available reports whether the durable layer can serve at all
func (d *DurableStore) Available() bool {
	return d.client.Enabled()
}

// PutRecord writes the record JSON blob, refreshing the sliding TTL
func (d *DurableStore) PutRecord(ctx context.Context, cacheKey string, record *contracts.ScanRecord, ttl time.Duration) error {
	if !d.client.Enabled() {
		return fmt.Errorf("durable layer disabled")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal scan record: %w", err)
	}

	if err := d.client.Redis().Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("write scan record: %w", err)
	}
	return nil
}

// GetRecord returns the stored record, or (nil, nil) when absent
func (d *DurableStore) GetRecord(ctx context.Context, cacheKey string) (*contracts.ScanRecord, error) {
	if !d.client.Enabled() {
		return nil, fmt.Errorf("durable layer disabled")
	}

	data, err := d.client.Redis().Get(ctx, cacheKey).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scan record: %w", err)
	}

	var record contracts.ScanRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode scan record: %w", err)
	}
	return &record, nil
}

// DeleteRecord removes the record blob
func (d *DurableStore) DeleteRecord(ctx context.Context, cacheKey string) error {
	if !d.client.Enabled() {
		return fmt.Errorf("durable layer disabled")
	}
	return d.client.Redis().Del(ctx, cacheKey).Err()
}

// PutLookup writes one lookup entry with its own sliding TTL
func (d *DurableStore) PutLookup(ctx context.Context, key, value string, ttl time.Duration) error {
	if !d.client.Enabled() {
		return fmt.Errorf("durable layer disabled")
	}
	return d.client.Redis().Set(ctx, key, value, ttl).Err()
}

// GetLookup returns the lookup value, or ("", nil) when absent
func (d *DurableStore) GetLookup(ctx context.Context, key string) (string, error) {
	if !d.client.Enabled() {
		return "", fmt.Errorf("durable layer disabled")
	}

	value, err := d.client.Redis().Get(ctx, key).Result()
	if err == goredis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lookup: %w", err)
	}
	return value, nil
}

// DeleteLookup removes one lookup entry
func (d *DurableStore) DeleteLookup(ctx context.Context, key string) error {
	if !d.client.Enabled() {
		return fmt.Errorf("durable layer disabled")
	}
	return d.client.Redis().Del(ctx, key).Err()
}
