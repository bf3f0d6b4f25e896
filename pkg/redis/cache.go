package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON-encoded values under a namespaced key prefix.
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache builds a cache helper over the shared client.
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

func (c *Cache) key(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get loads a cached value into dest. A missing key and a disabled
// client both read as a miss, not an error.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache read failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}
	return true, nil
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	return c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
}

// Delete drops a cached value.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.key(key)).Err()
}

// TTL tiers for the discovery caches.
const (
	TTLShort  = 1 * time.Minute  // ticker snapshots
	TTLMedium = 10 * time.Minute // universe snapshots
	TTLLong   = 1 * time.Hour    // strategy ownership
)

// UniverseSnapshotKey addresses the shared scan universe.
func UniverseSnapshotKey() string {
	return "universe:snapshot"
}

// TickerStatsKey addresses per-symbol market stats.
func TickerStatsKey(symbol string) string {
	return fmt.Sprintf("ticker:stats:%s", symbol)
}

// OwnedStrategiesKey addresses a user's purchased strategy set.
func OwnedStrategiesKey(userID string) string {
	return fmt.Sprintf("strategy:owned:%s", userID)
}
