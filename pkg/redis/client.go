package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cryptouniverse/discovery/pkg/config"
)

// Client wraps the shared redis connection. A disabled client is a
// valid value; callers degrade instead of failing.
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb     *redis.Client
	enabled bool
}

// New connects using config, or returns a disabled client when redis
// is switched off.
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return &Client{}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{rdb: rdb, enabled: true}, nil
}

// NewFromClient wraps an existing connection. Tests use this with redismock.
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb, enabled: true}
}

// Close releases the connection.
func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// Enabled reports whether a live connection is available.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Redis exposes the raw client for direct command access.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
