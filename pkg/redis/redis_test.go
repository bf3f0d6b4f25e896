package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"

	"github.com/cryptouniverse/discovery/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func mockedClient(t *testing.T) (*Client, redismock.ClientMock) {
	t.Helper()
	rdb, mock := redismock.NewClientMock()
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet redis expectations: %v", err)
		}
	})
	return NewFromClient(rdb), mock
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on disabled client error = %v", err)
	}
}

func TestCache_DisabledIsMiss(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")

	var result string
	found, err := cache.Get(context.Background(), "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}

	if err := cache.Set(context.Background(), "key", "value", time.Minute); err != nil {
		t.Errorf("Set() on disabled client error = %v", err)
	}
}

func TestCache_NamespacesKeys(t *testing.T) {
	client, mock := mockedClient(t)
	cache := NewCache(client, "discovery")

	payload, _ := json.Marshal("snapshot")
	mock.ExpectSet("discovery:cache:universe:snapshot", payload, TTLMedium).SetVal("OK")

	err := cache.Set(context.Background(), UniverseSnapshotKey(), "snapshot", TTLMedium)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
}

func TestCache_MissingKeyIsMiss(t *testing.T) {
	client, mock := mockedClient(t)
	cache := NewCache(client, "discovery")

	mock.ExpectGet("discovery:cache:universe:snapshot").RedisNil()

	var dest string
	found, err := cache.Get(context.Background(), UniverseSnapshotKey(), &dest)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected miss for absent key")
	}
}

func TestCache_RoundTrip(t *testing.T) {
	client, mock := mockedClient(t)
	cache := NewCache(client, "discovery")

	payload, _ := json.Marshal([]string{"BTC/USDT", "ETH/USDT"})
	mock.ExpectGet("discovery:cache:universe:snapshot").SetVal(string(payload))

	var symbols []string
	found, err := cache.Get(context.Background(), UniverseSnapshotKey(), &symbols)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Expected hit")
	}
	if len(symbols) != 2 || symbols[0] != "BTC/USDT" {
		t.Errorf("Unexpected decoded value: %v", symbols)
	}
}

func TestRateLimiter_DisabledAdmitsAll(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), "test")

	allowed, remaining, err := limiter.Allow(context.Background(), APIPollRateLimit)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if remaining != APIPollRateLimit.Limit {
		t.Errorf("Expected remaining = %d, got %d", APIPollRateLimit.Limit, remaining)
	}
}

func TestScanStartRateLimit(t *testing.T) {
	cfg := ScanStartRateLimit("user-42")

	if cfg.Key != "scan_start:user-42" {
		t.Errorf("Key = %q, want scan_start:user-42", cfg.Key)
	}
	if cfg.Limit != 1 {
		t.Errorf("Limit = %d, want 1", cfg.Limit)
	}
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() string
		expected string
	}{
		{
			name:     "UniverseSnapshotKey",
			fn:       UniverseSnapshotKey,
			expected: "universe:snapshot",
		},
		{
			name:     "TickerStatsKey",
			fn:       func() string { return TickerStatsKey("BTC/USDT") },
			expected: "ticker:stats:BTC/USDT",
		},
		{
			name:     "OwnedStrategiesKey",
			fn:       func() string { return OwnedStrategiesKey("user-42") },
			expected: "strategy:owned:user-42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
