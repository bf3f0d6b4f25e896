package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Discovery scan tuning
	Scan ScanConfig

	// Universe construction
	Universe UniverseConfig

	// Market data access
	MarketData MarketDataConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ScanConfig holds the discovery scan budgets and cache TTLs
type ScanConfig struct {
	OverallBudget  time.Duration // hard deadline for one whole scan
	StrategyBudget time.Duration // per-strategy cap, looser than the overall budget
	Concurrency    int           // bounded fan-out width
	ResultTTL      time.Duration // sliding TTL for scan records
	LookupTTL      time.Duration // sliding TTL for lookup indices
	FreeStrategies []string      // strategies every user is eligible for
}

// UniverseConfig holds asset-universe construction parameters
type UniverseConfig struct {
	Tier1Size int // institutional tier (highest quote volume)
	Tier2Size int // retail tier
}

// MarketDataConfig holds market snapshot access parameters
type MarketDataConfig struct {
	RateLimit int // snapshot reads per second across all strategies
	Burst     int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8085"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// Scan budgets
		Scan: ScanConfig{
			OverallBudget:  getEnvAsDuration("SCAN_OVERALL_BUDGET", "150s"),
			StrategyBudget: getEnvAsDuration("SCAN_STRATEGY_BUDGET", "180s"),
			Concurrency:    getEnvAsInt("SCAN_CONCURRENCY", 4),
			ResultTTL:      getEnvAsDuration("SCAN_RESULT_TTL", "300s"),
			LookupTTL:      getEnvAsDuration("SCAN_LOOKUP_TTL", "300s"),
			FreeStrategies: getEnvAsSlice("SCAN_FREE_STRATEGIES", []string{"momentum", "mean_reversion"}),
		},

		// Universe
		Universe: UniverseConfig{
			Tier1Size: getEnvAsInt("UNIVERSE_TIER1_SIZE", 30),
			Tier2Size: getEnvAsInt("UNIVERSE_TIER2_SIZE", 70),
		},

		// Market data
		MarketData: MarketDataConfig{
			RateLimit: getEnvAsInt("MARKETDATA_RATE_LIMIT", 50),
			Burst:     getEnvAsInt("MARKETDATA_RATE_BURST", 100),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("SCAN_CONCURRENCY must be at least 1")
	}

	if c.Scan.OverallBudget <= 0 || c.Scan.StrategyBudget <= 0 {
		return fmt.Errorf("scan budgets must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",           // Current directory
		"discovery/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
