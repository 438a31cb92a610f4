// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Base directory for all databases, always absolute
	Port            int
	LogLevel        string
	DevMode         bool
	ExchangeTZ      string // IANA zone of the exchange, e.g. "America/New_York"
	BenchmarkSymbol string // Symbol the benchmark series is stored under
	QuoteFeedURL    string // Base URL of the external market-data provider
	QuoteFeedAPIKey string
	QuoteStreamURL  string // Optional websocket endpoint for live ticks
	RedisAddr       string // Optional; empty disables the leaderboard cache
	RedisPassword   string
}

// Load reads configuration from environment variables. A .env file is loaded
// first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("OPENFOLIO_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		Port:            getEnvAsInt("PORT", 8010),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		ExchangeTZ:      getEnv("EXCHANGE_TZ", "America/New_York"),
		BenchmarkSymbol: getEnv("BENCHMARK_SYMBOL", "SPX"),
		QuoteFeedURL:    getEnv("QUOTE_FEED_URL", ""),
		QuoteFeedAPIKey: getEnv("QUOTE_FEED_API_KEY", ""),
		QuoteStreamURL:  getEnv("QUOTE_STREAM_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.ExchangeTZ == "" {
		return fmt.Errorf("EXCHANGE_TZ must not be empty")
	}
	if c.BenchmarkSymbol == "" {
		return fmt.Errorf("BENCHMARK_SYMBOL must not be empty")
	}
	// QuoteFeedURL is optional: without it the valuation engine still works
	// from stored closes and cost basis.
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
