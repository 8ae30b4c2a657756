// Package config loads and validates the process-wide configuration from
// the environment once at startup. Every component receives a *Config
// value explicitly instead of reading os.Getenv itself.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every recognized option from spec.md §6.
type Config struct {
	// Transport / providers
	TelegramToken string // required
	AIAPIKey      string // required (Gemini)
	WeatherAPIKey string // optional
	HolidayAPIKey string // optional

	// Weather/holiday are not personalized per subscriber (spec.md §1:
	// "no personalization beyond timezone and opt-in"), so the digest
	// carries one fixed location/country for every recipient.
	WeatherLocation string
	HolidayCountry  string

	// Ambient
	LogLevel string
	DataDir  string

	// Scheduling & concurrency
	TickIntervalSeconds int
	FeedParallelism     int
	PerHostParallelism  int
	DeliveryParallelism int
	DedupRetentionDays  int
	JobDeadlineSeconds  int

	// Feed fetcher
	FeedTimeoutSeconds int

	// Crypto composer
	MarketCacheTTL      time.Duration
	AICommentaryMinGap  time.Duration
	AICommentaryTimeout time.Duration

	// Database
	DatabaseURL string
}

// Load builds a Config from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "INFO"),
		DataDir:             getEnvOrDefault("DATA_DIR", "./data"),
		TickIntervalSeconds: getEnvIntOrDefault("TICK_INTERVAL_SECONDS", 60),
		FeedParallelism:     getEnvIntOrDefault("FEED_PARALLELISM", 16),
		PerHostParallelism:  getEnvIntOrDefault("FEED_PER_HOST_PARALLELISM", 2),
		DeliveryParallelism: getEnvIntOrDefault("DELIVERY_PARALLELISM", 8),
		DedupRetentionDays:  getEnvIntOrDefault("DEDUP_RETENTION_DAYS", 7),
		JobDeadlineSeconds:  getEnvIntOrDefault("JOB_DEADLINE_SECONDS", 45),
		FeedTimeoutSeconds:  getEnvIntOrDefault("FEED_TIMEOUT_SECONDS", 10),
		MarketCacheTTL:      time.Duration(getEnvIntOrDefault("MARKET_CACHE_TTL_SECONDS", 180)) * time.Second,
		AICommentaryMinGap:  time.Duration(getEnvIntOrDefault("AI_COMMENTARY_MIN_GAP_SECONDS", 30)) * time.Second,
		AICommentaryTimeout: time.Duration(getEnvIntOrDefault("AI_COMMENTARY_TIMEOUT_SECONDS", 3)) * time.Second,
		WeatherLocation:     getEnvOrDefault("WEATHER_LOCATION", "Dhaka"),
		HolidayCountry:      getEnvOrDefault("HOLIDAY_COUNTRY", "BD"),
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.AIAPIKey = os.Getenv("AI_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	cfg.HolidayAPIKey = os.Getenv("HOLIDAY_API_KEY")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the required-option contract from spec.md §6.
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.AIAPIKey == "" {
		return fmt.Errorf("AI_API_KEY is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.TickIntervalSeconds <= 0 {
		return fmt.Errorf("TICK_INTERVAL_SECONDS must be positive")
	}
	if c.FeedParallelism <= 0 {
		return fmt.Errorf("FEED_PARALLELISM must be positive")
	}
	if c.DeliveryParallelism <= 0 {
		return fmt.Errorf("DELIVERY_PARALLELISM must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
