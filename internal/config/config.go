package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the tick analytics service configuration.
type Config struct {
	// HTTP
	Port      int `env:"PORT" envDefault:"8085"`
	TimeoutMS int `env:"REQUEST_TIMEOUT_MS" envDefault:"5000"`

	// Result cache (external collaborator; publishing is optional)
	RedisURL      string `env:"REDIS_URL"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	CacheTTLSec   int    `env:"CACHE_TTL_SEC" envDefault:"300"`

	// Venue sessions, venue-local "HH:MM"
	MorningOpen    string `env:"MORNING_OPEN" envDefault:"09:30"`
	MorningClose   string `env:"MORNING_CLOSE" envDefault:"11:30"`
	AfternoonOpen  string `env:"AFTERNOON_OPEN" envDefault:"13:00"`
	AfternoonClose string `env:"AFTERNOON_CLOSE" envDefault:"15:00"`
	AuctionStart   string `env:"AUCTION_START" envDefault:"09:15"`
	AuctionEnd     string `env:"AUCTION_END" envDefault:"09:25"`

	// Cleaning
	LotSize           float64 `env:"LOT_SIZE" envDefault:"100"`
	DirectionDeadband float64 `env:"DIRECTION_DEADBAND" envDefault:"0.0005"`
	ExtremeJumpRatio  float64 `env:"EXTREME_JUMP_RATIO" envDefault:"5.0"`

	// Flow analysis
	LargeOrderPercentile float64 `env:"LARGE_ORDER_PERCENTILE" envDefault:"90"`
	LargeOrderMinAmount  float64 `env:"LARGE_ORDER_MIN_AMOUNT" envDefault:"200000"`
	LargeOrderTopK       int     `env:"LARGE_ORDER_TOP_K" envDefault:"15"`

	// Aggregation
	DefaultWindowMin int     `env:"DEFAULT_WINDOW_MIN" envDefault:"5"`
	ClipPercentile   float64 `env:"CLIP_PERCENTILE" envDefault:"95"`

	// Anomaly detection
	BurstSigma    float64 `env:"BURST_SIGMA" envDefault:"2.0"`
	InflowIQRMult float64 `env:"INFLOW_IQR_MULT" envDefault:"3.0"`

	// Summary bounds
	SummaryWindows         int `env:"SUMMARY_WINDOWS" envDefault:"20"`
	SummaryWindowsExtended int `env:"SUMMARY_WINDOWS_EXTENDED" envDefault:"40"`

	// Observability
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	PrometheusPort int    `env:"PROMETHEUS_PORT" envDefault:"9091"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	return cfg, nil
}

// CacheTTL returns the result cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	for name, hhmm := range map[string]string{
		"MORNING_OPEN":    c.MorningOpen,
		"MORNING_CLOSE":   c.MorningClose,
		"AFTERNOON_OPEN":  c.AfternoonOpen,
		"AFTERNOON_CLOSE": c.AfternoonClose,
		"AUCTION_START":   c.AuctionStart,
		"AUCTION_END":     c.AuctionEnd,
	} {
		if _, err := time.Parse("15:04", hhmm); err != nil {
			return fmt.Errorf("%s: invalid HH:MM value %q", name, hhmm)
		}
	}

	if c.LotSize <= 0 {
		return fmt.Errorf("lot size must be positive, got %f", c.LotSize)
	}

	if c.LargeOrderPercentile <= 0 || c.LargeOrderPercentile >= 100 {
		return fmt.Errorf("large order percentile must be in (0, 100), got %f", c.LargeOrderPercentile)
	}

	if c.LargeOrderMinAmount < 0 {
		return fmt.Errorf("large order minimum amount must be non-negative, got %f", c.LargeOrderMinAmount)
	}

	if c.LargeOrderTopK <= 0 {
		return fmt.Errorf("large order top-K must be positive, got %d", c.LargeOrderTopK)
	}

	switch c.DefaultWindowMin {
	case 1, 5, 10:
	default:
		return fmt.Errorf("default window width must be 1, 5 or 10 minutes, got %d", c.DefaultWindowMin)
	}

	if c.ClipPercentile <= 0 || c.ClipPercentile > 100 {
		return fmt.Errorf("clip percentile must be in (0, 100], got %f", c.ClipPercentile)
	}

	if c.BurstSigma <= 0 {
		return fmt.Errorf("burst sigma must be positive, got %f", c.BurstSigma)
	}

	if c.InflowIQRMult <= 0 {
		return fmt.Errorf("inflow IQR multiplier must be positive, got %f", c.InflowIQRMult)
	}

	if c.SummaryWindows <= 0 || c.SummaryWindowsExtended < c.SummaryWindows {
		return fmt.Errorf("summary window counts must satisfy 0 < base <= extended, got %d/%d",
			c.SummaryWindows, c.SummaryWindowsExtended)
	}

	if c.RedisURL != "" && c.CacheTTLSec < 1 {
		return fmt.Errorf("cache TTL must be at least 1 second when publishing is enabled")
	}

	return nil
}
