package config

import (
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.Port != 8085 {
		t.Errorf("Port = %d, want 8085", cfg.Port)
	}
	if cfg.MorningOpen != "09:30" || cfg.AfternoonClose != "15:00" {
		t.Errorf("session bounds = %s..%s", cfg.MorningOpen, cfg.AfternoonClose)
	}
	if cfg.LotSize != 100 {
		t.Errorf("LotSize = %v, want 100", cfg.LotSize)
	}
	if cfg.DirectionDeadband != 0.0005 {
		t.Errorf("DirectionDeadband = %v, want 0.0005", cfg.DirectionDeadband)
	}
	if cfg.LargeOrderMinAmount != 200000 || cfg.LargeOrderPercentile != 90 || cfg.LargeOrderTopK != 15 {
		t.Errorf("large order params = %v/%v/%d", cfg.LargeOrderMinAmount, cfg.LargeOrderPercentile, cfg.LargeOrderTopK)
	}
	if cfg.DefaultWindowMin != 5 {
		t.Errorf("DefaultWindowMin = %d, want 5", cfg.DefaultWindowMin)
	}
	if cfg.SummaryWindows != 20 || cfg.SummaryWindowsExtended != 40 {
		t.Errorf("summary bounds = %d/%d", cfg.SummaryWindows, cfg.SummaryWindowsExtended)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DEFAULT_WINDOW_MIN", "1")
	t.Setenv("CACHE_TTL_SEC", "60")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.DefaultWindowMin != 1 {
		t.Errorf("DefaultWindowMin = %d, want 1", cfg.DefaultWindowMin)
	}
	if cfg.CacheTTL() != 60*time.Second {
		t.Errorf("CacheTTL = %v, want 60s", cfg.CacheTTL())
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad_log_level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad_session_time", func(c *Config) { c.MorningOpen = "9am" }},
		{"zero_lot_size", func(c *Config) { c.LotSize = 0 }},
		{"percentile_too_high", func(c *Config) { c.LargeOrderPercentile = 100 }},
		{"negative_min_amount", func(c *Config) { c.LargeOrderMinAmount = -1 }},
		{"zero_top_k", func(c *Config) { c.LargeOrderTopK = 0 }},
		{"unsupported_window", func(c *Config) { c.DefaultWindowMin = 7 }},
		{"zero_clip_percentile", func(c *Config) { c.ClipPercentile = 0 }},
		{"zero_burst_sigma", func(c *Config) { c.BurstSigma = 0 }},
		{"zero_iqr_mult", func(c *Config) { c.InflowIQRMult = 0 }},
		{"extended_below_base", func(c *Config) { c.SummaryWindowsExtended = c.SummaryWindows - 1 }},
		{"publishing_without_ttl", func(c *Config) { c.RedisURL = "redis://localhost:6379"; c.CacheTTLSec = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv failed: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate passed, want error")
			}
		})
	}
}
