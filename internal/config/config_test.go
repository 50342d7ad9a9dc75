package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Fatalf("CacheTTL = %v, want 30m", cfg.CacheTTL)
	}
	if cfg.QuotaResetWindow != 16*time.Hour {
		t.Fatalf("QuotaResetWindow = %v, want 16h", cfg.QuotaResetWindow)
	}
}

func TestLoadProviderSettingsFromEnv(t *testing.T) {
	t.Setenv("PROVIDER_OPENWEATHERMAP_SECRET", "key-123")
	t.Setenv("PROVIDER_OPENWEATHERMAP_DAILY_LIMIT", "500")
	t.Setenv("PROVIDER_WEATHERAPI_DISABLED", "true")
	t.Setenv("PROVIDER_OPENMETEO_PER_SECOND", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	owm := cfg.Provider("openweathermap")
	if owm.Secret != "key-123" {
		t.Fatalf("secret = %q", owm.Secret)
	}
	if owm.DailyLimit != 500 {
		t.Fatalf("dailyLimit = %d, want 500", owm.DailyLimit)
	}
	if !cfg.Provider("weatherapi").Disabled {
		t.Fatal("weatherapi should be disabled")
	}
	if cfg.Provider("openmeteo").PerSecond != 2.5 {
		t.Fatalf("perSecond = %v, want 2.5", cfg.Provider("openmeteo").PerSecond)
	}

	limits := cfg.DailyLimits()
	if limits["openweathermap"] != 500 {
		t.Fatalf("DailyLimits = %v", limits)
	}
	if _, ok := limits["openmeteo"]; ok {
		t.Fatal("providers without a limit must not appear in DailyLimits")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("CACHE_TTL", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for invalid CACHE_TTL")
	}
}

func TestDefaultProvidersParsing(t *testing.T) {
	t.Setenv("DEFAULT_PROVIDERS", "OpenMeteo, weatherapi ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.DefaultProviders) != 2 {
		t.Fatalf("DefaultProviders = %v", cfg.DefaultProviders)
	}
	if cfg.DefaultProviders[0] != "openmeteo" || cfg.DefaultProviders[1] != "weatherapi" {
		t.Fatalf("DefaultProviders = %v", cfg.DefaultProviders)
	}
}
