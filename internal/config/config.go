package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New()

// ProviderSettings is the per-vendor configuration block, assembled from
// PROVIDER_<NAME>_* environment variables.
type ProviderSettings struct {
	// Disabled excludes the provider entirely at startup.
	Disabled bool `mapstructure:"disabled"`

	// Secret is the vendor API key. Providers that need one and have
	// none are excluded with a startup warning.
	Secret string `mapstructure:"secret"`

	// DailyLimit caps requests per day; <= 0 means unlimited.
	DailyLimit int `mapstructure:"daily_limit" validate:"gte=0"`

	// PerSecond and Burst tune the outbound rate limiter.
	PerSecond float64 `mapstructure:"per_second" validate:"gte=0"`
	Burst     int     `mapstructure:"burst" validate:"gte=0"`
}

// AppConfig is the full configuration surface of the weather service.
type AppConfig struct {
	Port      string `validate:"required"`
	LogLevel  string
	LogFormat string

	// HTTPTimeout bounds each outbound vendor call.
	HTTPTimeout time.Duration `validate:"gt=0"`

	// CacheTTL is how long a cached summary stays usable; CacheSweep is
	// the janitor interval.
	CacheTTL   time.Duration `validate:"gt=0"`
	CacheSweep time.Duration

	// QuotaResetWindow is the idle interval after which a provider's
	// daily quota is considered rolled over.
	QuotaResetWindow time.Duration `validate:"gt=0"`

	// DefaultProviders is the pool used when neither the request nor the
	// user names a provider.
	DefaultProviders []string

	// LongActivity is the duration above which Pro users get a midpoint
	// lookup on activities.
	LongActivity time.Duration

	// GeocoderAPIKey enables city/country resolution on the HTTP layer.
	GeocoderAPIKey string

	Providers map[string]ProviderSettings
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		Port:      getenvDefault("PORT", "8080"),
		LogLevel:  getenvDefault("LOG_LEVEL", "info"),
		LogFormat: getenvDefault("LOG_FORMAT", "console"),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CacheSweep, err = getenvDuration("CACHE_SWEEP", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.QuotaResetWindow, err = getenvDuration("QUOTA_RESET_WINDOW", 16*time.Hour); err != nil {
		return nil, err
	}
	if cfg.LongActivity, err = getenvDuration("LONG_ACTIVITY", 3*time.Hour); err != nil {
		return nil, err
	}

	if pool := os.Getenv("DEFAULT_PROVIDERS"); pool != "" {
		for _, name := range strings.Split(pool, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.DefaultProviders = append(cfg.DefaultProviders, strings.ToLower(name))
			}
		}
	}

	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	if cfg.Providers, err = loadProviderSettings(); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	for name, ps := range cfg.Providers {
		if err := validate.Struct(ps); err != nil {
			return nil, fmt.Errorf("invalid configuration for provider %s: %w", name, err)
		}
	}

	return cfg, nil
}

// loadProviderSettings collects PROVIDER_<NAME>_<FIELD> environment
// variables into a weakly-typed map per provider and decodes each with
// mapstructure, so "500" and "true" coerce into their typed fields.
func loadProviderSettings() (map[string]ProviderSettings, error) {
	raw := make(map[string]map[string]string)

	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "PROVIDER_") {
			continue
		}
		eq := strings.Index(kv, "=")
		if eq < 0 {
			continue
		}
		key, value := kv[len("PROVIDER_"):eq], kv[eq+1:]

		sep := strings.Index(key, "_")
		if sep <= 0 || sep == len(key)-1 {
			continue
		}
		name := strings.ToLower(key[:sep])
		field := strings.ToLower(key[sep+1:])

		if raw[name] == nil {
			raw[name] = make(map[string]string)
		}
		raw[name][field] = value
	}

	settings := make(map[string]ProviderSettings, len(raw))
	for name, fields := range raw {
		var ps ProviderSettings
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &ps,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(fields); err != nil {
			return nil, fmt.Errorf("invalid settings for provider %s: %w", name, err)
		}
		settings[name] = ps
	}
	return settings, nil
}

// Provider returns the settings block for a provider name, zero-valued
// when nothing was configured.
func (c *AppConfig) Provider(name string) ProviderSettings {
	return c.Providers[name]
}

// DailyLimits projects the per-provider daily quota ceilings.
func (c *AppConfig) DailyLimits() map[string]int {
	limits := make(map[string]int, len(c.Providers))
	for name, ps := range c.Providers {
		if ps.DailyLimit > 0 {
			limits[name] = ps.DailyLimit
		}
	}
	return limits
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
