package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/CGraabaek/strautomator-core/internal/api/http"
	"github.com/CGraabaek/strautomator-core/internal/cache"
	"github.com/CGraabaek/strautomator-core/internal/config"
	"github.com/CGraabaek/strautomator-core/internal/ratelimit"
	"github.com/CGraabaek/strautomator-core/internal/scheduler"
	"github.com/CGraabaek/strautomator-core/internal/weather"
	"github.com/CGraabaek/strautomator-core/internal/weather/providers"
	"github.com/CGraabaek/strautomator-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logg.Sync()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	registry := weather.NewRegistry(logg.Named("registry"), weather.RegistryConfig{
		DailyLimits: cfg.DailyLimits(),
		ResetWindow: cfg.QuotaResetWindow,
	})

	registerProviders(cfg, httpClient, registry, logg)

	responseCache := cache.NewMemoryCache(cfg.CacheTTL, cfg.CacheSweep)
	defer responseCache.Close()

	aggregator := weather.NewAggregator(registry, responseCache, weather.AggregatorConfig{
		DefaultProviders: cfg.DefaultProviders,
		LongActivity:     cfg.LongActivity,
	}, logg.Named("aggregator"))

	// Daily quota counter rollover.
	sched := scheduler.New(registry, logg.Named("scheduler"))
	if err := sched.Start(); err != nil {
		logg.Fatal("failed to start scheduler", logger.Error(err))
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-service",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "weather-service",
			"providers": registry.Names(),
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Aggregator:     aggregator,
		Registry:       registry,
		GeocoderAPIKey: cfg.GeocoderAPIKey,
	})

	go func() {
		logg.Info("listening", logger.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logg.Error("fiber server stopped", logger.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Error("error during shutdown", logger.Error(err))
	}
}

// registerProviders builds one adapter per vendor from configuration.
// Disabled providers and providers missing a required secret are excluded.
func registerProviders(cfg *config.AppConfig, client *http.Client, registry *weather.Registry, logg *logger.Logger) {
	limiterFor := func(name string) *ratelimit.Scheduler {
		ps := cfg.Provider(name)
		perSecond := ps.PerSecond
		if perSecond <= 0 {
			perSecond = 1
		}
		burst := ps.Burst
		if burst <= 0 {
			burst = 3
		}
		return ratelimit.New(perSecond, burst)
	}

	type candidate struct {
		name        string
		needsSecret bool
		build       func(secret string) weather.Provider
	}

	candidates := []candidate{
		{
			name:        "openweathermap",
			needsSecret: true,
			build: func(secret string) weather.Provider {
				return providers.NewOpenWeatherProvider(client, secret, limiterFor("openweathermap"))
			},
		},
		{
			name:        "weatherapi",
			needsSecret: true,
			build: func(secret string) weather.Provider {
				return providers.NewWeatherAPIProvider(client, secret, limiterFor("weatherapi"))
			},
		},
		{
			name: "openmeteo",
			build: func(string) weather.Provider {
				return providers.NewOpenMeteoProvider(client, limiterFor("openmeteo"))
			},
		},
	}

	for _, c := range candidates {
		ps := cfg.Provider(c.name)
		if ps.Disabled {
			logg.Info("provider disabled by configuration", logger.String("provider", c.name))
			continue
		}
		if c.needsSecret && ps.Secret == "" {
			logg.Warn("provider excluded: missing secret", logger.String("provider", c.name))
			continue
		}
		if err := registry.Register(c.build(ps.Secret)); err != nil {
			logg.Warn("provider registration failed",
				logger.String("provider", c.name), logger.Error(err))
		}
	}

	if len(registry.Names()) == 0 {
		logg.Warn("no weather providers enabled; all lookups will return empty")
	}
}
