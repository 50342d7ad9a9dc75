package weather

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/CGraabaek/strautomator-core/pkg/logger"
)

const cacheNamespace = "weather"

// AggregatorConfig tunes orchestration behaviour.
type AggregatorConfig struct {
	// DefaultProviders is the pool drawn from when neither the call nor
	// the user specifies a provider. Empty means all registered providers.
	DefaultProviders []string

	// LongActivity is the duration above which Pro users also get a
	// midpoint lookup.
	LongActivity time.Duration
}

// Aggregator is the orchestration entry point for weather lookups. It
// owns no long-lived state of its own: providers and their counters live
// in the registry, responses in the cache.
//
// Its public operations never return an error; every failure degrades to
// a nil (or partial) result plus a log entry. A missing weather
// annotation is acceptable, a crash from a vendor outage is not.
type Aggregator struct {
	registry *Registry
	cache    Cache
	cfg      AggregatorConfig
	log      *logger.Logger

	now  func() time.Time
	rand *rand.Rand
}

// NewAggregator wires an aggregator over its collaborators.
func NewAggregator(registry *Registry, cache Cache, cfg AggregatorConfig, log *logger.Logger) *Aggregator {
	return &Aggregator{
		registry: registry,
		cache:    cache,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetLocationWeather returns the weather at the given coordinates and
// point in time, or nil when no provider could answer. The provider is
// resolved from the explicit argument, then the user's stored preference,
// then at random from the default pool.
func (a *Aggregator) GetLocationWeather(ctx context.Context, user *User, coords Coordinates, at time.Time, preferred string) *WeatherSummary {
	if at.IsZero() {
		a.log.Warn("weather lookup rejected: missing point in time")
		return nil
	}
	if !coords.Valid() {
		a.log.Warn("weather lookup rejected: invalid coordinates",
			logger.Float64("lat", coords.Latitude), logger.Float64("lon", coords.Longitude))
		return nil
	}

	coords = coords.Round()

	prefs := Preferences{}
	if user != nil {
		prefs = user.Preferences
	}

	isDefaultSelection := false
	if preferred == "" {
		preferred = prefs.WeatherProvider
	}
	if preferred == "" {
		pool := a.cfg.DefaultProviders
		if len(pool) == 0 {
			pool = a.registry.Names()
		}
		if len(pool) > 0 {
			preferred = pool[a.rand.Intn(len(pool))]
		}
		isDefaultSelection = true
	}

	log := a.log.With(
		logger.String("lookup", uuid.NewString()[:8]),
		logger.String("coordinates", coords.Key()),
		logger.Time("at", at),
	)

	key := cacheKey(coords, at)
	if v, ok := a.cache.Get(cacheNamespace, key); ok {
		if cached, ok := v.(*WeatherSummary); ok {
			if isDefaultSelection || cached.Provider == preferred {
				log.Debug("weather cache hit", logger.String("provider", cached.Provider))
				return cached
			}
		}
	}

	eligible := a.registry.Eligible(at)
	if len(eligible) == 0 {
		log.Warn("no eligible weather provider for query")
		return nil
	}

	candidates := a.pickCandidates(eligible, preferred)

	for i, p := range candidates {
		a.registry.RecordRequest(p.Name())

		summary, err := p.GetWeather(ctx, coords, at, prefs)
		if err != nil {
			a.registry.RecordFailure(p.Name(), err)
			log.Warn("weather provider failed",
				logger.String("provider", p.Name()),
				logger.Int("attempt", i+1),
				logger.Error(err))
			continue
		}

		a.registry.RecordSuccess(p.Name())
		a.cache.Set(cacheNamespace, key, summary)
		log.Debug("weather lookup served",
			logger.String("provider", p.Name()), logger.Int("attempt", i+1))
		return summary
	}

	log.Warn("all weather candidates failed", logger.Int("candidates", len(candidates)))
	return nil
}

// GetActivityWeather looks up the weather at the start and end of an
// activity, and at its midpoint for long activities requested by Pro
// users. Returns nil only when the activity has no usable location, is
// older than every provider's coverage, or neither the start nor the end
// lookup produced a summary. Partial results are returned as-is.
func (a *Aggregator) GetActivityWeather(ctx context.Context, user *User, activity Activity) *ActivityWeather {
	if !activity.HasLocation() {
		a.log.Debug("activity has no location data", logger.String("activity", activity.ID))
		return nil
	}

	ended := activity.EndTime
	if ended.IsZero() {
		ended = activity.StartTime
	}
	oldest := a.now().Add(-time.Duration(a.registry.MaxHoursPast()) * time.Hour)
	if ended.Before(oldest) {
		a.log.Debug("activity outside provider coverage",
			logger.String("activity", activity.ID), logger.Time("ended", ended))
		return nil
	}

	weather := &ActivityWeather{}

	if activity.StartLocation != nil && !activity.StartTime.IsZero() {
		weather.Start = a.GetLocationWeather(ctx, user, *activity.StartLocation, activity.StartTime, "")
	}
	if activity.EndLocation != nil && !activity.EndTime.IsZero() {
		weather.End = a.GetLocationWeather(ctx, user, *activity.EndLocation, activity.EndTime, "")
	}

	if user != nil && user.Pro && activity.MidLocation != nil &&
		a.cfg.LongActivity > 0 && activity.Duration() >= a.cfg.LongActivity {
		midTime := activity.StartTime.Add(activity.Duration() / 2)
		weather.Mid = a.GetLocationWeather(ctx, user, *activity.MidLocation, midTime, "")
	}

	if weather.Start == nil && weather.End == nil {
		a.log.Warn("activity weather lookup produced no result",
			logger.String("activity", activity.ID))
		return nil
	}
	return weather
}

// pickCandidates returns at most two providers to try in order: the
// preferred one (when eligible) plus one other at random, or two random
// eligible providers. The random backup spreads fallback load across the
// pool instead of hammering a fixed second choice.
func (a *Aggregator) pickCandidates(eligible []Provider, preferred string) []Provider {
	var first Provider
	rest := make([]Provider, 0, len(eligible))
	for _, p := range eligible {
		if first == nil && p.Name() == preferred {
			first = p
			continue
		}
		rest = append(rest, p)
	}

	a.rand.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})

	candidates := make([]Provider, 0, 2)
	if first != nil {
		candidates = append(candidates, first)
	}
	for _, p := range rest {
		if len(candidates) == 2 {
			break
		}
		candidates = append(candidates, p)
	}
	return candidates
}

func cacheKey(coords Coordinates, at time.Time) string {
	return coords.Key() + ":" + strconv.FormatInt(at.Unix(), 10)
}
