package weather

import (
	"context"
	"errors"
	"time"
)

// Provider failure taxonomy. Adapters wrap these sentinels so the
// aggregator and registry can classify failures with errors.Is.
var (
	// ErrOutOfRange means the requested point in time falls outside the
	// provider's coverage window. Raised before any network call.
	ErrOutOfRange = errors.New("point in time outside provider coverage window")

	// ErrQuotaExceeded means the vendor refused the call for billing or
	// rate reasons, or the local rate limiter would not admit it.
	ErrQuotaExceeded = errors.New("provider quota exceeded")

	// ErrTransport covers network failures, timeouts and vendor 5xx.
	ErrTransport = errors.New("provider transport failure")

	// ErrMalformedResponse means the vendor answered but the payload
	// could not be decoded into a summary.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// Provider abstracts one weather data vendor. Name must be a stable
// identifier as it is used as the registry, cache and config key.
// HoursPast and HoursFuture declare how far back and forward from now
// the vendor can answer.
type Provider interface {
	Name() string
	HoursPast() int
	HoursFuture() int
	GetWeather(ctx context.Context, coords Coordinates, at time.Time, prefs Preferences) (*WeatherSummary, error)
}

// Cache is the time-bound key/value collaborator consulted before any
// vendor is called. The store applies its own configured TTL; a missing
// or expired entry is simply a miss.
type Cache interface {
	Get(namespace, key string) (any, bool)
	Set(namespace, key string, value any)
}
