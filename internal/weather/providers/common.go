package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"github.com/zsefvlol/timezonemapper"

	"github.com/CGraabaek/strautomator-core/internal/ratelimit"
	"github.com/CGraabaek/strautomator-core/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings shared by
// all vendor adapters.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

var (
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

func defaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      2,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequestWithResilience executes the HTTP request behind the rate
// limiter, with retries, exponential backoff and a circuit breaker.
// Failures come back wrapped in the weather error taxonomy so callers
// can classify them: 402/429 map to quota exhaustion, everything else on
// the transport path to a transport failure. Quota failures are not
// retried; the vendor will not change its mind within a backoff window.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	limiter *ratelimit.Scheduler,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", weather.ErrTransport, ctx.Err())
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		var resp *http.Response
		execErr := limiter.Schedule(ctx, func() error {
			result, cbErr := cb.Execute(func() (interface{}, error) {
				r, doErr := cfg.Client.Do(req)
				if doErr != nil {
					return nil, fmt.Errorf("%w: %v", weather.ErrTransport, doErr)
				}

				switch {
				case r.StatusCode == http.StatusPaymentRequired || r.StatusCode == http.StatusTooManyRequests:
					r.Body.Close()
					return nil, fmt.Errorf("%w: status %d", weather.ErrQuotaExceeded, r.StatusCode)
				case r.StatusCode >= 500:
					r.Body.Close()
					return nil, fmt.Errorf("%w: status %d", weather.ErrTransport, r.StatusCode)
				case r.StatusCode < 200 || r.StatusCode >= 300:
					r.Body.Close()
					return nil, fmt.Errorf("%w: unexpected status %d", weather.ErrTransport, r.StatusCode)
				}
				return r, nil
			})
			if cbErr != nil {
				return cbErr
			}
			resp = result.(*http.Response)
			return nil
		})

		if execErr == nil {
			return resp, nil
		}

		if errors.Is(execErr, ratelimit.ErrLimited) {
			return nil, fmt.Errorf("%w: %v", weather.ErrQuotaExceeded, execErr)
		}
		if errors.Is(execErr, gobreaker.ErrOpenState) || errors.Is(execErr, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open: %v", weather.ErrTransport, execErr)
		}
		if errors.Is(execErr, weather.ErrQuotaExceeded) {
			return nil, execErr
		}

		lastErr = execErr
		if attempt >= cfg.Backoff.MaxRetries {
			return nil, lastErr
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if cfg.Backoff.MaxInterval > 0 && delay > cfg.Backoff.MaxInterval {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %v", weather.ErrTransport, ctx.Err())
		case <-timer.C:
		}

		attempt++
	}
}

// checkCoverage rejects a point in time outside [now-hoursPast, now+hoursFuture]
// before any network call is made.
func checkCoverage(at time.Time, hoursPast, hoursFuture int) error {
	hoursFromNow := time.Until(at).Hours()
	if hoursFromNow >= 0 {
		if hoursFromNow > float64(hoursFuture) {
			return fmt.Errorf("%w: %.1fh ahead, max %dh", weather.ErrOutOfRange, hoursFromNow, hoursFuture)
		}
		return nil
	}
	if -hoursFromNow > float64(hoursPast) {
		return fmt.Errorf("%w: %.1fh ago, max %dh", weather.ErrOutOfRange, -hoursFromNow, hoursPast)
	}
	return nil
}

// timeOfDay classifies the queried moment as day or night in the local
// timezone of the coordinates. Falls back to UTC when the timezone cannot
// be resolved.
func timeOfDay(at time.Time, coords weather.Coordinates) string {
	local := at.UTC()
	if tz := timezonemapper.LatLngToTimezoneString(coords.Latitude, coords.Longitude); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			local = at.In(loc)
		}
	}
	if h := local.Hour(); h >= 6 && h < 18 {
		return "day"
	}
	return "night"
}

// localizeIcon applies the -day/-night suffix to icons that vary by time
// of day and returns the time-of-day classification alongside.
func localizeIcon(base string, at time.Time, coords weather.Coordinates) (string, string) {
	tod := timeOfDay(at, coords)
	switch base {
	case weather.IconClear, weather.IconPartlyCloudy:
		return base + "-" + tod, tod
	default:
		return base, tod
	}
}

// applyUnits converts a metric-normalized summary into the caller's
// preferred unit system in place. Metric is the default and needs no work.
func applyUnits(s *weather.WeatherSummary, prefs weather.Preferences) {
	if prefs.EffectiveUnits() != weather.UnitsImperial {
		return
	}
	if s.Temperature != nil {
		s.Temperature = weather.Float(weather.CelsiusToFahrenheit(*s.Temperature))
	}
	if s.FeelsLike != nil {
		s.FeelsLike = weather.Float(weather.CelsiusToFahrenheit(*s.FeelsLike))
	}
	if s.WindSpeed != nil {
		s.WindSpeed = weather.Float(weather.MetersPerSecToMph(*s.WindSpeed))
	}
	if s.Visibility != nil {
		s.Visibility = weather.Float(weather.KilometersToMiles(*s.Visibility))
	}
	if s.Precipitation != nil {
		s.Precipitation = weather.Float(weather.MillimetersToInches(*s.Precipitation))
	}
}
