package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/CGraabaek/strautomator-core/internal/ratelimit"
	"github.com/CGraabaek/strautomator-core/internal/weather"
)

// OpenMeteoProvider adapts Open-Meteo. No API key required; the hourly
// forecast endpoint covers both recent past and forecast horizon.
type OpenMeteoProvider struct {
	name        string
	baseURL     string
	hoursPast   int
	hoursFuture int
	httpCfg     HTTPClientConfig
	circuit     *gobreaker.CircuitBreaker
	limiter     *ratelimit.Scheduler
}

func NewOpenMeteoProvider(client *http.Client, limiter *ratelimit.Scheduler) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:        "openmeteo",
		baseURL:     "https://api.open-meteo.com/v1/forecast",
		hoursPast:   48,
		hoursFuture: 168,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff(),
		},
		circuit: newBreaker("openmeteo"),
		limiter: limiter,
	}
}

func (p *OpenMeteoProvider) Name() string { return p.name }

func (p *OpenMeteoProvider) HoursPast() int { return p.hoursPast }

func (p *OpenMeteoProvider) HoursFuture() int { return p.hoursFuture }

func (p *OpenMeteoProvider) GetWeather(ctx context.Context, coords weather.Coordinates, at time.Time, prefs weather.Preferences) (*weather.WeatherSummary, error) {
	if err := checkCoverage(at, p.hoursPast, p.hoursFuture); err != nil {
		return nil, err
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%.4f", coords.Latitude))
		values.Set("longitude", fmt.Sprintf("%.4f", coords.Longitude))
		values.Set("hourly", "temperature_2m,apparent_temperature,relative_humidity_2m,"+
			"surface_pressure,wind_speed_10m,wind_direction_10m,precipitation,cloud_cover,visibility,weather_code")
		values.Set("wind_speed_unit", "ms")
		values.Set("timeformat", "unixtime")
		values.Set("past_days", "2")
		values.Set("forecast_days", "7")

		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, p.limiter, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Hourly struct {
			Time          []int64    `json:"time"`
			Temperature   []*float64 `json:"temperature_2m"`
			FeelsLike     []*float64 `json:"apparent_temperature"`
			Humidity      []*float64 `json:"relative_humidity_2m"`
			Pressure      []*float64 `json:"surface_pressure"`
			WindSpeed     []*float64 `json:"wind_speed_10m"`
			WindDirection []*float64 `json:"wind_direction_10m"`
			Precipitation []*float64 `json:"precipitation"`
			CloudCover    []*float64 `json:"cloud_cover"`
			Visibility    []*float64 `json:"visibility"`
			WeatherCode   []*int     `json:"weather_code"`
		} `json:"hourly"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrMalformedResponse, err)
	}
	if len(payload.Hourly.Time) == 0 {
		return nil, fmt.Errorf("%w: empty hourly series", weather.ErrMalformedResponse)
	}

	idx := closestIndex(payload.Hourly.Time, at)

	summary := &weather.WeatherSummary{
		Provider:      p.name,
		Temperature:   pick(payload.Hourly.Temperature, idx),
		FeelsLike:     pick(payload.Hourly.FeelsLike, idx),
		Humidity:      pick(payload.Hourly.Humidity, idx),
		Pressure:      pick(payload.Hourly.Pressure, idx),
		WindSpeed:     pick(payload.Hourly.WindSpeed, idx),
		WindDirection: pick(payload.Hourly.WindDirection, idx),
		Precipitation: pick(payload.Hourly.Precipitation, idx),
		CloudCover:    pick(payload.Hourly.CloudCover, idx),
		ExtraData:     map[string]any{},
	}
	if v := pick(payload.Hourly.Visibility, idx); v != nil {
		// Vendor reports meters.
		summary.Visibility = weather.Float(*v / 1000)
	}

	base := weather.IconCloudy
	if idx < len(payload.Hourly.WeatherCode) && payload.Hourly.WeatherCode[idx] != nil {
		code := *payload.Hourly.WeatherCode[idx]
		base = openMeteoIcon(code)
		summary.Summary = openMeteoSummary(code)
		summary.ExtraData["weatherCode"] = code
	}
	icon, tod := localizeIcon(base, at, coords)
	summary.Icon = icon
	summary.ExtraData["timeOfDay"] = tod

	applyUnits(summary, prefs)
	return summary, nil
}

func closestIndex(times []int64, at time.Time) int {
	target := at.Unix()
	best := 0
	bestDiff := int64(1<<62 - 1)
	for i, t := range times {
		diff := target - t
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}
	return best
}

func pick(vals []*float64, idx int) *float64 {
	if idx >= len(vals) {
		return nil
	}
	return vals[idx]
}

// openMeteoIcon maps WMO weather codes onto the canonical icon vocabulary.
func openMeteoIcon(code int) string {
	switch {
	case code == 0:
		return weather.IconClear
	case code == 1 || code == 2:
		return weather.IconPartlyCloudy
	case code == 3:
		return weather.IconCloudy
	case code >= 45 && code <= 48:
		return weather.IconFog
	case code >= 56 && code <= 57 || code >= 66 && code <= 67:
		return weather.IconSleet
	case (code >= 51 && code <= 65) || (code >= 80 && code <= 82):
		return weather.IconRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.IconSnow
	case code >= 95:
		return weather.IconThunderstorm
	default:
		return weather.IconCloudy
	}
}

func openMeteoSummary(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code >= 1 && code <= 2:
		return "partly cloudy"
	case code == 3:
		return "overcast"
	case code >= 45 && code <= 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code == 85 || code == 86:
		return "snow showers"
	case code >= 95:
		return "thunderstorm"
	default:
		return "unknown"
	}
}
