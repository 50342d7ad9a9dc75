package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/CGraabaek/strautomator-core/internal/common"
	"github.com/CGraabaek/strautomator-core/internal/ratelimit"
	"github.com/CGraabaek/strautomator-core/internal/weather"
)

// WeatherAPIProvider adapts WeatherAPI.com. Past queries go to the
// history endpoint, future ones to forecast, near-now to current.
type WeatherAPIProvider struct {
	name        string
	apiKey      string
	baseURL     string
	hoursPast   int
	hoursFuture int
	httpCfg     HTTPClientConfig
	circuit     *gobreaker.CircuitBreaker
	limiter     *ratelimit.Scheduler
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, limiter *ratelimit.Scheduler) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:        "weatherapi",
		apiKey:      apiKey,
		baseURL:     "https://api.weatherapi.com/v1",
		hoursPast:   168,
		hoursFuture: 72,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff(),
		},
		circuit: newBreaker("weatherapi"),
		limiter: limiter,
	}
}

func (p *WeatherAPIProvider) Name() string { return p.name }

func (p *WeatherAPIProvider) HoursPast() int { return p.hoursPast }

func (p *WeatherAPIProvider) HoursFuture() int { return p.hoursFuture }

// weatherAPIHour is the hourly observation shape shared by the current,
// history and forecast endpoints.
type weatherAPIHour struct {
	TimeEpoch  int64    `json:"time_epoch"`
	TempC      *float64 `json:"temp_c"`
	FeelslikeC *float64 `json:"feelslike_c"`
	Humidity   *float64 `json:"humidity"`
	PressureMb *float64 `json:"pressure_mb"`
	WindKph    *float64 `json:"wind_kph"`
	WindDegree *float64 `json:"wind_degree"`
	PrecipMm   *float64 `json:"precip_mm"`
	Cloud      *float64 `json:"cloud"`
	VisKm      *float64 `json:"vis_km"`
	Condition  struct {
		Text string `json:"text"`
		Code int    `json:"code"`
	} `json:"condition"`
}

func (p *WeatherAPIProvider) GetWeather(ctx context.Context, coords weather.Coordinates, at time.Time, prefs weather.Preferences) (*weather.WeatherSummary, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi api key is not configured")
	}
	if err := checkCoverage(at, p.hoursPast, p.hoursFuture); err != nil {
		return nil, err
	}

	now := time.Now()
	endpoint := "/current.json"
	switch {
	case at.Before(now.Add(-time.Hour)):
		endpoint = "/history.json"
	case at.After(now.Add(time.Hour)):
		endpoint = "/forecast.json"
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("q", fmt.Sprintf("%.4f,%.4f", coords.Latitude, coords.Longitude))
		switch endpoint {
		case "/history.json":
			values.Set("dt", at.UTC().Format("2006-01-02"))
		case "/forecast.json":
			days := int(at.Sub(now).Hours()/24) + 2
			values.Set("days", fmt.Sprintf("%d", days))
		}

		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s%s?%s", p.baseURL, endpoint, values.Encode()), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, p.limiter, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current  *weatherAPIHour `json:"current"`
		Forecast struct {
			Forecastday []struct {
				Hour []weatherAPIHour `json:"hour"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrMalformedResponse, err)
	}

	obs := payload.Current
	if endpoint != "/current.json" {
		obs = closestHour(payload.Forecast.Forecastday, at)
	}
	if obs == nil {
		return nil, fmt.Errorf("%w: no observation for requested time", weather.ErrMalformedResponse)
	}

	summary := &weather.WeatherSummary{
		Provider:      p.name,
		Summary:       obs.Condition.Text,
		Temperature:   obs.TempC,
		FeelsLike:     obs.FeelslikeC,
		Humidity:      obs.Humidity,
		Pressure:      obs.PressureMb,
		WindDirection: obs.WindDegree,
		Precipitation: obs.PrecipMm,
		CloudCover:    obs.Cloud,
		Visibility:    obs.VisKm,
		ExtraData:     map[string]any{"conditionCode": obs.Condition.Code},
	}
	if obs.WindKph != nil {
		summary.WindSpeed = weather.Float(*obs.WindKph / 3.6)
	}

	icon, tod := localizeIcon(weatherAPIIcon(obs.Condition.Text), at, coords)
	summary.Icon = icon
	summary.ExtraData["timeOfDay"] = tod

	applyUnits(summary, prefs)
	return summary, nil
}

// closestHour picks the hourly observation nearest the requested moment.
func closestHour(days []struct {
	Hour []weatherAPIHour `json:"hour"`
}, at time.Time) *weatherAPIHour {
	var best *weatherAPIHour
	var bestDiff time.Duration
	for i := range days {
		for j := range days[i].Hour {
			h := &days[i].Hour[j]
			diff := at.Sub(time.Unix(h.TimeEpoch, 0))
			if diff < 0 {
				diff = -diff
			}
			if best == nil || diff < bestDiff {
				best = h
				bestDiff = diff
			}
		}
	}
	return best
}

// weatherAPIIcon maps WeatherAPI condition text onto the canonical icon
// vocabulary.
func weatherAPIIcon(text string) string {
	lower := common.Lower(text)
	switch {
	case text == "":
		return weather.IconCloudy
	case common.HasAny(lower, "thunder", "storm"):
		return weather.IconThunderstorm
	case common.HasAny(lower, "sleet", "freezing rain", "freezing drizzle", "ice pellets"):
		return weather.IconSleet
	case common.HasAny(lower, "snow", "blizzard"):
		return weather.IconSnow
	case common.HasAny(lower, "rain", "shower", "drizzle"):
		return weather.IconRain
	case common.HasAny(lower, "fog", "mist", "haze"):
		return weather.IconFog
	case common.HasAny(lower, "overcast"):
		return weather.IconCloudy
	case common.HasAny(lower, "cloud"):
		return weather.IconPartlyCloudy
	case common.HasAny(lower, "sunny", "clear"):
		return weather.IconClear
	default:
		return weather.IconCloudy
	}
}
