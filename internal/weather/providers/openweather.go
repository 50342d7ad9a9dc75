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

// OpenWeatherProvider adapts the OpenWeatherMap One Call timemachine API.
type OpenWeatherProvider struct {
	name        string
	apiKey      string
	baseURL     string
	hoursPast   int
	hoursFuture int
	httpCfg     HTTPClientConfig
	circuit     *gobreaker.CircuitBreaker
	limiter     *ratelimit.Scheduler
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, limiter *ratelimit.Scheduler) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:        "openweathermap",
		apiKey:      apiKey,
		baseURL:     "https://api.openweathermap.org/data/3.0/onecall/timemachine",
		hoursPast:   120,
		hoursFuture: 48,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff(),
		},
		circuit: newBreaker("openweathermap"),
		limiter: limiter,
	}
}

func (p *OpenWeatherProvider) Name() string { return p.name }

func (p *OpenWeatherProvider) HoursPast() int { return p.hoursPast }

func (p *OpenWeatherProvider) HoursFuture() int { return p.hoursFuture }

func (p *OpenWeatherProvider) GetWeather(ctx context.Context, coords weather.Coordinates, at time.Time, prefs weather.Preferences) (*weather.WeatherSummary, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweathermap api key is not configured")
	}
	if err := checkCoverage(at, p.hoursPast, p.hoursFuture); err != nil {
		return nil, err
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		values.Set("lat", fmt.Sprintf("%.4f", coords.Latitude))
		values.Set("lon", fmt.Sprintf("%.4f", coords.Longitude))
		values.Set("dt", fmt.Sprintf("%d", at.Unix()))

		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, p.limiter, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Data []struct {
			Dt         int64    `json:"dt"`
			Temp       *float64 `json:"temp"`
			FeelsLike  *float64 `json:"feels_like"`
			Pressure   *float64 `json:"pressure"`
			Humidity   *float64 `json:"humidity"`
			Clouds     *float64 `json:"clouds"`
			Visibility *float64 `json:"visibility"`
			WindSpeed  *float64 `json:"wind_speed"`
			WindDeg    *float64 `json:"wind_deg"`
			Rain       struct {
				OneH *float64 `json:"1h"`
			} `json:"rain"`
			Weather []struct {
				ID          int    `json:"id"`
				Description string `json:"description"`
			} `json:"weather"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrMalformedResponse, err)
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("%w: empty data array", weather.ErrMalformedResponse)
	}

	obs := payload.Data[0]

	summary := &weather.WeatherSummary{
		Provider:      p.name,
		Temperature:   obs.Temp,
		FeelsLike:     obs.FeelsLike,
		Humidity:      obs.Humidity,
		Pressure:      obs.Pressure,
		WindSpeed:     obs.WindSpeed,
		WindDirection: obs.WindDeg,
		CloudCover:    obs.Clouds,
		Precipitation: obs.Rain.OneH,
		ExtraData:     map[string]any{},
	}
	if obs.Visibility != nil {
		// Vendor reports meters.
		summary.Visibility = weather.Float(*obs.Visibility / 1000)
	}

	if len(obs.Weather) > 0 {
		summary.Summary = obs.Weather[0].Description
		icon, tod := localizeIcon(openWeatherIcon(obs.Weather[0].ID), at, coords)
		summary.Icon = icon
		summary.ExtraData["timeOfDay"] = tod
		summary.ExtraData["weatherCode"] = obs.Weather[0].ID
	} else {
		_, tod := localizeIcon("", at, coords)
		summary.ExtraData["timeOfDay"] = tod
	}
	if obs.Rain.OneH != nil {
		summary.ExtraData["rain1h"] = *obs.Rain.OneH
	}

	applyUnits(summary, prefs)
	return summary, nil
}

// openWeatherIcon maps OpenWeatherMap condition ids onto the canonical
// icon vocabulary.
func openWeatherIcon(id int) string {
	switch {
	case id >= 200 && id < 300:
		return weather.IconThunderstorm
	case id >= 300 && id < 500:
		return weather.IconRain
	case id == 511 || (id >= 611 && id <= 616):
		return weather.IconSleet
	case id >= 500 && id < 600:
		return weather.IconRain
	case id >= 600 && id < 700:
		return weather.IconSnow
	case id == 771 || id == 781:
		return weather.IconWind
	case id >= 700 && id < 800:
		return weather.IconFog
	case id == 800:
		return weather.IconClear
	case id == 801 || id == 802:
		return weather.IconPartlyCloudy
	default:
		return weather.IconCloudy
	}
}
