package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CGraabaek/strautomator-core/internal/ratelimit"
	"github.com/CGraabaek/strautomator-core/internal/weather"
)

func newTestWeatherAPI(t *testing.T, handler http.HandlerFunc) (*WeatherAPIProvider, *[]string) {
	t.Helper()

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	p := NewWeatherAPIProvider(srv.Client(), "test-key", ratelimit.New(0, 0))
	p.baseURL = srv.URL
	p.httpCfg.Backoff = BackoffConfig{MaxRetries: 0, InitialInterval: time.Millisecond}
	return p, &paths
}

func TestWeatherAPIHistoryLookup(t *testing.T) {
	at := time.Now().Add(-5 * time.Hour).Truncate(time.Hour)

	payload := fmt.Sprintf(`{
		"forecast": {"forecastday": [{"hour": [
			{"time_epoch": %d, "temp_c": 9.0, "wind_kph": 18.0, "condition": {"text": "Light rain", "code": 1183}},
			{"time_epoch": %d, "temp_c": 10.0, "humidity": 80, "wind_kph": 14.4, "precip_mm": 1.2,
			 "vis_km": 8, "condition": {"text": "Patchy rain possible", "code": 1063}}
		]}]}
	}`, at.Add(-3*time.Hour).Unix(), at.Unix())

	p, paths := newTestWeatherAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	})

	summary, err := p.GetWeather(context.Background(), weather.Coordinates{Latitude: 51.5, Longitude: -0.1}, at, weather.Preferences{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*paths) != 1 || (*paths)[0] != "/history.json" {
		t.Fatalf("paths = %v, want one call to /history.json", *paths)
	}
	if summary.Temperature == nil || *summary.Temperature != 10.0 {
		t.Fatalf("temperature = %v, want the closest hour's 10.0", summary.Temperature)
	}
	if summary.WindSpeed == nil || math.Abs(*summary.WindSpeed-4.0) > 1e-9 {
		t.Fatalf("windSpeed = %v m/s, want 4.0 (14.4 kph)", summary.WindSpeed)
	}
	if summary.Icon != weather.IconRain {
		t.Fatalf("icon = %q, want rain", summary.Icon)
	}
	if summary.FeelsLike != nil {
		t.Fatal("absent feelslike must stay nil")
	}
}

func TestWeatherAPICurrentLookup(t *testing.T) {
	p, paths := newTestWeatherAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"current": {"time_epoch": 1715000000, "temp_c": 21.0, "condition": {"text": "Sunny", "code": 1000}}}`))
	})

	summary, err := p.GetWeather(context.Background(), weather.Coordinates{Latitude: 51.5, Longitude: -0.1},
		time.Now(), weather.Preferences{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if (*paths)[0] != "/current.json" {
		t.Fatalf("path = %q, want /current.json", (*paths)[0])
	}
	if *summary.Temperature != 21.0 {
		t.Fatalf("temperature = %v, want 21.0", *summary.Temperature)
	}
}

func TestWeatherAPIForecastLookup(t *testing.T) {
	at := time.Now().Add(26 * time.Hour)

	p, paths := newTestWeatherAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fmt.Sprintf(`{"forecast": {"forecastday": [{"hour": [
			{"time_epoch": %d, "temp_c": 15.0, "condition": {"text": "Overcast", "code": 1009}}
		]}]}}`, at.Unix())))
	})

	summary, err := p.GetWeather(context.Background(), weather.Coordinates{Latitude: 51.5, Longitude: -0.1}, at, weather.Preferences{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if (*paths)[0] != "/forecast.json" {
		t.Fatalf("path = %q, want /forecast.json", (*paths)[0])
	}
	if summary.Icon != weather.IconCloudy {
		t.Fatalf("icon = %q, want cloudy", summary.Icon)
	}
}

func TestWeatherAPINoObservation(t *testing.T) {
	p, _ := newTestWeatherAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"forecast": {"forecastday": []}}`))
	})

	_, err := p.GetWeather(context.Background(), weather.Coordinates{Latitude: 51.5, Longitude: -0.1},
		time.Now().Add(-5*time.Hour), weather.Preferences{})
	if err == nil {
		t.Fatal("expected an error for an empty forecast payload")
	}
}
