package weather

import (
	"fmt"
	"math"
	"time"
)

// Units is the measurement system a summary is expressed in.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// Canonical icon vocabulary. Clear and partly-cloudy icons get a
// -day/-night suffix based on local time at the queried coordinates.
const (
	IconClear        = "clear"
	IconPartlyCloudy = "partly-cloudy"
	IconCloudy       = "cloudy"
	IconRain         = "rain"
	IconSleet        = "sleet"
	IconSnow         = "snow"
	IconThunderstorm = "thunderstorm"
	IconFog          = "fog"
	IconWind         = "wind"
)

// Coordinates is a (latitude, longitude) pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the pair is a usable geographic coordinate.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Round returns the coordinates rounded to 4 decimal places (~11m),
// so near-identical queries share a cache key.
func (c Coordinates) Round() Coordinates {
	return Coordinates{
		Latitude:  math.Round(c.Latitude*10000) / 10000,
		Longitude: math.Round(c.Longitude*10000) / 10000,
	}
}

// Key returns a canonical string form for cache and log keys.
func (c Coordinates) Key() string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

// WeatherSummary is one normalized point-in-time observation. Nil numeric
// fields mean the vendor did not report that measurement.
type WeatherSummary struct {
	Provider      string         `json:"provider"`
	Summary       string         `json:"summary,omitempty"`
	Icon          string         `json:"icon,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	FeelsLike     *float64       `json:"feelsLike,omitempty"`
	Humidity      *float64       `json:"humidity,omitempty"`
	Pressure      *float64       `json:"pressure,omitempty"`
	WindSpeed     *float64       `json:"windSpeed,omitempty"`
	WindDirection *float64       `json:"windDirection,omitempty"`
	Precipitation *float64       `json:"precipitation,omitempty"`
	CloudCover    *float64       `json:"cloudCover,omitempty"`
	Visibility    *float64       `json:"visibility,omitempty"`
	ExtraData     map[string]any `json:"extraData,omitempty"`
}

// ActivityWeather holds the summaries for the moments of one activity.
// Mid is only populated for long activities requested by privileged users.
type ActivityWeather struct {
	Start *WeatherSummary `json:"start,omitempty"`
	Mid   *WeatherSummary `json:"mid,omitempty"`
	End   *WeatherSummary `json:"end,omitempty"`
}

// Activity carries the location and time data needed to annotate a
// recorded outdoor activity with weather.
type Activity struct {
	ID            string       `json:"id"`
	StartTime     time.Time    `json:"startTime"`
	EndTime       time.Time    `json:"endTime"`
	StartLocation *Coordinates `json:"startLocation,omitempty"`
	MidLocation   *Coordinates `json:"midLocation,omitempty"`
	EndLocation   *Coordinates `json:"endLocation,omitempty"`
}

// HasLocation reports whether the activity carries any coordinate at all.
func (a Activity) HasLocation() bool {
	return a.StartLocation != nil || a.MidLocation != nil || a.EndLocation != nil
}

// Duration returns the elapsed time of the activity, zero if times are unset.
func (a Activity) Duration() time.Duration {
	if a.StartTime.IsZero() || a.EndTime.IsZero() || a.EndTime.Before(a.StartTime) {
		return 0
	}
	return a.EndTime.Sub(a.StartTime)
}

// Preferences are the per-user settings the weather core consumes.
type Preferences struct {
	WeatherProvider string `json:"weatherProvider,omitempty"`
	Units           Units  `json:"units,omitempty"`
}

// EffectiveUnits resolves the unit system, defaulting to metric.
func (p Preferences) EffectiveUnits() Units {
	if p.Units == UnitsImperial {
		return UnitsImperial
	}
	return UnitsMetric
}

// User identifies a caller and their stored preferences. Pro users get the
// additional midpoint lookup on long activities.
type User struct {
	ID          string      `json:"id"`
	Pro         bool        `json:"pro"`
	Preferences Preferences `json:"preferences"`
}

// Float returns a pointer to v, for populating optional summary fields.
func Float(v float64) *float64 {
	return &v
}

// Unit conversion helpers. Vendors are decoded in metric; adapters convert
// when the caller prefers imperial.

func CelsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }

func MetersPerSecToMph(ms float64) float64 { return ms * 2.236936 }

func KilometersToMiles(km float64) float64 { return km * 0.621371 }

func MillimetersToInches(mm float64) float64 { return mm / 25.4 }
