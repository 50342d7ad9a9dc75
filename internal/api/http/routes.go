package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/kelvins/geocoder"

	"github.com/CGraabaek/strautomator-core/internal/weather"
)

var validate = validator.New()

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Aggregator *weather.Aggregator
	Registry   *weather.Registry

	// GeocoderAPIKey enables city/country queries; empty disables them.
	GeocoderAPIKey string
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/location", func(c *fiber.Ctx) error {
		var req locationWeatherQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		coords, err := req.resolveCoordinates(deps.GeocoderAPIKey)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		summary := deps.Aggregator.GetLocationWeather(c.Context(), req.user(), coords, req.At, req.Provider)
		if summary == nil {
			return fiber.NewError(fiber.StatusNotFound, "no weather data available for requested location and time")
		}
		return c.JSON(summary)
	})

	v1.Post("/weather/activity", func(c *fiber.Ctx) error {
		var req activityWeatherRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		result := deps.Aggregator.GetActivityWeather(c.Context(), req.User, req.Activity)
		if result == nil {
			return fiber.NewError(fiber.StatusNotFound, "no weather data available for activity")
		}
		return c.JSON(result)
	})

	v1.Get("/providers", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"providers": deps.Registry.Snapshot()})
	})
}

// locationWeatherQuery holds the query parameters for a point lookup.
// Either lat/lon or city/country must be supplied.
type locationWeatherQuery struct {
	Lat     *float64
	Lon     *float64
	City    string
	Country string

	At       time.Time `validate:"required"`
	Provider string
	Units    weather.Units
}

func (q *locationWeatherQuery) bind(c *fiber.Ctx) error {
	if v := c.Query("lat"); v != "" {
		lat, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.New("invalid lat")
		}
		q.Lat = &lat
	}
	if v := c.Query("lon"); v != "" {
		lon, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.New("invalid lon")
		}
		q.Lon = &lon
	}
	q.City = c.Query("city")
	q.Country = c.Query("country")
	q.Provider = c.Query("provider")
	q.Units = weather.Units(c.Query("units"))

	ts := c.Query("time")
	if ts == "" {
		return errors.New("time query parameter is required")
	}
	at, err := parseTime(ts)
	if err != nil {
		return err
	}
	q.At = at

	return validate.Struct(q)
}

// resolveCoordinates returns the queried coordinates, geocoding
// city/country when no explicit pair was given.
func (q *locationWeatherQuery) resolveCoordinates(geocoderKey string) (weather.Coordinates, error) {
	if q.Lat != nil && q.Lon != nil {
		return weather.Coordinates{Latitude: *q.Lat, Longitude: *q.Lon}, nil
	}
	if q.City == "" {
		return weather.Coordinates{}, errors.New("either lat/lon or city must be provided")
	}
	if geocoderKey == "" {
		return weather.Coordinates{}, errors.New("city lookups are not enabled")
	}

	geocoder.ApiKey = geocoderKey
	loc, err := geocoder.Geocoding(geocoder.Address{City: q.City, Country: q.Country})
	if err != nil {
		return weather.Coordinates{}, errors.New("could not resolve city to coordinates")
	}
	return weather.Coordinates{Latitude: loc.Latitude, Longitude: loc.Longitude}, nil
}

func (q *locationWeatherQuery) user() *weather.User {
	if q.Units == "" {
		return nil
	}
	return &weather.User{Preferences: weather.Preferences{Units: q.Units}}
}

// activityWeatherRequest is the POST body for activity annotation.
type activityWeatherRequest struct {
	User     *weather.User    `json:"user"`
	Activity weather.Activity `json:"activity" validate:"required"`
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
