package weather

import (
	"testing"
	"time"
)

func TestCoordinatesRoundAndKey(t *testing.T) {
	a := Coordinates{Latitude: 51.50731, Longitude: -0.12766}
	b := Coordinates{Latitude: 51.50734, Longitude: -0.12769}

	if a.Round() != b.Round() {
		t.Fatalf("rounded coordinates differ: %v vs %v", a.Round(), b.Round())
	}
	if a.Round().Key() != "51.5073,-0.1277" {
		t.Fatalf("unexpected key %q", a.Round().Key())
	}
}

func TestCoordinatesValid(t *testing.T) {
	cases := []struct {
		c    Coordinates
		want bool
	}{
		{Coordinates{51.5, -0.12}, true},
		{Coordinates{-90, 180}, true},
		{Coordinates{91, 0}, false},
		{Coordinates{0, -181}, false},
	}
	for _, tc := range cases {
		if got := tc.c.Valid(); got != tc.want {
			t.Errorf("Valid(%v) = %v, want %v", tc.c, got, tc.want)
		}
	}
}

func TestActivityDuration(t *testing.T) {
	start := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

	a := Activity{StartTime: start, EndTime: start.Add(90 * time.Minute)}
	if a.Duration() != 90*time.Minute {
		t.Fatalf("Duration = %v, want 90m", a.Duration())
	}

	b := Activity{StartTime: start}
	if b.Duration() != 0 {
		t.Fatalf("open-ended activity duration = %v, want 0", b.Duration())
	}

	c := Activity{StartTime: start, EndTime: start.Add(-time.Hour)}
	if c.Duration() != 0 {
		t.Fatalf("inverted activity duration = %v, want 0", c.Duration())
	}
}

func TestEffectiveUnits(t *testing.T) {
	if (Preferences{}).EffectiveUnits() != UnitsMetric {
		t.Fatal("default units must be metric")
	}
	if (Preferences{Units: UnitsImperial}).EffectiveUnits() != UnitsImperial {
		t.Fatal("imperial preference not honored")
	}
	if (Preferences{Units: "kelvin"}).EffectiveUnits() != UnitsMetric {
		t.Fatal("unknown units must fall back to metric")
	}
}

func TestUnitConversions(t *testing.T) {
	if got := CelsiusToFahrenheit(0); got != 32 {
		t.Fatalf("0C = %vF, want 32", got)
	}
	if got := CelsiusToFahrenheit(100); got != 212 {
		t.Fatalf("100C = %vF, want 212", got)
	}
	if got := MillimetersToInches(25.4); got != 1 {
		t.Fatalf("25.4mm = %vin, want 1", got)
	}
}
