package weather

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/CGraabaek/strautomator-core/pkg/logger"
)

type stubProvider struct {
	name        string
	hoursPast   int
	hoursFuture int
}

func (p *stubProvider) Name() string      { return p.name }
func (p *stubProvider) HoursPast() int    { return p.hoursPast }
func (p *stubProvider) HoursFuture() int  { return p.hoursFuture }
func (p *stubProvider) GetWeather(context.Context, Coordinates, time.Time, Preferences) (*WeatherSummary, error) {
	return &WeatherSummary{Provider: p.name}, nil
}

func newTestRegistry(t *testing.T, cfg RegistryConfig, providers ...Provider) *Registry {
	t.Helper()
	r := NewRegistry(logger.NewNop(), cfg)
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			t.Fatalf("register %s: %v", p.Name(), err)
		}
	}
	return r
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	r := newTestRegistry(t, RegistryConfig{}, &stubProvider{name: "alpha"})
	if err := r.Register(&stubProvider{name: "alpha"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestEligibleFiltersByCoverageWindow(t *testing.T) {
	past := &stubProvider{name: "past", hoursPast: 120, hoursFuture: 0}
	future := &stubProvider{name: "future", hoursPast: 1, hoursFuture: 72}
	r := newTestRegistry(t, RegistryConfig{}, past, future)

	now := time.Now()
	r.now = func() time.Time { return now }

	eligible := r.Eligible(now.Add(-48 * time.Hour))
	if len(eligible) != 1 || eligible[0].Name() != "past" {
		t.Fatalf("expected only the past provider for -48h, got %v", names(eligible))
	}

	eligible = r.Eligible(now.Add(24 * time.Hour))
	if len(eligible) != 1 || eligible[0].Name() != "future" {
		t.Fatalf("expected only the future provider for +24h, got %v", names(eligible))
	}

	eligible = r.Eligible(now.Add(-30 * time.Minute))
	if len(eligible) != 2 {
		t.Fatalf("expected both providers near now, got %v", names(eligible))
	}
}

func TestEligibleExcludesDisabledProviders(t *testing.T) {
	p := &stubProvider{name: "alpha", hoursPast: 24, hoursFuture: 24}
	r := newTestRegistry(t, RegistryConfig{}, p)

	now := time.Now()
	r.now = func() time.Time { return now }

	r.RecordFailure("alpha", fmt.Errorf("call failed: %w", ErrQuotaExceeded))
	if len(r.Eligible(now)) != 0 {
		t.Fatal("quota-disabled provider should not be eligible")
	}

	// Past the disable horizon the provider becomes eligible again.
	r.now = func() time.Time { return now.Add(26 * time.Hour) }
	if len(r.Eligible(now.Add(26*time.Hour))) != 1 {
		t.Fatal("provider should be eligible after the disable window passes")
	}
}

func TestQuotaDisableEndsAfterEndOfDay(t *testing.T) {
	p := &stubProvider{name: "alpha", hoursPast: 24, hoursFuture: 24}
	r := newTestRegistry(t, RegistryConfig{}, p)

	now := time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.RecordFailure("alpha", ErrQuotaExceeded)

	st, ok := r.State("alpha")
	if !ok {
		t.Fatal("missing state for alpha")
	}
	want := time.Date(2024, 5, 11, 1, 0, 0, 0, time.UTC)
	if !st.DisabledTill.Equal(want) {
		t.Fatalf("disabledTill = %v, want %v", st.DisabledTill, want)
	}
	if st.ErrorCount != 1 {
		t.Fatalf("errorCount = %d, want 1", st.ErrorCount)
	}
}

func TestSuccessClearsDisableFlag(t *testing.T) {
	p := &stubProvider{name: "alpha", hoursPast: 24, hoursFuture: 24}
	r := newTestRegistry(t, RegistryConfig{}, p)

	r.RecordFailure("alpha", ErrQuotaExceeded)
	r.RecordSuccess("alpha")

	st, _ := r.State("alpha")
	if !st.DisabledTill.IsZero() {
		t.Fatalf("disabledTill should be cleared, got %v", st.DisabledTill)
	}
}

func TestQuotaLimitExcludesUntilIdleWindowPasses(t *testing.T) {
	p := &stubProvider{name: "alpha", hoursPast: 24, hoursFuture: 24}
	r := newTestRegistry(t, RegistryConfig{
		DailyLimits: map[string]int{"alpha": 2},
		ResetWindow: 16 * time.Hour,
	}, p)

	now := time.Now()
	r.now = func() time.Time { return now }

	r.RecordRequest("alpha")
	r.RecordRequest("alpha")

	if len(r.Eligible(now)) != 0 {
		t.Fatal("provider over its daily limit should not be eligible")
	}

	// After more than the reset window without a request, the quota is
	// treated as rolled over.
	r.now = func() time.Time { return now.Add(17 * time.Hour) }
	if len(r.Eligible(now.Add(17*time.Hour))) != 1 {
		t.Fatal("idle provider should be eligible again via the reset window")
	}

	// The next recorded request applies the implicit reset.
	r.RecordRequest("alpha")
	st, _ := r.State("alpha")
	if st.RequestCount != 1 {
		t.Fatalf("requestCount = %d after implicit reset, want 1", st.RequestCount)
	}
}

func TestRecordFailureOnTransportDoesNotDisable(t *testing.T) {
	p := &stubProvider{name: "alpha", hoursPast: 24, hoursFuture: 24}
	r := newTestRegistry(t, RegistryConfig{}, p)

	r.RecordFailure("alpha", errors.New("connection refused"))

	st, _ := r.State("alpha")
	if st.ErrorCount != 1 {
		t.Fatalf("errorCount = %d, want 1", st.ErrorCount)
	}
	if !st.DisabledTill.IsZero() {
		t.Fatal("transport failures must not set the disable flag")
	}
}

func TestMaxHoursPast(t *testing.T) {
	r := newTestRegistry(t, RegistryConfig{},
		&stubProvider{name: "a", hoursPast: 24},
		&stubProvider{name: "b", hoursPast: 168},
		&stubProvider{name: "c", hoursPast: 48},
	)
	if got := r.MaxHoursPast(); got != 168 {
		t.Fatalf("MaxHoursPast = %d, want 168", got)
	}
}

func TestResetCounters(t *testing.T) {
	p := &stubProvider{name: "alpha", hoursPast: 24, hoursFuture: 24}
	r := newTestRegistry(t, RegistryConfig{}, p)

	r.RecordRequest("alpha")
	r.RecordFailure("alpha", errors.New("boom"))
	r.ResetCounters()

	st, _ := r.State("alpha")
	if st.RequestCount != 0 || st.ErrorCount != 0 {
		t.Fatalf("counters not reset: %+v", st)
	}
}

func names(ps []Provider) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name()
	}
	return out
}
