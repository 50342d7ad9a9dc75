package weather

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/CGraabaek/strautomator-core/pkg/logger"
)

// ProviderState is a read-only snapshot of one provider's runtime counters.
type ProviderState struct {
	RequestCount  int       `json:"requestCount"`
	ErrorCount    int       `json:"errorCount"`
	LastRequestAt time.Time `json:"lastRequestAt,omitempty"`
	DisabledTill  time.Time `json:"disabledTill,omitempty"`
}

type providerState struct {
	requestCount  int
	errorCount    int
	lastRequestAt time.Time
	disabledTill  time.Time
}

// RegistryConfig tunes quota tracking.
type RegistryConfig struct {
	// DailyLimits caps requests per provider name per day; missing or
	// non-positive means unlimited.
	DailyLimits map[string]int

	// ResetWindow is the no-request interval after which a provider's
	// quota is considered rolled over (heuristic substitute for a true
	// calendar-day reset).
	ResetWindow time.Duration
}

// DefaultResetWindow matches the vendor billing cycles closely enough in
// practice while staying independent of the vendor's timezone.
const DefaultResetWindow = 16 * time.Hour

// Registry holds the enabled providers and owns all of their mutable
// runtime state. It answers which providers may serve a query at a given
// point in time, applying coverage, disable and quota checks.
type Registry struct {
	mu        sync.Mutex
	providers []Provider
	byName    map[string]Provider
	state     map[string]*providerState

	limits      map[string]int
	resetWindow time.Duration

	log *logger.Logger
	now func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger, cfg RegistryConfig) *Registry {
	if cfg.ResetWindow <= 0 {
		cfg.ResetWindow = DefaultResetWindow
	}
	return &Registry{
		byName:      make(map[string]Provider),
		state:       make(map[string]*providerState),
		limits:      cfg.DailyLimits,
		resetWindow: cfg.ResetWindow,
		log:         log,
		now:         time.Now,
	}
}

// Register adds a provider. Names must be unique.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers = append(r.providers, p)
	r.byName[name] = p
	r.state[name] = &providerState{}
	return nil
}

// Names returns the registered provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

// MaxHoursPast returns the widest past coverage across all registered
// providers. Queries older than this cannot be answered by anyone.
func (r *Registry) MaxHoursPast() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	max := 0
	for _, p := range r.providers {
		if p.HoursPast() > max {
			max = p.HoursPast()
		}
	}
	return max
}

// Eligible returns the providers that may serve a query for the given
// point in time: coverage window includes it, not temporarily disabled,
// and daily quota not exhausted (or quota considered rolled over because
// the provider has been idle longer than the reset window).
func (r *Registry) Eligible(at time.Time) []Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	hoursFromNow := at.Sub(now).Hours()

	var eligible []Provider
	for _, p := range r.providers {
		if hoursFromNow >= 0 {
			if float64(p.HoursFuture()) < hoursFromNow {
				continue
			}
		} else {
			if float64(p.HoursPast()) < -hoursFromNow {
				continue
			}
		}

		st := r.state[p.Name()]
		if !st.disabledTill.IsZero() && st.disabledTill.After(now) {
			continue
		}

		limit := r.limits[p.Name()]
		if limit > 0 && st.requestCount >= limit {
			if st.lastRequestAt.IsZero() || now.Sub(st.lastRequestAt) <= r.resetWindow {
				continue
			}
			// Idle past the reset window: quota assumed rolled over.
		}

		eligible = append(eligible, p)
	}
	return eligible
}

// RecordRequest notes an outbound attempt against a provider. A provider
// that has been idle longer than the reset window gets its counters
// zeroed first (implicit quota reset).
func (r *Registry) RecordRequest(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.state[name]
	if !ok {
		return
	}
	now := r.now()
	if !st.lastRequestAt.IsZero() && now.Sub(st.lastRequestAt) > r.resetWindow {
		st.requestCount = 0
		st.errorCount = 0
	}
	st.requestCount++
	st.lastRequestAt = now
}

// RecordSuccess clears any temporary disable flag after a working call.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.state[name]; ok {
		st.disabledTill = time.Time{}
	}
}

// RecordFailure increments the provider's error counter and, on a quota
// signal, disables it until one hour past the end of the current UTC day
// so it is not retried before the vendor's billing cycle rolls over.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.state[name]
	if !ok {
		return
	}
	st.errorCount++

	if errors.Is(err, ErrQuotaExceeded) {
		st.disabledTill = endOfDay(r.now()).Add(time.Hour)
		r.log.Warn("provider disabled until quota rollover",
			logger.String("provider", name),
			logger.Time("disabledTill", st.disabledTill))
	}
}

// ResetCounters zeroes all request/error counters, for the daily rollover job.
func (r *Registry) ResetCounters() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, st := range r.state {
		st.requestCount = 0
		st.errorCount = 0
	}
}

// Snapshot returns a copy of every provider's runtime state, keyed by name.
func (r *Registry) Snapshot() map[string]ProviderState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]ProviderState, len(r.state))
	for name, st := range r.state {
		out[name] = ProviderState{
			RequestCount:  st.requestCount,
			ErrorCount:    st.errorCount,
			LastRequestAt: st.lastRequestAt,
			DisabledTill:  st.disabledTill,
		}
	}
	return out
}

// State returns the runtime state for one provider.
func (r *Registry) State(name string) (ProviderState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.state[name]
	if !ok {
		return ProviderState{}, false
	}
	return ProviderState{
		RequestCount:  st.requestCount,
		ErrorCount:    st.errorCount,
		LastRequestAt: st.lastRequestAt,
		DisabledTill:  st.disabledTill,
	}, true
}

func endOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
