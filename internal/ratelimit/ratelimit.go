package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Scheduler gates units of work behind a requests-per-interval ceiling.
// A unit that cannot be admitted before its context expires fails with
// ErrLimited, which callers surface as a quota condition.
type Scheduler struct {
	limiter *rate.Limiter
}

// ErrLimited is returned when the ceiling cannot admit the work in time.
var ErrLimited = fmt.Errorf("rate limit ceiling reached")

// New creates a scheduler admitting at most perSecond requests per second
// with the given burst. perSecond <= 0 means unlimited.
func New(perSecond float64, burst int) *Scheduler {
	if perSecond <= 0 {
		return &Scheduler{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst < 1 {
		burst = 1
	}
	return &Scheduler{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Schedule runs fn once the limiter admits it, or fails with ErrLimited
// when the context expires first.
func (s *Scheduler) Schedule(ctx context.Context, fn func() error) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrLimited, err)
	}
	return fn()
}
