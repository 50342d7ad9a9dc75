package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"

	"github.com/CGraabaek/strautomator-core/internal/weather"
	"github.com/CGraabaek/strautomator-core/pkg/logger"
)

// Scheduler runs the daily quota rollover for the provider registry and
// logs a usage snapshot before zeroing the counters.
type Scheduler struct {
	scheduler *gocron.Scheduler
	registry  *weather.Registry
	log       *logger.Logger
}

// New creates a Scheduler over the given registry.
func New(registry *weather.Registry, log *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		registry:  registry,
		log:       log,
	}
}

// Start schedules the rollover job at midnight UTC and starts the
// underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Day().At("00:00").Do(func() {
		for name, st := range s.registry.Snapshot() {
			s.log.Info("provider usage",
				logger.String("provider", name),
				logger.Int("requests", st.RequestCount),
				logger.Int("errors", st.ErrorCount),
				logger.Time("lastRequestAt", st.LastRequestAt))
		}
		s.registry.ResetCounters()
		s.log.Info("provider quota counters reset")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
