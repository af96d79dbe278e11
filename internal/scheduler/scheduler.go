package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"weather-widget/internal/registry"
)

// Scheduler periodically re-runs the registry's forecast refresh cycle.
type Scheduler struct {
	scheduler *gocron.Scheduler
	registry  *registry.Registry
	interval  time.Duration
}

// New creates a new Scheduler.
func New(reg *registry.Registry, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		registry:  reg,
		interval:  interval,
	}
}

// Start schedules the periodic refresh job and starts the underlying
// scheduler. The first refresh cycle is expected to have run already as part
// of registry initialization.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		run := uuid.NewString()
		log.Printf("scheduler: starting forecast refresh run=%s", run)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		s.registry.RefreshAll(ctx)
		log.Printf("scheduler: completed forecast refresh run=%s", run)
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
