package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-station-api/internal/mirror"
)

// DefaultInterval is the refresh period used when none is configured.
const DefaultInterval = 20 * time.Minute

// Runner executes one refresh cycle.
type Runner interface {
	RunCycle(ctx context.Context) mirror.CycleReport
}

// Scheduler runs the mirror refresh cycle on a fixed period, starting
// immediately. Cycles never overlap.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	interval  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	last    mirror.CycleReport
	hasLast bool
}

// New creates a new Scheduler.
func New(runner Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start arms the schedule; the first cycle runs right away.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).StartImmediately().Do(func() {
		log.Info().Dur("interval", s.interval).Msg("scheduler: running mirror refresh job")

		report := s.runner.RunCycle(s.ctx)

		s.mu.Lock()
		s.last = report
		s.hasLast = true
		s.mu.Unlock()
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop disarms the schedule and cancels a cycle in flight. The cycle stops
// at the next file boundary; a file being downloaded is discarded, so the
// installed copy stays whole.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	log.Info().Msg("scheduler: stopped")
}

// LastCycle returns the report of the most recent completed cycle.
func (s *Scheduler) LastCycle() (mirror.CycleReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.hasLast
}
