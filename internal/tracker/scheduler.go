package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/runnerr0/dwell/internal/logfields"
)

// Dispatcher accepts signals for ordered handling.
type Dispatcher interface {
	Dispatch(ctx context.Context, sig Signal) error
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the scheduler's logger. Defaults to slog.Default().
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// Scheduler fires the named flush alarm on a fixed period for the lifetime
// of the process. The alarm goes through the dispatcher like every other
// signal, so it never interleaves with a running handler.
type Scheduler struct {
	scheduler  gocron.Scheduler
	dispatcher Dispatcher
	logger     *slog.Logger
	ctx        context.Context

	mu       sync.Mutex
	job      gocron.Job
	name     string
	interval time.Duration
}

// NewScheduler creates a stopped scheduler. A nil clock means the real clock.
func NewScheduler(d Dispatcher, name string, clock clockwork.Clock, opts ...SchedulerOption) (*Scheduler, error) {
	var schedOpts []gocron.SchedulerOption
	if clock != nil {
		schedOpts = append(schedOpts, gocron.WithClock(clock))
	}
	gs, err := gocron.NewScheduler(schedOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	s := &Scheduler{
		scheduler:  gs,
		dispatcher: d,
		logger:     slog.Default(),
		ctx:        context.Background(),
		name:       name,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the periodic alarm and starts the scheduler. Alarms are
// dispatched with ctx.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("alarm interval must be > 0, got %s", interval)
	}

	s.mu.Lock()
	s.ctx = ctx
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.fire),
		gocron.WithName(s.name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create alarm job: %w", err)
	}
	s.job, s.interval = job, interval
	s.mu.Unlock()

	s.logger.Info("Starting alarm scheduler", logfields.Alarm(s.Name()), logfields.Duration(interval))
	s.scheduler.Start()
	return nil
}

// Update renames the alarm and reschedules it on a new period. The next
// alarm fires one full interval after the update.
func (s *Scheduler) Update(interval time.Duration, name string) error {
	if interval <= 0 {
		return fmt.Errorf("alarm interval must be > 0, got %s", interval)
	}

	s.mu.Lock()
	if s.name == name && s.interval == interval {
		s.mu.Unlock()
		return nil
	}
	s.name = name
	current := s.job
	if current == nil {
		s.interval = interval
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	// gocron runs fire on its own goroutines, which take s.mu
	job, err := s.scheduler.Update(current.ID(),
		gocron.DurationJob(interval),
		gocron.NewTask(s.fire),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to reschedule alarm job: %w", err)
	}

	s.mu.Lock()
	s.job, s.interval = job, interval
	s.mu.Unlock()

	s.logger.Info("Rescheduled alarm", logfields.Alarm(name), logfields.Duration(interval))
	return nil
}

// Name returns the alarm name currently fired.
func (s *Scheduler) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Interval returns the alarm period.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Stop shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping alarm scheduler", logfields.Alarm(s.Name()))
	return s.scheduler.Shutdown()
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx, name := s.ctx, s.name
	s.mu.Unlock()

	if err := s.dispatcher.Dispatch(ctx, Signal{Kind: KindAlarm, AlarmName: name}); err != nil {
		s.logger.Warn("Alarm not dispatched", logfields.Alarm(name), logfields.Error(err))
	}
}
