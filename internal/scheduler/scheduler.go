// Package scheduler runs the periodic maintenance jobs of the game server on
// top of gocron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// ErrNotStarted is returned by RunNow before Start has brought the executor up.
var ErrNotStarted = errors.New("scheduler not started")

// Task is one unit of scheduled work. The context is cancelled on Stop.
type Task func(ctx context.Context) error

// Scheduler owns a gocron scheduler and satisfies server.Service.
type Scheduler struct {
	sched  gocron.Scheduler
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]gocron.Job

	startOnce sync.Once
	started   chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
}

// New creates a Scheduler whose daily jobs fire in loc.
//
// Precondition: loc and logger must be non-nil.
func New(logger *zap.Logger, loc *time.Location) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		sched:   sched,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]gocron.Job),
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Every registers task to run at a fixed interval.
//
// Precondition: interval > 0 and name is unique.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be > 0", name)
	}
	return s.add(name, gocron.DurationJob(interval), task)
}

// Daily registers task to run once a day at hour:minute local time.
//
// Precondition: hour < 24, minute < 60 and name is unique.
func (s *Scheduler) Daily(name string, hour, minute uint, task Task) error {
	if hour > 23 || minute > 59 {
		return fmt.Errorf("job %s: invalid time %02d:%02d", name, hour, minute)
	}
	return s.add(name, gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0))), task)
}

func (s *Scheduler) add(name string, def gocron.JobDefinition, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %s already registered", name)
	}
	job, err := s.sched.NewJob(def,
		gocron.NewTask(func() { s.run(name, task) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("registering job %s: %w", name, err)
	}
	s.jobs[name] = job
	return nil
}

func (s *Scheduler) run(name string, task Task) {
	start := time.Now()
	if err := task(s.ctx); err != nil {
		s.logger.Error("scheduled job failed",
			zap.String("job", name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("scheduled job finished",
		zap.String("job", name),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// Jobs returns the registered job names in sorted order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NextRun reports when the named job fires next.
func (s *Scheduler) NextRun(name string) (time.Time, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("job %s not registered", name)
	}
	return job.NextRun()
}

// RunNow triggers the named job immediately without changing its schedule.
//
// Postcondition: Returns ErrNotStarted until Started is closed.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	select {
	case <-s.started:
	default:
		return fmt.Errorf("running job %s: %w", name, ErrNotStarted)
	}
	return job.RunNow()
}

// Started is closed once the gocron executor accepts work.
func (s *Scheduler) Started() <-chan struct{} {
	return s.started
}

// Start begins executing jobs and blocks until Stop is called.
func (s *Scheduler) Start() error {
	s.startOnce.Do(func() {
		s.sched.Start()
		close(s.started)
	})
	s.logger.Info("scheduler started", zap.Strings("jobs", s.Jobs()))
	<-s.done
	return nil
}

// Stop cancels running tasks and waits for the scheduler to shut down.
// It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		if err := s.sched.Shutdown(); err != nil {
			s.logger.Warn("scheduler shutdown", zap.Error(err))
		}
		close(s.done)
	})
}
