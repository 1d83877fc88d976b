package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LerianStudio/lib-corebanking/corebanking/log"
)

// Job is a named batch entry point bound to a cron cadence. Run receives the
// scheduled tick as its as-of time, not the moment it actually started.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context, asOf time.Time) error
}

type boundJob struct {
	job      Job
	schedule *Schedule
}

// Scheduler drives registered jobs at their cron cadence.
type Scheduler struct {
	logger log.Logger
	now    func() time.Time
	wait   func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	jobs []boundJob
	wg   sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(logger log.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

// WithClock overrides the wall clock, making tick times deterministic in
// tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates an empty scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	scheduler := &Scheduler{
		logger: log.NoneLogger{},
		now:    func() time.Time { return time.Now().UTC() },
		wait:   waitFor,
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	return scheduler
}

// Register parses the job's cron expression and adds it to the scheduler.
// Jobs must be registered before Start.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name must not be empty")
	}

	if job.Run == nil {
		return fmt.Errorf("job %s has no run function", job.Name)
	}

	schedule, err := Parse(job.Spec)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = append(s.jobs, boundJob{job: job, schedule: schedule})

	return nil
}

// Start launches one goroutine per registered job and returns. The jobs run
// until ctx is canceled; Wait blocks until they have all stopped.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bound := range s.jobs {
		s.wg.Add(1)

		go func(bound boundJob) {
			defer s.wg.Done()
			s.runJob(ctx, bound)
		}(bound)
	}
}

// Wait blocks until every job goroutine has observed cancellation and
// stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, bound boundJob) {
	for {
		tick, err := bound.schedule.Next(s.now())
		if err != nil {
			s.logger.Errorf("job %s: %v", bound.job.Name, err)
			return
		}

		if err := s.wait(ctx, tick.Sub(s.now())); err != nil {
			return
		}

		if err := bound.job.Run(ctx, tick); err != nil {
			s.logger.Errorf("job %s run at %s: %v", bound.job.Name, tick.Format(time.RFC3339), err)
			continue
		}

		s.logger.Infof("job %s completed run at %s", bound.job.Name, tick.Format(time.RFC3339))
	}
}

// waitFor sleeps for d or until ctx is canceled. Non-positive durations
// return immediately; a run that fell behind still executes with its original
// tick time.
func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
