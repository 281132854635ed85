package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tickgrid/tickgrid/internal/clock"
	"github.com/tickgrid/tickgrid/internal/interval"
	"github.com/tickgrid/tickgrid/internal/model"
	"github.com/tickgrid/tickgrid/internal/publisher"
	"github.com/tickgrid/tickgrid/internal/schedule"
	"github.com/tickgrid/tickgrid/internal/storage"
)

// defaultRetryDelay is how long a job loop waits before rechecking an
// unavailable clock.
const defaultRetryDelay = time.Second

// Job is one unit of periodic work, executed once per interval boundary.
type Job interface {
	Run(ctx context.Context) error
}

// Config defines configuration for the runner
type Config struct {
	// RetryDelay overrides the clock-unavailable retry delay.
	RetryDelay time.Duration
}

// Runner drives registered jobs on their wall-clock grids. Each job owns
// one schedule and one goroutine; the loop is Delay, run, record.
// The first iteration of every loop runs immediately, because the first
// Delay call only establishes phase; every later iteration wakes on a
// boundary.
type Runner struct {
	logger  *zap.Logger
	pub     *publisher.TickPublisher
	history storage.TickHistoryStorage
	config  Config
	clk     clock.Source
	sleeper schedule.Sleeper

	mu      sync.Mutex
	jobs    map[string]*jobState
	started bool

	running sync.Map
	wg      sync.WaitGroup
}

type jobState struct {
	job   Job
	sched *schedule.Schedule
	seq   uint64
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the time source used by the runner and its schedules.
func WithClock(src clock.Source) Option {
	return func(r *Runner) { r.clk = src }
}

// WithSleeper sets the wait primitive used by the runner and its schedules.
func WithSleeper(sl schedule.Sleeper) Option {
	return func(r *Runner) { r.sleeper = sl }
}

// NewRunner creates a new runner
func NewRunner(config Config, pub *publisher.TickPublisher, history storage.TickHistoryStorage, logger *zap.Logger, opts ...Option) *Runner {
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaultRetryDelay
	}

	r := &Runner{
		logger:  logger.Named("runner"),
		pub:     pub,
		history: history,
		config:  config,
		clk:     clock.Default,
		sleeper: schedule.TimerSleeper{},
		jobs:    make(map[string]*jobState),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates a schedule for spec and binds job to it. All jobs
// must be registered before Start.
func (r *Runner) Register(spec interval.Spec, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("runner already started")
	}
	if _, exists := r.jobs[spec.Name]; exists {
		return fmt.Errorf("job already registered: %s", spec.Name)
	}

	sched, err := schedule.New(spec,
		schedule.WithClock(r.clk),
		schedule.WithSleeper(r.sleeper),
		schedule.WithLogger(r.logger))
	if err != nil {
		return fmt.Errorf("failed to create schedule for %s: %w", spec.Name, err)
	}

	r.jobs[spec.Name] = &jobState{job: job, sched: sched}

	r.logger.Info("Registered job",
		zap.String("job", spec.Name),
		zap.String("unit", spec.Unit.String()),
		zap.Uint16("period", spec.Period),
		zap.Uint16("offset", spec.Offset))
	return nil
}

// Start launches one goroutine per registered job. The loops exit when
// ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("runner already started")
	}
	if len(r.jobs) == 0 {
		return fmt.Errorf("no jobs registered")
	}
	r.started = true

	for _, st := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, st)
	}

	r.logger.Info("Runner started", zap.Int("jobs", len(r.jobs)))
	return nil
}

// Stop waits for all job loops to exit. Cancel the context passed to
// Start first.
func (r *Runner) Stop() {
	r.logger.Info("Stopping runner")
	r.wg.Wait()
}

// RunningJobs returns the names of jobs currently executing their work.
func (r *Runner) RunningJobs() []string {
	var names []string
	r.running.Range(func(key, value interface{}) bool {
		names = append(names, key.(string))
		return true
	})
	return names
}

// Schedule returns the schedule backing a registered job, for
// diagnostics.
func (r *Runner) Schedule(name string) (*schedule.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.jobs[name]
	if !ok {
		return nil, fmt.Errorf("job not registered: %s", name)
	}
	return st.sched, nil
}

func (r *Runner) loop(ctx context.Context, st *jobState) {
	defer r.wg.Done()
	name := st.sched.Name()

	for {
		if ctx.Err() != nil {
			return
		}

		if err := st.sched.Delay(ctx); err != nil {
			switch {
			case errors.Is(err, schedule.ErrClockUnavailable):
				r.logger.Warn("System clock unavailable, retrying",
					zap.String("job", name),
					zap.Duration("retry_delay", r.config.RetryDelay))
				if err := r.sleeper.Sleep(ctx, r.config.RetryDelay); err != nil {
					return
				}
				continue
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return
			default:
				r.logger.Error("Job loop stopped",
					zap.String("job", name),
					zap.Error(err))
				return
			}
		}

		r.runOnce(ctx, st)
	}
}

// runOnce executes the job once and records the fired boundary.
func (r *Runner) runOnce(ctx context.Context, st *jobState) {
	name := st.sched.Name()
	firedAt := r.clk.EpochMillis()
	boundary := st.sched.LastEvent()

	r.running.Store(name, time.Now())
	defer r.running.Delete(name)

	runErr := st.job.Run(ctx)
	if runErr != nil {
		r.logger.Error("Job failed",
			zap.String("job", name),
			zap.Error(runErr))
	}

	unit, period := st.sched.Interval()
	st.seq++
	event := &model.TickEvent{
		ID:         uuid.New().String(),
		Schedule:   name,
		Unit:       unit.String(),
		Period:     period,
		BoundaryMS: boundary,
		FiredAtMS:  firedAt,
		DriftMS:    firedAt - boundary,
		Sequence:   st.seq,
	}
	if runErr != nil {
		event.Error = runErr.Error()
	}

	if err := r.history.Store(ctx, event); err != nil {
		r.logger.Error("Failed to store tick history",
			zap.String("job", name),
			zap.Error(err))
	}

	if err := r.pub.Publish(ctx, event); err != nil {
		r.logger.Error("Failed to publish tick event",
			zap.String("job", name),
			zap.Error(err))
	}
}
