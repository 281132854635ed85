// Package schedule owns the per-handle state of a wall-clock-aligned
// interval: the last and next boundary timestamps, guarded by a mutex so
// an owning task and a monitoring task can touch the same handle.
package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tickgrid/tickgrid/internal/clock"
	"github.com/tickgrid/tickgrid/internal/interval"
)

var (
	// ErrClockUnavailable is returned when the time source reports the
	// zero sentinel. Callers are expected to retry on their next
	// iteration; clock sync can recover.
	ErrClockUnavailable = errors.New("system clock unavailable")

	// ErrScheduleClosed is returned when a closed handle is used.
	ErrScheduleClosed = errors.New("schedule is closed")
)

// Schedule is an independently owned interval handle. It is created with
// New, driven by Evaluate or Delay from its owner's control loop, and
// inspected through LastEvent/NextEvent from anywhere.
type Schedule struct {
	name   string
	unit   interval.Unit
	period uint16
	engine interval.Engine
	clk    clock.Source
	sleep  Sleeper
	logger *zap.Logger

	mu          sync.Mutex
	lastEventMS int64
	nextEventMS int64
	closed      bool
}

// Option configures a Schedule.
type Option func(*Schedule)

// WithClock sets the time source. Defaults to clock.Default.
func WithClock(src clock.Source) Option {
	return func(s *Schedule) { s.clk = src }
}

// WithSleeper sets the blocking wait primitive used by Delay.
func WithSleeper(sl Sleeper) Option {
	return func(s *Schedule) { s.sleep = sl }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Schedule) { s.logger = logger.Named("schedule") }
}

// New validates spec and creates a schedule for it. The next boundary is
// computed lazily on first use, so creation never needs the clock.
func New(spec interval.Spec, opts ...Option) (*Schedule, error) {
	engine, err := interval.NewEngine(spec)
	if err != nil {
		return nil, err
	}

	s := &Schedule{
		name:   spec.Name,
		unit:   spec.Unit,
		period: spec.Period,
		engine: engine,
		clk:    clock.Default,
		sleep:  TimerSleeper{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name returns the diagnostic name.
func (s *Schedule) Name() string { return s.name }

// Interval returns the unit and period as originally configured, not the
// canonical form.
func (s *Schedule) Interval() (interval.Unit, uint16) {
	return s.unit, s.period
}

// PeriodMillis returns the canonical period.
func (s *Schedule) PeriodMillis() int64 { return s.engine.PeriodMillis() }

// LastEvent returns the epoch milliseconds of the most recent boundary,
// or 0 before the schedule is primed.
func (s *Schedule) LastEvent() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEventMS
}

// NextEvent returns the epoch milliseconds of the upcoming boundary, or
// 0 before the schedule is primed.
func (s *Schedule) NextEvent() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextEventMS
}

// Evaluate reports whether the interval has elapsed, advancing the
// schedule by exactly one period when it has. The first call primes the
// next boundary and reports false. A second call without time passing
// reports false; the condition cannot double-fire. Returns false when
// the clock is unavailable or the schedule is closed.
func (s *Schedule) Evaluate() bool {
	nowMS := s.clk.EpochMillis()
	if nowMS == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.nextEventMS == 0 {
		s.primeLocked(nowMS)
		return false
	}
	if nowMS < s.nextEventMS {
		return false
	}
	s.advanceLocked()
	return true
}

// Delay blocks until the next boundary, then advances the schedule by
// one period. The first call after creation only establishes phase and
// returns without sleeping, so a task loop's first iteration runs
// immediately and every later one wakes on the grid.
//
// When the deadline has already passed the sleep degenerates to a yield
// and the schedule still advances exactly one period; missed boundaries
// are recovered one call at a time, never as a burst.
func (s *Schedule) Delay(ctx context.Context) error {
	nowMS := s.clk.EpochMillis()
	if nowMS == 0 {
		return ErrClockUnavailable
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrScheduleClosed
	}
	if s.nextEventMS == 0 {
		s.primeLocked(nowMS)
		s.mu.Unlock()
		return nil
	}
	wait := time.Duration(s.engine.UntilNext(nowMS, s.nextEventMS)) * time.Millisecond
	s.mu.Unlock()

	// The lock is never held across the suspend; readers can inspect
	// last/next while the owner sleeps.
	if err := s.sleep.Sleep(ctx, wait); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrScheduleClosed
	}
	s.advanceLocked()
	return nil
}

// Close invalidates the handle. Further Delay calls return
// ErrScheduleClosed and Evaluate reports false.
func (s *Schedule) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrScheduleClosed
	}
	s.closed = true
	return nil
}

// primeLocked establishes phase from the current instant. The last event
// is back-filled one period behind the upcoming boundary so that the
// last/next pair is coherent from the start.
func (s *Schedule) primeLocked(nowMS int64) {
	s.nextEventMS = s.engine.NextBoundary(nowMS)
	s.lastEventMS = s.nextEventMS - s.engine.PeriodMillis()
	s.logger.Debug("Primed schedule",
		zap.String("name", s.name),
		zap.Int64("next_event_ms", s.nextEventMS))
}

// advanceLocked moves the schedule forward one period. The last event is
// set to the boundary itself, not the observed time, so a late check
// does not smear the grid.
func (s *Schedule) advanceLocked() {
	s.lastEventMS = s.nextEventMS
	s.nextEventMS += s.engine.PeriodMillis()
}
