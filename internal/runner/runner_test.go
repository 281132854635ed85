package runner

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tickgrid/tickgrid/internal/clock"
	"github.com/tickgrid/tickgrid/internal/interval"
	"github.com/tickgrid/tickgrid/internal/publisher"
	"github.com/tickgrid/tickgrid/internal/storage"
	"github.com/tickgrid/tickgrid/internal/testutil"
)

// scriptSleeper advances the fake clock by each requested sleep, so job
// loops run at simulated speed. After maxSleeps it reports cancellation,
// ending the loop deterministically.
type scriptSleeper struct {
	clk       *clock.FixedSource
	maxSleeps int
	n         int
	onSleep   func(n int)
}

func (s *scriptSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.n++
	if s.onSleep != nil {
		s.onSleep(s.n)
	}
	if s.maxSleeps > 0 && s.n > s.maxSleeps {
		return context.Canceled
	}
	s.clk.Advance(d)
	return nil
}

type countingJob struct {
	count atomic.Uint64
	err   error
}

func (j *countingJob) Run(ctx context.Context) error {
	j.count.Add(1)
	return j.err
}

func newTestRunner(t *testing.T, clk *clock.FixedSource, sleeper *scriptSleeper) (*Runner, storage.TickHistoryStorage) {
	t.Helper()

	js, cleanup := testutil.StartJetStream(t)
	t.Cleanup(cleanup)

	logger := zaptest.NewLogger(t)
	pub, err := publisher.NewTickPublisher(js, logger)
	require.NoError(t, err)

	history, err := storage.NewSQLiteTickHistory(logger, filepath.Join(t.TempDir(), "ticks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	r := NewRunner(Config{}, pub, history, logger,
		WithClock(clk),
		WithSleeper(sleeper))
	return r, history
}

func TestRunnerRegister(t *testing.T) {
	clk := clock.NewFixedSource(time.UnixMilli(12000))
	r, _ := newTestRunner(t, clk, &scriptSleeper{clk: clk})

	spec := interval.Spec{Name: "tick_5sec", Unit: interval.Seconds, Period: 5}
	job := &countingJob{}

	require.NoError(t, r.Register(spec, job))

	t.Run("Duplicate", func(t *testing.T) {
		assert.Error(t, r.Register(spec, job))
	})

	t.Run("InvalidSpec", func(t *testing.T) {
		err := r.Register(interval.Spec{Name: "bad", Unit: interval.Seconds, Period: 0}, job)
		assert.ErrorIs(t, err, interval.ErrInvalidPeriod)
	})

	t.Run("ScheduleAccessor", func(t *testing.T) {
		sched, err := r.Schedule("tick_5sec")
		require.NoError(t, err)
		unit, period := sched.Interval()
		assert.Equal(t, interval.Seconds, unit)
		assert.Equal(t, uint16(5), period)

		_, err = r.Schedule("unknown")
		assert.Error(t, err)
	})
}

func TestRunnerStartWithoutJobs(t *testing.T) {
	clk := clock.NewFixedSource(time.UnixMilli(12000))
	r, _ := newTestRunner(t, clk, &scriptSleeper{clk: clk})

	assert.Error(t, r.Start(context.Background()))
}

func TestRunnerDrivesJobOnGrid(t *testing.T) {
	clk := clock.NewFixedSource(time.UnixMilli(12000))
	sleeper := &scriptSleeper{clk: clk, maxSleeps: 2}
	r, history := newTestRunner(t, clk, sleeper)

	job := &countingJob{}
	require.NoError(t, r.Register(interval.Spec{
		Name: "tick_5sec", Unit: interval.Seconds, Period: 5,
	}, job))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Start(ctx))
	r.Stop()

	// Priming runs the first iteration immediately; the two permitted
	// sleeps produce two boundary-aligned iterations after it.
	assert.Equal(t, uint64(3), job.count.Load())

	events, err := history.List(context.Background(), "tick_5sec", 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Newest first: 20000, 15000, then the back-filled startup boundary.
	assert.Equal(t, int64(20000), events[0].BoundaryMS)
	assert.Equal(t, uint64(3), events[0].Sequence)
	assert.Equal(t, int64(15000), events[1].BoundaryMS)
	assert.Equal(t, int64(0), events[1].DriftMS)
	assert.Equal(t, int64(10000), events[2].BoundaryMS)
	assert.Equal(t, uint64(1), events[2].Sequence)

	t.Run("RestartRejected", func(t *testing.T) {
		assert.Error(t, r.Start(ctx))
	})

	t.Run("NoJobsRunningAfterStop", func(t *testing.T) {
		assert.Empty(t, r.RunningJobs())
	})
}

func TestRunnerRecordsJobFailure(t *testing.T) {
	clk := clock.NewFixedSource(time.UnixMilli(12000))
	sleeper := &scriptSleeper{clk: clk, maxSleeps: 1}
	r, history := newTestRunner(t, clk, sleeper)

	job := &countingJob{err: errors.New("sensor read failed")}
	require.NoError(t, r.Register(interval.Spec{
		Name: "tick_5sec", Unit: interval.Seconds, Period: 5,
	}, job))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Start(ctx))
	r.Stop()

	events, err := history.List(context.Background(), "tick_5sec", 0, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "sensor read failed", events[0].Error)
}

func TestRunnerWaitsForClock(t *testing.T) {
	clk := clock.NewFixedSource(time.UnixMilli(12000))
	clk.SetUnavailable(true)

	// Two retry sleeps pass before the clock comes up; one more sleep
	// carries the loop to its first real boundary.
	sleeper := &scriptSleeper{clk: clk, maxSleeps: 3}
	sleeper.onSleep = func(n int) {
		if n == 2 {
			clk.SetUnavailable(false)
		}
	}
	r, history := newTestRunner(t, clk, sleeper)

	job := &countingJob{}
	require.NoError(t, r.Register(interval.Spec{
		Name: "tick_5sec", Unit: interval.Seconds, Period: 5,
	}, job))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Start(ctx))
	r.Stop()

	// One startup run plus one boundary-aligned run.
	assert.Equal(t, uint64(2), job.count.Load())

	count, err := history.Count(context.Background(), "tick_5sec")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
