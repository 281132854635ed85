package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemSource(t *testing.T) {
	src := SystemSource{}

	sec := src.EpochSeconds()
	ms := src.EpochMillis()
	us := src.EpochMicros()

	require.NotZero(t, sec)
	require.NotZero(t, ms)
	require.NotZero(t, us)

	// The three resolutions describe the same instant, give or take the
	// time between reads.
	assert.InDelta(t, sec, ms/1000, 1)
	assert.InDelta(t, ms, us/1000, 1000)
}

func TestSystemSourceMinValidGate(t *testing.T) {
	// A gate in the far future makes the clock read as unavailable.
	src := SystemSource{MinValid: time.Now().Add(24 * time.Hour)}
	assert.Zero(t, src.EpochSeconds())
	assert.Zero(t, src.EpochMillis())
	assert.Zero(t, src.EpochMicros())

	// A gate in the past lets readings through.
	src = SystemSource{MinValid: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.NotZero(t, src.EpochMillis())
}

func TestFixedSource(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	src := NewFixedSource(at)

	assert.Equal(t, at.Unix(), src.EpochSeconds())
	assert.Equal(t, at.UnixMilli(), src.EpochMillis())
	assert.Equal(t, at.UnixMicro(), src.EpochMicros())

	t.Run("Advance", func(t *testing.T) {
		src.Advance(1500 * time.Millisecond)
		assert.Equal(t, at.UnixMilli()+1500, src.EpochMillis())
		assert.Equal(t, at.Unix()+1, src.EpochSeconds())
	})

	t.Run("Set", func(t *testing.T) {
		later := at.Add(time.Hour)
		src.Set(later)
		assert.Equal(t, later.UnixMilli(), src.EpochMillis())
	})

	t.Run("Unavailable", func(t *testing.T) {
		src.SetUnavailable(true)
		assert.Zero(t, src.EpochSeconds())
		assert.Zero(t, src.EpochMillis())
		assert.Zero(t, src.EpochMicros())

		src.SetUnavailable(false)
		assert.NotZero(t, src.EpochMillis())
	})
}

func TestPackageAccessors(t *testing.T) {
	prev := Default
	defer func() { Default = prev }()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	Default = NewFixedSource(at)

	assert.Equal(t, at.Unix(), EpochSeconds())
	assert.Equal(t, at.UnixMilli(), EpochMillis())
	assert.Equal(t, at.UnixMicro(), EpochMicros())
}
