package clock

import (
	"time"
)

// Source provides the current UTC epoch time at several resolutions.
// A zero reading means the clock is unavailable; callers must treat it
// as a sentinel rather than as the epoch itself.
type Source interface {
	// EpochSeconds returns the current UTC epoch time in seconds, or 0.
	EpochSeconds() int64

	// EpochMillis returns the current UTC epoch time in milliseconds, or 0.
	EpochMillis() int64

	// EpochMicros returns the current UTC epoch time in microseconds, or 0.
	EpochMicros() int64
}

// Default is the source used by the package-level accessors and by
// schedules that are not given an explicit source.
var Default Source = SystemSource{}

// EpochSeconds returns the current UTC epoch time in seconds from the
// default source, or 0 when the clock is unavailable.
func EpochSeconds() int64 { return Default.EpochSeconds() }

// EpochMillis returns the current UTC epoch time in milliseconds from the
// default source, or 0 when the clock is unavailable.
func EpochMillis() int64 { return Default.EpochMillis() }

// EpochMicros returns the current UTC epoch time in microseconds from the
// default source, or 0 when the clock is unavailable.
func EpochMicros() int64 { return Default.EpochMicros() }

// SystemSource reads the operating system clock. When MinValid is set,
// readings before it are reported as unavailable; hosts that boot with a
// bogus date can gate scheduling on their first time sync this way.
type SystemSource struct {
	MinValid time.Time
}

func (s SystemSource) now() (time.Time, bool) {
	now := time.Now().UTC()
	if !s.MinValid.IsZero() && now.Before(s.MinValid) {
		return time.Time{}, false
	}
	return now, true
}

// EpochSeconds implements Source.
func (s SystemSource) EpochSeconds() int64 {
	now, ok := s.now()
	if !ok {
		return 0
	}
	return now.Unix()
}

// EpochMillis implements Source.
func (s SystemSource) EpochMillis() int64 {
	now, ok := s.now()
	if !ok {
		return 0
	}
	return now.UnixMilli()
}

// EpochMicros implements Source.
func (s SystemSource) EpochMicros() int64 {
	now, ok := s.now()
	if !ok {
		return 0
	}
	return now.UnixMicro()
}
