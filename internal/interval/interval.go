// Package interval computes event boundaries aligned to absolute epoch
// time. Boundaries for a period P and offset O are the instants k*P+O on
// the UTC epoch timeline, so independent tasks configured with the same
// period fire on the same wall-clock grid without coordinating.
package interval

import (
	"errors"
	"fmt"
)

// MaxNameLen bounds schedule names. Names are diagnostic only and are
// never used for lookup.
const MaxNameLen = 25

var (
	// ErrInvalidPeriod is returned when a spec declares a zero period.
	ErrInvalidPeriod = errors.New("interval period must be non-zero")

	// ErrInvalidOffset is returned when a spec's offset is not strictly
	// less than its period.
	ErrInvalidOffset = errors.New("interval offset must be less than the period")

	// ErrNameTooLong is returned when a schedule name exceeds MaxNameLen.
	ErrNameTooLong = errors.New("schedule name too long")
)

// Unit is the unit a spec's period and offset are declared in.
type Unit int

const (
	Seconds Unit = iota
	Minutes
	Hours
)

// String implements fmt.Stringer.
func (u Unit) String() string {
	switch u {
	case Seconds:
		return "seconds"
	case Minutes:
		return "minutes"
	case Hours:
		return "hours"
	}
	return fmt.Sprintf("unit(%d)", int(u))
}

// ParseUnit parses a unit name as it appears in configuration files.
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "seconds", "second", "sec", "s":
		return Seconds, nil
	case "minutes", "minute", "min", "m":
		return Minutes, nil
	case "hours", "hour", "hr", "h":
		return Hours, nil
	}
	return Seconds, fmt.Errorf("unknown interval unit: %q", s)
}

// ToSeconds normalizes a period or offset declared in this unit to
// canonical seconds. The 16-bit input range cannot overflow int64.
func (u Unit) ToSeconds(v uint16) int64 {
	switch u {
	case Minutes:
		return int64(v) * 60
	case Hours:
		return int64(v) * 3600
	default:
		return int64(v)
	}
}

// ToMillis normalizes a period or offset declared in this unit to
// canonical milliseconds.
func (u Unit) ToMillis(v uint16) int64 {
	return u.ToSeconds(v) * 1000
}

// Spec declares an interval schedule: a non-zero period and an offset
// strictly less than it, both in the same unit.
type Spec struct {
	Name   string `json:"name" mapstructure:"name"`
	Unit   Unit   `json:"unit" mapstructure:"unit"`
	Period uint16 `json:"period" mapstructure:"period"`
	Offset uint16 `json:"offset" mapstructure:"offset"`
}

// Validate checks the spec's invariants. Validation failures are
// configuration errors and are not retryable.
func (s Spec) Validate() error {
	if len(s.Name) > MaxNameLen {
		return fmt.Errorf("%w: %q exceeds %d characters", ErrNameTooLong, s.Name, MaxNameLen)
	}
	if s.Period == 0 {
		return ErrInvalidPeriod
	}
	if s.Offset >= s.Period {
		return fmt.Errorf("%w: offset %d >= period %d", ErrInvalidOffset, s.Offset, s.Period)
	}
	return nil
}

// PeriodSeconds returns the period in canonical seconds.
func (s Spec) PeriodSeconds() int64 { return s.Unit.ToSeconds(s.Period) }

// PeriodMillis returns the period in canonical milliseconds.
func (s Spec) PeriodMillis() int64 { return s.Unit.ToMillis(s.Period) }

// OffsetSeconds returns the offset in canonical seconds.
func (s Spec) OffsetSeconds() int64 { return s.Unit.ToSeconds(s.Offset) }

// OffsetMillis returns the offset in canonical milliseconds.
func (s Spec) OffsetMillis() int64 { return s.Unit.ToMillis(s.Offset) }
