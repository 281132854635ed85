package interval

// Engine computes boundary points for one validated spec, in canonical
// milliseconds. It is a pure value; all state lives with the caller.
type Engine struct {
	periodMS int64
	offsetMS int64
}

// NewEngine validates spec and returns an engine over its canonical form.
func NewEngine(spec Spec) (Engine, error) {
	if err := spec.Validate(); err != nil {
		return Engine{}, err
	}
	return Engine{
		periodMS: spec.PeriodMillis(),
		offsetMS: spec.OffsetMillis(),
	}, nil
}

// PeriodMillis returns the canonical period.
func (e Engine) PeriodMillis() int64 { return e.periodMS }

// OffsetMillis returns the canonical offset.
func (e Engine) OffsetMillis() int64 { return e.offsetMS }

// NextBoundary returns the first boundary strictly after nowMS. An exact
// hit counts as the last boundary, never the upcoming one, so a schedule
// evaluated on the boundary instant cannot report it twice.
func (e Engine) NextBoundary(nowMS int64) int64 {
	return nowMS + e.periodMS - floorMod(nowMS-e.offsetMS, e.periodMS)
}

// LastBoundary returns the most recent boundary at or before nowMS.
// For instants before the first boundary this is offset-period, one
// period ahead of nothing; the floored modulo makes that fall out of the
// same arithmetic.
func (e Engine) LastBoundary(nowMS int64) int64 {
	return e.NextBoundary(nowMS) - e.periodMS
}

// UntilNext returns the milliseconds from nowMS to nextEventMS, clamped
// at zero when the deadline has already passed.
func (e Engine) UntilNext(nowMS, nextEventMS int64) int64 {
	if nextEventMS <= nowMS {
		return 0
	}
	return nextEventMS - nowMS
}

// floorMod is the non-negative remainder of a/b. Go's % truncates toward
// zero, which would misplace boundaries for instants before the offset.
func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
