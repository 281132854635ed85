package clock

import (
	"sync"
	"time"
)

// FixedSource is a manually advanced Source. Time does not pass until
// Set or Advance is called, which keeps interval arithmetic deterministic
// in tests and simulations.
type FixedSource struct {
	mu          sync.Mutex
	micros      int64
	unavailable bool
}

// NewFixedSource creates a FixedSource pinned to the given instant.
func NewFixedSource(at time.Time) *FixedSource {
	return &FixedSource{micros: at.UnixMicro()}
}

// Set pins the source to the given instant.
func (f *FixedSource) Set(at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.micros = at.UnixMicro()
}

// Advance moves the source forward by d.
func (f *FixedSource) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.micros += d.Microseconds()
}

// SetUnavailable controls whether readings report the zero sentinel.
func (f *FixedSource) SetUnavailable(unavailable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable = unavailable
}

func (f *FixedSource) read() (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.micros, !f.unavailable
}

// EpochSeconds implements Source.
func (f *FixedSource) EpochSeconds() int64 {
	micros, ok := f.read()
	if !ok {
		return 0
	}
	return micros / int64(time.Second/time.Microsecond)
}

// EpochMillis implements Source.
func (f *FixedSource) EpochMillis() int64 {
	micros, ok := f.read()
	if !ok {
		return 0
	}
	return micros / int64(time.Millisecond/time.Microsecond)
}

// EpochMicros implements Source.
func (f *FixedSource) EpochMicros() int64 {
	micros, ok := f.read()
	if !ok {
		return 0
	}
	return micros
}
