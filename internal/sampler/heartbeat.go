package sampler

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// Heartbeat logs one line per boundary. It stands in for trivial
// keep-alive work and doubles as a liveness probe for the cadence itself.
type Heartbeat struct {
	logger *zap.Logger
	count  atomic.Uint64
}

// NewHeartbeat creates a new heartbeat job
func NewHeartbeat(logger *zap.Logger) *Heartbeat {
	return &Heartbeat{logger: logger.Named("heartbeat")}
}

// Run emits one heartbeat
func (h *Heartbeat) Run(ctx context.Context) error {
	n := h.count.Add(1)
	h.logger.Info("Heartbeat", zap.Uint64("count", n))
	return nil
}

// Count returns the number of completed runs.
func (h *Heartbeat) Count() uint64 {
	return h.count.Load()
}
