// Package sampler provides the periodic jobs shipped with the daemon.
// Each job does one blocking read per interval boundary; the runner owns
// the cadence.
package sampler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/tickgrid/tickgrid/internal/model"
)

// System samples host CPU and memory usage on every boundary and keeps
// the latest reading for inspection.
type System struct {
	logger *zap.Logger

	mu   sync.RWMutex
	last *model.SystemStats
}

// NewSystem creates a new system sampler
func NewSystem(logger *zap.Logger) *System {
	return &System{logger: logger.Named("system-sampler")}
}

// Run collects one CPU/memory sample
func (s *System) Run(ctx context.Context) error {
	cpuPercent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return fmt.Errorf("failed to get CPU usage: %w", err)
	}

	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get memory usage: %w", err)
	}

	stats := &model.SystemStats{
		MemoryUsage: memInfo.UsedPercent,
		CollectedAt: time.Now(),
	}
	if len(cpuPercent) > 0 {
		stats.CPUUsage = cpuPercent[0]
	}

	s.mu.Lock()
	s.last = stats
	s.mu.Unlock()

	s.logger.Debug("System sample collected",
		zap.Float64("cpu_usage", stats.CPUUsage),
		zap.Float64("memory_usage", stats.MemoryUsage))
	return nil
}

// Last returns the most recent sample, or nil before the first run.
func (s *System) Last() *model.SystemStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
