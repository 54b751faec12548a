package metrics_collectors

import (
	"context"
	"os"

	"github.com/benmeehan/geo-attendance/internal/models"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"
)

// ProcessMetricCollector collects CPU and resident memory of the verifier process.
type ProcessMetricCollector struct {
	Logger zerolog.Logger
	pid    int32
}

// NewProcessMetricCollector creates a collector for the current process.
func NewProcessMetricCollector(logger zerolog.Logger) *ProcessMetricCollector {
	return &ProcessMetricCollector{Logger: logger, pid: int32(os.Getpid())}
}

func (p *ProcessMetricCollector) Name() string {
	return "process"
}

func (p *ProcessMetricCollector) Collect(ctx context.Context) interface{} {
	proc, err := process.NewProcessWithContext(ctx, p.pid)
	if err != nil {
		p.Logger.Warn().Err(err).Int32("pid", p.pid).Msg("Failed to open process")
		return nil
	}

	procMetrics := &models.ProcessMetrics{}

	if cpuPercent, err := proc.CPUPercentWithContext(ctx); err == nil {
		procMetrics.CPUUsage = cpuPercent
	} else {
		p.Logger.Warn().Err(err).Int32("pid", p.pid).Msg("Failed to get CPU usage")
	}

	if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil {
		procMetrics.MemoryRSS = memInfo.RSS
	} else {
		p.Logger.Warn().Err(err).Int32("pid", p.pid).Msg("Failed to get memory information")
	}

	return procMetrics
}

func (p *ProcessMetricCollector) Unit() string {
	return "varied (CPU: %, Memory: bytes)"
}

func (p *ProcessMetricCollector) Description() string {
	return "CPU and resident memory of the verifier process."
}
