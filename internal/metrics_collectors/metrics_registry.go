package metrics_collectors

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
)

// MetricsRegistry holds the collectors reported in node heartbeats.
type MetricsRegistry struct {
	collectors map[string]MetricCollector
}

// NewMetricsRegistry creates a new MetricsRegistry instance.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		collectors: make(map[string]MetricCollector),
	}
}

// NewDefaultRegistry registers the host and process collectors.
func NewDefaultRegistry(logger zerolog.Logger) *MetricsRegistry {
	r := NewMetricsRegistry()
	r.Register(&CPUMetricCollector{Logger: logger})
	r.Register(&MemoryMetricCollector{Logger: logger})
	r.Register(&GoroutineMetricCollector{Logger: logger})
	r.Register(NewProcessMetricCollector(logger))
	return r
}

// Register adds a new metric collector to the registry.
func (r *MetricsRegistry) Register(collector MetricCollector) {
	r.collectors[collector.Name()] = collector
}

// GetCollectors returns all the metric collectors registered in the registry.
func (r *MetricsRegistry) GetCollectors() map[string]MetricCollector {
	return r.collectors
}

// CollectAll runs every collector and returns the non-nil values by name.
func (r *MetricsRegistry) CollectAll(ctx context.Context) map[string]interface{} {
	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]interface{}, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		if value := r.collectors[name].Collect(ctx); value != nil {
			out[name] = value
		}
	}
	return out
}
