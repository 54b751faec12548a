package metrics_collectors

import (
	"context"
)

// MetricCollector defines the interface for collecting a specific node metric.
type MetricCollector interface {
	Name() string                            // Name of the metric (e.g., "cpu", "process_rss")
	Collect(ctx context.Context) interface{} // Collect the metric data; nil when unavailable
	Unit() string                            // Unit of the metric (e.g., "percentage", "bytes")
	Description() string                     // Description of the metric
}
