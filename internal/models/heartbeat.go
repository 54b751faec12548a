package models

import "time"

// Heartbeat represents the periodic status report of a verifier node.
type Heartbeat struct {
	NodeID         string                 `json:"node_id"`
	Timestamp      time.Time              `json:"timestamp"`
	Status         string                 `json:"status"`
	ActiveSessions int                    `json:"active_sessions"`
	Verifier       VerifierStats          `json:"verifier"`
	Metrics        map[string]interface{} `json:"metrics,omitempty"`
}

// ProcessMetrics holds resource usage of the verifier process.
type ProcessMetrics struct {
	CPUUsage  float64 `json:"cpu_usage"`
	MemoryRSS uint64  `json:"memory_rss_bytes"`
}
