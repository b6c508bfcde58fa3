package models

import (
	"time"
)

// AutomationStats holds process-wide monotonically accumulating counters
// for the correlation pipeline, plus a recomputed-on-demand effectiveness
// score. Reset only by explicit maintenance action or the overflow guard.
type AutomationStats struct {
	SessionsMonitored    int64     `json:"sessions_monitored"`
	InteractionsDetected int64     `json:"interactions_detected"`
	CommitsCorrelated    int64     `json:"commits_correlated"`
	BackgroundOperations int64     `json:"background_operations"`
	DroppedOperations    int64     `json:"dropped_operations"`
	QueueDepth           int       `json:"queue_depth"`
	Effectiveness        float64   `json:"effectiveness"`
	RecomputedAt         time.Time `json:"recomputed_at,omitempty"`
}
