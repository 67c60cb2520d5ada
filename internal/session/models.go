package session

import "time"

// Session is one ingested telemetry log.
type Session struct {
	ID          string    `json:"id"`
	DriverID    string    `json:"driver_id"`
	Name        string    `json:"name"`
	Format      string    `json:"format"`
	SampleCount int       `json:"sample_count"`
	DurationMs  int64     `json:"duration_ms"`
	StartTime   time.Time `json:"start_time,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
