package course

import (
	"time"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/timing"
)

// Course is a stored track layout: a start/finish line plus an
// optional pair of sector boundaries.
type Course struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	TrackName   string       `json:"track_name"`
	CreatedBy   string       `json:"created_by"`
	StartFinish timing.Line  `json:"start_finish"`
	Sector2     *timing.Line `json:"sector2,omitempty"`
	Sector3     *timing.Line `json:"sector3,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Timing converts the stored layout into the form the lap analyzer
// consumes.
func (c Course) Timing() timing.Course {
	return timing.Course{
		StartFinish: c.StartFinish,
		Sector2:     c.Sector2,
		Sector3:     c.Sector3,
	}
}
