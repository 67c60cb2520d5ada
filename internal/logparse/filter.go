package logparse

import (
	"github.com/TheAngryRaven/lap-tracker-pro/internal/shared/geo"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/telemetry"
)

// SpeedPolicy selects how a decoder reacts to an implausible speed.
// The formats genuinely differ here: dropping a sample from a streaming
// decoder would break lap continuity, so those substitute the previous
// valid speed instead. Do not unify.
type SpeedPolicy int

const (
	// SpeedDrop rejects the whole sample.
	SpeedDrop SpeedPolicy = iota
	// SpeedCarryPrevious keeps the sample but reuses the last valid speed.
	SpeedCarryPrevious
)

// Teleportation filter tuning. nominalUpdateSec is the nominal GPS
// update interval the jump allowance is scaled against.
const (
	teleportBaseM       = 100.0
	teleportScaleM      = 50.0
	nominalUpdateSec    = 0.04
	teleportMaxWindowMs = 10000
)

// streamBuilder accumulates accepted samples for one decode, applying
// the coordinate, teleportation and speed-sanity checks every decoder
// shares. It owns the per-decoder speed policy.
type streamBuilder struct {
	data   *telemetry.ParsedData
	policy SpeedPolicy

	hasLast   bool
	lastLat   float64
	lastLon   float64
	lastMs    int64
	lastSpeed float64
}

func newStreamBuilder(policy SpeedPolicy) *streamBuilder {
	return &streamBuilder{data: &telemetry.ParsedData{}, policy: policy}
}

// add runs the row-level checks and appends the sample when it passes.
// Returns false when the sample was rejected.
func (b *streamBuilder) add(s telemetry.Sample) bool {
	if !telemetry.ValidCoordinate(s.Lat, s.Lon) {
		return false
	}
	if b.teleported(s) {
		return false
	}
	if s.SpeedMps > telemetry.MaxPlausibleSpeedMps {
		if b.policy == SpeedDrop {
			return false
		}
		s.SetSpeedMps(b.lastSpeed)
	}

	b.data.Samples = append(b.data.Samples, s)
	b.hasLast = true
	b.lastLat = s.Lat
	b.lastLon = s.Lon
	b.lastMs = s.TimeMs
	b.lastSpeed = s.SpeedMps
	return true
}

// teleported rejects a fix whose implied speed versus the previous
// accepted fix is far beyond plausible GPS jump noise for the device's
// nominal update rate: within a 10 s window the allowance grows with
// the time delta, floored at 100.
func (b *streamBuilder) teleported(s telemetry.Sample) bool {
	if !b.hasLast {
		return false
	}
	dtMs := s.TimeMs - b.lastMs
	if dtMs <= 0 || dtMs >= teleportMaxWindowMs {
		return false
	}
	dtSec := float64(dtMs) / 1000.0
	implied := geo.Haversine(b.lastLat, b.lastLon, s.Lat, s.Lon) / dtSec
	allowed := teleportScaleM * (dtSec / nominalUpdateSec)
	if allowed < teleportBaseM {
		allowed = teleportBaseM
	}
	return implied > allowed
}

// finish validates and seals the stream: a decoder either returns the
// complete list or ErrNoValidGPS.
func (b *streamBuilder) finish() (*telemetry.ParsedData, error) {
	if len(b.data.Samples) == 0 {
		return nil, ErrNoValidGPS
	}
	b.data.Finalize()
	return b.data, nil
}
