package logparse

import (
	"math"
	"testing"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/telemetry"
)

func sampleAt(ms int64, lat, lon, mps float64) telemetry.Sample {
	var s telemetry.Sample
	s.TimeMs = ms
	s.Lat = lat
	s.Lon = lon
	s.SetSpeedMps(mps)
	return s
}

func TestStreamBuilderRejectsTeleport(t *testing.T) {
	b := newStreamBuilder(SpeedDrop)
	if !b.add(sampleAt(0, 27.449833, -81.350667, 20)) {
		t.Fatalf("first sample must pass")
	}
	// ~20 m north in 40 ms implies 500 m/s against a 100 m/s allowance.
	jump := sampleAt(40, 27.449833+20.0/111320.0, -81.350667, 20)
	if b.add(jump) {
		t.Fatalf("teleport must be rejected")
	}
	// A plausible fix right after still attaches to the last accepted one.
	if !b.add(sampleAt(80, 27.449834, -81.350667, 20)) {
		t.Fatalf("next plausible sample must pass")
	}
	if len(b.data.Samples) != 2 {
		t.Fatalf("samples: %d", len(b.data.Samples))
	}
}

func TestStreamBuilderTeleportAllowanceScales(t *testing.T) {
	b := newStreamBuilder(SpeedDrop)
	b.add(sampleAt(0, 27.449833, -81.350667, 20))
	// The same 500 m displacement is a glitch over 0.4 s but a
	// legitimate gap over 1 s, where the allowance has grown to 1250.
	far := 27.449833 + 500.0/111320.0
	if b.add(sampleAt(400, far, -81.350667, 20)) {
		t.Fatalf("500 m in 0.4 s must be rejected")
	}
	if !b.add(sampleAt(1000, far, -81.350667, 20)) {
		t.Fatalf("500 m in 1 s falls within the scaled allowance")
	}
}

func TestStreamBuilderTeleportWindow(t *testing.T) {
	b := newStreamBuilder(SpeedDrop)
	b.add(sampleAt(0, 27.449833, -81.350667, 20))
	// Past the 10 s window any displacement is a legitimate gap, not a
	// glitch.
	far := sampleAt(15000, 27.46, -81.30, 20)
	if !b.add(far) {
		t.Fatalf("filter must not apply across long gaps")
	}
}

func TestStreamBuilderSpeedPolicies(t *testing.T) {
	drop := newStreamBuilder(SpeedDrop)
	drop.add(sampleAt(0, 27.449833, -81.350667, 40))
	drop.add(sampleAt(1000, 27.449840, -81.350667, 400))
	if len(drop.data.Samples) != 1 {
		t.Fatalf("drop policy: %d samples", len(drop.data.Samples))
	}

	carry := newStreamBuilder(SpeedCarryPrevious)
	carry.add(sampleAt(0, 27.449833, -81.350667, 40))
	carry.add(sampleAt(1000, 27.449840, -81.350667, 400))
	if len(carry.data.Samples) != 2 {
		t.Fatalf("carry policy: %d samples", len(carry.data.Samples))
	}
	if got := carry.data.Samples[1].SpeedMps; math.Abs(got-40) > 1e-9 {
		t.Fatalf("carry policy must substitute previous speed: %v", got)
	}
}

func TestStreamBuilderRejectsInvalidCoordinates(t *testing.T) {
	b := newStreamBuilder(SpeedDrop)
	if b.add(sampleAt(0, 0, 0, 10)) {
		t.Fatalf("null island must be rejected")
	}
	if b.add(sampleAt(0, 91, 0, 10)) {
		t.Fatalf("out-of-range latitude must be rejected")
	}
	if _, err := b.finish(); err != ErrNoValidGPS {
		t.Fatalf("empty stream: %v", err)
	}
}

func TestStreamBuilderFinish(t *testing.T) {
	b := newStreamBuilder(SpeedDrop)
	b.add(sampleAt(0, 27.449833, -81.350667, 10))
	b.add(sampleAt(1000, 27.449850, -81.350640, 11))
	data, err := b.finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if data.DurationMs != 1000 {
		t.Fatalf("duration: %d", data.DurationMs)
	}
	if data.Bounds.MinLat != 27.449833 || data.Bounds.MaxLat != 27.449850 {
		t.Fatalf("bounds: %+v", data.Bounds)
	}
}
