package logparse

import (
	"math"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/telemetry"
)

const (
	// minAccelDtMs is the neighbor time span below which a finite
	// difference is too noisy to use.
	minAccelDtMs = 50
	accelClampG  = 3.0
	smoothWindow = 5
)

// headingDelta reduces a heading difference into [-180, 180] so turns
// across north resolve to the shortest path.
func headingDelta(from, to float64) float64 {
	d := to - from
	if d > 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}
	return d
}

// deriveAcceleration adds Lat G / Lon G series computed by centered
// finite differences over each sample's neighbors, followed by a moving
// average pass. Skipped when the source already supplied accelerometer
// channels.
func deriveAcceleration(data *telemetry.ParsedData) {
	if data.HasField(telemetry.FieldLatG) || data.HasField(telemetry.FieldAccelX) {
		return
	}
	n := len(data.Samples)
	if n < 2 {
		return
	}

	lon := make([]float64, n)
	lat := make([]float64, n)

	for i := 0; i < n; i++ {
		prev := i - 1
		next := i + 1
		if prev < 0 {
			prev = 0
		}
		if next >= n {
			next = n - 1
		}

		a := &data.Samples[prev]
		b := &data.Samples[next]
		dtMs := b.TimeMs - a.TimeMs
		if dtMs < minAccelDtMs {
			continue
		}
		dt := float64(dtMs) / 1000.0

		lon[i] = clamp((b.SpeedMps-a.SpeedMps)/dt/telemetry.StandardG, -accelClampG, accelClampG)

		if a.HasHeading && b.HasHeading {
			yawRate := headingDelta(a.Heading, b.Heading) * math.Pi / 180 / dt
			cur := &data.Samples[i]
			lat[i] = clamp(cur.SpeedMps*yawRate/telemetry.StandardG, -accelClampG, accelClampG)
		}
	}

	lon = smoothCentered(lon, smoothWindow)
	lat = smoothCentered(lat, smoothWindow)

	data.AddField(telemetry.FieldLatG, -1)
	data.AddField(telemetry.FieldLonG, -2)
	for i := 0; i < n; i++ {
		data.Samples[i].SetField(telemetry.FieldLatG, lat[i])
		data.Samples[i].SetField(telemetry.FieldLonG, lon[i])
	}
}

// smoothCentered applies a centered moving average, shrinking the
// window at the series ends.
func smoothCentered(vals []float64, window int) []float64 {
	if window <= 1 || len(vals) == 0 {
		return vals
	}
	half := window / 2
	out := make([]float64, len(vals))
	for i := range vals {
		lo := i - half
		hi := i + half
		if lo < 0 {
			lo = 0
		}
		if hi >= len(vals) {
			hi = len(vals) - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += vals[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
