// Package speedevents finds local speed extrema (braking points and
// corner minimums) in a session's smoothed speed trace.
package speedevents

import (
	"math"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/telemetry"
)

// EventType distinguishes a local maximum from a local minimum.
type EventType int

const (
	Peak EventType = iota
	Valley
)

func (t EventType) String() string {
	if t == Valley {
		return "valley"
	}
	return "peak"
}

// Event is one detected extremum. Speed is the rounded display value
// in mph. Ephemeral, recomputed from the stream and parameters.
type Event struct {
	Type   EventType `json:"type"`
	Speed  int       `json:"speed"`
	Lat    float64   `json:"lat"`
	Lon    float64   `json:"lon"`
	Index  int       `json:"index"`
	TimeMs int64     `json:"timeMs"`
}

// Params tunes the detector. Zero values are replaced by the defaults.
type Params struct {
	// Window is the centered moving-average width applied to the speed
	// series before differentiation.
	Window int `json:"window"`
	// DeadBand is the minimum mph delta that counts as a slope; smaller
	// deltas are treated as flat to stop sign flutter.
	DeadBand float64 `json:"deadBand"`
	// DebounceCount is how many consecutive sign-bearing deltas the new
	// slope must hold before a candidate extremum is confirmed.
	DebounceCount int `json:"debounceCount"`
	// MinSeparationMs is the minimum time between emitted events.
	MinSeparationMs int64 `json:"minSeparationMs"`
	// MinSwing is the minimum mph difference from the previous emitted
	// event's speed.
	MinSwing float64 `json:"minSwing"`
}

func DefaultParams() Params {
	return Params{
		Window:          5,
		DeadBand:        0.01,
		DebounceCount:   2,
		MinSeparationMs: 1000,
		MinSwing:        3,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Window <= 0 {
		p.Window = d.Window
	}
	if p.DeadBand <= 0 {
		p.DeadBand = d.DeadBand
	}
	if p.DebounceCount <= 0 {
		p.DebounceCount = d.DebounceCount
	}
	if p.MinSeparationMs <= 0 {
		p.MinSeparationMs = d.MinSeparationMs
	}
	if p.MinSwing <= 0 {
		p.MinSwing = d.MinSwing
	}
	return p
}

// Detect scans the stream for confirmed extrema. Consecutive emitted
// events alternate in type; a stronger same-type candidate replaces
// the previous event in place instead of appending a duplicate.
func Detect(data *telemetry.ParsedData, params Params) []Event {
	p := params.withDefaults()
	n := len(data.Samples)
	if n < 3 {
		return nil
	}

	smoothed := smooth(data, p.Window)

	// Sign-bearing deltas only: flat stretches inside the dead band do
	// not advance the slope state.
	type delta struct {
		idx  int // sample index at the left end of the delta
		sign int
	}
	var deltas []delta
	for i := 1; i < n; i++ {
		d := smoothed[i] - smoothed[i-1]
		if math.Abs(d) <= p.DeadBand {
			continue
		}
		sign := 1
		if d < 0 {
			sign = -1
		}
		deltas = append(deltas, delta{idx: i - 1, sign: sign})
	}

	var (
		events    []Event
		lastValue float64
	)

	emit := func(idx int, typ EventType) {
		value := smoothed[idx]
		s := &data.Samples[idx]
		ev := Event{
			Type:   typ,
			Speed:  int(math.Round(value)),
			Lat:    s.Lat,
			Lon:    s.Lon,
			Index:  idx,
			TimeMs: s.TimeMs,
		}

		if len(events) == 0 {
			events = append(events, ev)
			lastValue = value
			return
		}
		last := &events[len(events)-1]

		if typ == last.Type {
			// Same-type candidate: keep whichever is more extreme.
			stronger := (typ == Peak && value > lastValue) ||
				(typ == Valley && value < lastValue)
			if stronger {
				*last = ev
				lastValue = value
			}
			return
		}

		if ev.TimeMs-last.TimeMs < p.MinSeparationMs {
			return
		}
		if math.Abs(value-lastValue) < p.MinSwing {
			return
		}
		events = append(events, ev)
		lastValue = value
	}

	for k := 1; k < len(deltas); k++ {
		if deltas[k].sign == deltas[k-1].sign {
			continue
		}
		// The sample just before the flip is the candidate extremum; it
		// is confirmed only if the new slope holds for the debounce
		// count of sign-bearing deltas starting at the flip.
		confirmed := true
		for j := 0; j < p.DebounceCount; j++ {
			if k+j >= len(deltas) || deltas[k+j].sign != deltas[k].sign {
				confirmed = false
				break
			}
		}
		if !confirmed {
			continue
		}
		typ := Valley
		if deltas[k-1].sign > 0 {
			typ = Peak
		}
		emit(deltas[k].idx, typ)
	}
	return events
}

// smooth returns the centered moving average of the mph series, the
// window shrinking at the ends.
func smooth(data *telemetry.ParsedData, window int) []float64 {
	n := len(data.Samples)
	out := make([]float64, n)
	half := window / 2
	for i := 0; i < n; i++ {
		lo, hi := i-half, i+half
		if lo < 0 {
			lo = 0
		}
		if hi >= n {
			hi = n - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += data.Samples[j].SpeedMph
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}
