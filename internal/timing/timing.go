// Package timing computes laps and sector splits for a session by
// intersecting the GPS path with a course's timing lines. It reads the
// canonical stream, never mutates it, and recomputes wholesale when the
// stream or course changes.
package timing

import (
	"errors"
	"math"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/shared/geo"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/telemetry"
)

var (
	ErrDegenerateLine   = errors.New("timing line endpoints must be distinct")
	ErrUnpairedSectors  = errors.New("sector lines must be configured together or not at all")
	ErrNotEnoughSamples = errors.New("not enough samples for lap timing")
)

const (
	// Debounce windows between accepted crossings of the same line.
	startFinishDebounceMs = 5000
	sectorDebounceMs      = 1000

	// Glitch-run exclusion for minimum-speed statistics.
	glitchSpeedMph = 1.0
	glitchMaxRun   = 3
)

// Point is a geographic coordinate of a timing line endpoint.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Line is an oriented segment between two distinct points.
type Line struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

func (l Line) validate() error {
	if l.A == l.B {
		return ErrDegenerateLine
	}
	return nil
}

// Course is one start/finish line plus an optional pair of sector
// boundaries. Sector timing is active only when both are present.
type Course struct {
	StartFinish Line  `json:"startFinish"`
	Sector2     *Line `json:"sector2,omitempty"`
	Sector3     *Line `json:"sector3,omitempty"`
}

func (c Course) HasSectors() bool {
	return c.Sector2 != nil && c.Sector3 != nil
}

func (c Course) Validate() error {
	if err := c.StartFinish.validate(); err != nil {
		return err
	}
	if (c.Sector2 == nil) != (c.Sector3 == nil) {
		return ErrUnpairedSectors
	}
	if c.HasSectors() {
		if err := c.Sector2.validate(); err != nil {
			return err
		}
		if err := c.Sector3.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Crossing is one detected intersection of the path with a timing
// line: the sample index just before the crossing, the interpolated
// crossing time, the fractional position along the path segment and a
// direction sign. Ephemeral, recomputed per course.
type Crossing struct {
	Index     int
	TimeMs    int64
	Fraction  float64
	Direction int
}

// Sectors holds the three split durations of a lap with both sector
// crossings detected in order. Populated all-or-nothing.
type Sectors struct {
	S1Ms int64 `json:"s1Ms"`
	S2Ms int64 `json:"s2Ms"`
	S3Ms int64 `json:"s3Ms"`
}

// Lap spans two consecutive same-direction start/finish crossings.
type Lap struct {
	Number      int      `json:"number"`
	StartMs     int64    `json:"startMs"`
	EndMs       int64    `json:"endMs"`
	TimeMs      int64    `json:"timeMs"`
	StartIndex  int      `json:"startIndex"`
	EndIndex    int      `json:"endIndex"`
	MaxSpeedMps float64  `json:"maxSpeedMps"`
	MaxSpeedMph float64  `json:"maxSpeedMph"`
	MinSpeedMps float64  `json:"minSpeedMps"`
	MinSpeedMph float64  `json:"minSpeedMph"`
	Sectors     *Sectors `json:"sectors,omitempty"`
}

// Result is the complete timing analysis for one session and course.
// OptimalTimeMs sums the best individually observed sectors, which may
// come from different laps; DeltaToFastestMs is the fastest full-sector
// lap minus the optimal. A negative delta means the sector crossings
// are internally inconsistent and is reported, not clamped.
type Result struct {
	Laps             []Lap `json:"laps"`
	OptimalTimeMs    int64 `json:"optimalTimeMs,omitempty"`
	DeltaToFastestMs int64 `json:"deltaToFastestMs,omitempty"`
	SectorsSuspect   bool  `json:"sectorsSuspect,omitempty"`
}

// Analyze runs crossing detection and lap construction for one course.
func Analyze(data *telemetry.ParsedData, course Course) (*Result, error) {
	if err := course.Validate(); err != nil {
		return nil, err
	}
	if len(data.Samples) < 2 {
		return nil, ErrNotEnoughSamples
	}

	// All lines and samples share one projection centered on the
	// start/finish midpoint; the equirectangular plane is only valid
	// for course-sized extents, which is exactly the working set here.
	centerLat := (course.StartFinish.A.Lat + course.StartFinish.B.Lat) / 2
	centerLon := (course.StartFinish.A.Lon + course.StartFinish.B.Lon) / 2

	path := make([]geo.Point, len(data.Samples))
	for i := range data.Samples {
		path[i] = geo.ProjectToPlane(data.Samples[i].Lat, data.Samples[i].Lon, centerLat, centerLon)
	}
	project := func(l Line) (geo.Point, geo.Point) {
		return geo.ProjectToPlane(l.A.Lat, l.A.Lon, centerLat, centerLon),
			geo.ProjectToPlane(l.B.Lat, l.B.Lon, centerLat, centerLon)
	}

	sfA, sfB := project(course.StartFinish)
	sfCrossings := detectCrossings(path, data.Samples, sfA, sfB, startFinishDebounceMs)

	res := &Result{Laps: buildLaps(data.Samples, sfCrossings)}

	if course.HasSectors() && len(res.Laps) > 0 {
		s2A, s2B := project(*course.Sector2)
		s3A, s3B := project(*course.Sector3)
		populateSectors(res.Laps,
			detectCrossings(path, data.Samples, s2A, s2B, sectorDebounceMs),
			detectCrossings(path, data.Samples, s3A, s3B, sectorDebounceMs))
		computeOptimal(res)
	}
	return res, nil
}

// detectCrossings scans every consecutive sample pair for an
// intersection with the projected line a-b. A crossing is accepted
// only past the debounce window from the previous accepted crossing
// and only when its direction matches the previous accepted one, which
// pins a single lap direction and rejects back-and-forth noise near
// the line.
func detectCrossings(path []geo.Point, samples []telemetry.Sample, a, b geo.Point, debounceMs int64) []Crossing {
	var (
		out     []Crossing
		lastMs  int64
		lastDir int
	)
	for i := 0; i+1 < len(path); i++ {
		frac, ok := geo.SegmentIntersection(path[i], path[i+1], a, b)
		if !ok {
			continue
		}
		// Direction from the side-value transition, which stays correct
		// when a sample lies exactly on the line.
		dir := 1
		if geo.SideOfLine(path[i], a, b) > geo.SideOfLine(path[i+1], a, b) {
			dir = -1
		}

		t0 := samples[i].TimeMs
		t1 := samples[i+1].TimeMs
		ms := t0 + int64(math.Round(frac*float64(t1-t0)))

		if len(out) > 0 {
			if ms-lastMs < debounceMs {
				continue
			}
			if dir != lastDir {
				continue
			}
		}
		out = append(out, Crossing{Index: i, TimeMs: ms, Fraction: frac, Direction: dir})
		lastMs = ms
		lastDir = dir
	}
	return out
}

// buildLaps turns each pair of consecutive accepted start/finish
// crossings into a lap with its speed statistics.
func buildLaps(samples []telemetry.Sample, crossings []Crossing) []Lap {
	if len(crossings) < 2 {
		return nil
	}
	laps := make([]Lap, 0, len(crossings)-1)
	for n := 0; n+1 < len(crossings); n++ {
		start, end := crossings[n], crossings[n+1]
		lap := Lap{
			Number:     n + 1,
			StartMs:    start.TimeMs,
			EndMs:      end.TimeMs,
			TimeMs:     end.TimeMs - start.TimeMs,
			StartIndex: start.Index,
			EndIndex:   end.Index,
		}
		lap.MaxSpeedMps, lap.MinSpeedMps = speedExtremes(samples, start.Index, end.Index)
		lap.MaxSpeedMph = lap.MaxSpeedMps * telemetry.MpsToMph
		lap.MinSpeedMph = lap.MinSpeedMps * telemetry.MpsToMph
		laps = append(laps, lap)
	}
	return laps
}

// speedExtremes scans the lap's sample range. Short runs of near-zero
// speed (GPS dropouts reading as standstill) are excluded from the
// minimum only: a genuinely slow section is longer than glitchMaxRun
// samples, a dropout is not. The maximum scan sees every sample.
func speedExtremes(samples []telemetry.Sample, lo, hi int) (maxMps, minMps float64) {
	glitch := glitchRuns(samples, lo, hi)
	minMps = math.MaxFloat64
	found := false
	for i := lo; i <= hi; i++ {
		mps := samples[i].SpeedMps
		if mps > maxMps {
			maxMps = mps
		}
		if glitch[i-lo] {
			continue
		}
		if mps < minMps {
			minMps = mps
		}
		found = true
	}
	if !found {
		minMps = 0
	}
	return maxMps, minMps
}

// glitchRuns flags indices belonging to runs of at most glitchMaxRun
// consecutive samples below the glitch speed.
func glitchRuns(samples []telemetry.Sample, lo, hi int) []bool {
	flags := make([]bool, hi-lo+1)
	runStart := -1
	mark := func(from, to int) {
		if from >= 0 && to-from <= glitchMaxRun {
			for i := from; i < to; i++ {
				flags[i-lo] = true
			}
		}
	}
	for i := lo; i <= hi; i++ {
		if samples[i].SpeedMph < glitchSpeedMph {
			if runStart == -1 {
				runStart = i
			}
			continue
		}
		mark(runStart, i)
		runStart = -1
	}
	mark(runStart, hi+1)
	return flags
}

// populateSectors attaches split times to each lap that contains one
// sector-2 and one sector-3 crossing in order, strictly inside the
// lap's bounding crossings. Anything else leaves the lap's sectors
// unset; a lap is never given a partial set.
func populateSectors(laps []Lap, s2, s3 []Crossing) {
	for i := range laps {
		lap := &laps[i]
		c2, ok2 := firstInside(s2, lap.StartMs, lap.EndMs)
		c3, ok3 := firstInside(s3, lap.StartMs, lap.EndMs)
		if !ok2 || !ok3 || c2.TimeMs >= c3.TimeMs {
			continue
		}
		lap.Sectors = &Sectors{
			S1Ms: c2.TimeMs - lap.StartMs,
			S2Ms: c3.TimeMs - c2.TimeMs,
			S3Ms: lap.EndMs - c3.TimeMs,
		}
	}
}

func firstInside(crossings []Crossing, startMs, endMs int64) (Crossing, bool) {
	for _, c := range crossings {
		if c.TimeMs > startMs && c.TimeMs < endMs {
			return c, true
		}
	}
	return Crossing{}, false
}

// computeOptimal sums the best observed S1/S2/S3 across full-sector
// laps and compares against the fastest of those laps.
func computeOptimal(res *Result) {
	var (
		best1, best2, best3 int64 = math.MaxInt64, math.MaxInt64, math.MaxInt64
		fastest             int64 = math.MaxInt64
		any                 bool
	)
	for _, lap := range res.Laps {
		if lap.Sectors == nil {
			continue
		}
		any = true
		best1 = min64(best1, lap.Sectors.S1Ms)
		best2 = min64(best2, lap.Sectors.S2Ms)
		best3 = min64(best3, lap.Sectors.S3Ms)
		fastest = min64(fastest, lap.TimeMs)
	}
	if !any {
		return
	}
	res.OptimalTimeMs = best1 + best2 + best3
	res.DeltaToFastestMs = fastest - res.OptimalTimeMs
	res.SectorsSuspect = res.DeltaToFastestMs < 0
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
