package logparse

import (
	"math"
	"strconv"
	"strings"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/shared/geo"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/telemetry"
)

// NMEA log lines are tab-delimited: field 0 is a quoted-or-bare NMEA
// sentence, subsequent fields are arbitrary auxiliary channels. Only
// RMC sentences from the GP/GN talkers are decoded for position since
// they carry validity, position and speed in one sentence.

const (
	// minSpeedDtMs guards the haversine speed fallback against
	// divide-by-near-zero noise.
	minSpeedDtMs = 50
	// Day rollover heuristic: a time more than 12 hours earlier than
	// the previous one is a midnight wrap, not a rewind.
	rolloverThresholdMs = 12 * 60 * 60 * 1000
)

func sniffNMEA(buf []byte) bool {
	for _, line := range sniffLines(buf) {
		if strings.HasPrefix(line, "$") || strings.HasPrefix(line, "\"$") {
			return true
		}
	}
	return false
}

func parseNMEA(buf []byte) (*telemetry.ParsedData, error) {
	lines := splitLines(buf)
	if len(lines) == 0 {
		return nil, ErrNoValidGPS
	}

	b := newStreamBuilder(SpeedCarryPrevious)

	// A header row is the first line that is not a sentence; it names
	// the auxiliary channels that follow the sentence on each line.
	var channelNames []string
	start := 0
	if first := strings.TrimSpace(lines[0]); first != "" &&
		!strings.HasPrefix(first, "$") && !strings.HasPrefix(first, "\"$") {
		channelNames = strings.Split(first, "\t")
		start = 1
	}

	var channelTags []telemetry.Field

	var (
		haveBase   bool
		baseMs     int64
		lastRawMs  int64
		wrapOffset int64
	)

	for _, line := range lines[start:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		sentence := strings.Trim(cols[0], "\"")

		fix, ok := parseRMC(sentence)
		if !ok {
			continue
		}

		if haveBase && fix.rawMs < lastRawMs-rolloverThresholdMs {
			wrapOffset += msPerDay
		}

		var s telemetry.Sample
		s.Lat = fix.lat
		s.Lon = fix.lon
		if !haveBase {
			baseMs = fix.rawMs
			haveBase = true
		}
		lastRawMs = fix.rawMs
		s.TimeMs = fix.rawMs + wrapOffset - baseMs

		speed := fix.speedMps
		if !fix.hasSpeed || speed > telemetry.MaxPlausibleSpeedMps {
			// Recompute from consecutive valid positions when the time
			// base allows it; otherwise the carry-previous policy in the
			// builder takes over.
			if b.hasLast && s.TimeMs-b.lastMs >= minSpeedDtMs {
				dist := geo.Haversine(b.lastLat, b.lastLon, fix.lat, fix.lon)
				speed = dist / (float64(s.TimeMs-b.lastMs) / 1000.0)
			} else if !fix.hasSpeed {
				speed = b.lastSpeed
			}
		}
		s.SetSpeedMps(speed)

		if fix.hasCourse {
			s.SetHeading(fix.courseDeg)
		}

		// Auxiliary channels ride along after the sentence.
		for ci := 1; ci < len(cols); ci++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(cols[ci]), 64)
			if err != nil {
				continue
			}
			for len(channelTags) < ci {
				name := "Channel " + strconv.Itoa(len(channelTags)+1)
				if idx := len(channelTags) + 1; idx < len(channelNames) {
					if n := strings.TrimSpace(channelNames[idx]); n != "" {
						name = n
					}
				}
				channelTags = append(channelTags, b.data.AddExtraField(name, len(channelTags)))
			}
			s.SetField(channelTags[ci-1], v)
		}

		b.add(s)
	}

	return b.finish()
}

type rmcFix struct {
	rawMs     int64
	lat       float64
	lon       float64
	speedMps  float64
	hasSpeed  bool
	courseDeg float64
	hasCourse bool
}

// parseRMC decodes one RMC sentence. Lines with a void status field or
// malformed coordinates are dropped entirely.
func parseRMC(sentence string) (rmcFix, bool) {
	var fix rmcFix

	if i := strings.IndexByte(sentence, '*'); i >= 0 {
		sentence = sentence[:i]
	}
	parts := strings.Split(sentence, ",")
	if len(parts) < 8 {
		return fix, false
	}
	head := parts[0]
	if head != "$GPRMC" && head != "$GNRMC" {
		return fix, false
	}
	if parts[2] != "A" {
		return fix, false
	}

	ms, ok := parseClockMs(parts[1])
	if !ok {
		return fix, false
	}
	fix.rawMs = ms

	lat, ok := parseDegMin(parts[3], parts[4])
	if !ok {
		return fix, false
	}
	lon, ok := parseDegMin(parts[5], parts[6])
	if !ok {
		return fix, false
	}
	fix.lat = lat
	fix.lon = lon

	if parts[7] != "" {
		if knots, err := strconv.ParseFloat(parts[7], 64); err == nil {
			fix.speedMps = knots * telemetry.KnotsToMps
			fix.hasSpeed = true
		}
	}
	if len(parts) > 8 && parts[8] != "" {
		if course, err := strconv.ParseFloat(parts[8], 64); err == nil {
			fix.courseDeg = course
			fix.hasCourse = true
		}
	}
	return fix, true
}

// parseClockMs converts hhmmss.sss into milliseconds of day.
func parseClockMs(field string) (int64, bool) {
	if len(field) < 6 {
		return 0, false
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, false
	}
	hours := int64(v) / 10000
	minutes := (int64(v) / 100) % 100
	seconds := int64(v) % 100
	fracMs := int64(math.Round((v - math.Trunc(v)) * 1000))
	if hours > 23 || minutes > 59 || seconds > 60 {
		return 0, false
	}
	return (hours*3600+minutes*60+seconds)*1000 + fracMs, true
}

// parseDegMin converts ddmm.mmmm / dddmm.mmmm plus a hemisphere letter
// into signed decimal degrees.
func parseDegMin(field, hemi string) (float64, bool) {
	v, err := strconv.ParseFloat(field, 64)
	if err != nil || field == "" {
		return 0, false
	}
	deg := math.Floor(v / 100)
	minutes := v - deg*100
	out := deg + minutes/60
	switch hemi {
	case "S", "W":
		out = -out
	case "N", "E":
	default:
		return 0, false
	}
	return out, true
}
