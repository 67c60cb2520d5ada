package logparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/telemetry"
)

// Metadata-preamble CSV: lap-timer app exports that open with free-form
// "Driver:" / "Track:" lines before a conventional header row. Comma or
// semicolon delimited with quoted fields.

type csvRole int

const (
	csvRoleNone csvRole = iota
	csvRoleTime
	csvRoleLat
	csvRoleLon
	csvRoleSpeed
	csvRoleAltitude
	csvRoleHeading
	csvRoleSatellites
	csvRoleAccelX
	csvRoleAccelY
	csvRoleAccelZ
	csvRoleLatG
	csvRoleLonG
)

var metaHeaderPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 _\-]*:`)

const (
	accelGThreshold = 10.0
	accelGClamp     = 5.0
)

// metaRoleFor matches a header cell against the synonym table; the
// trailing parenthetical unit, if any, is ignored for matching but used
// for speed-unit selection.
func metaRoleFor(name string) csvRole {
	base := normHeader(name)
	if i := strings.IndexByte(base, '('); i > 0 {
		base = strings.TrimSpace(base[:i])
	}
	switch base {
	case "latitude", "lat", "gps latitude":
		return csvRoleLat
	case "longitude", "lon", "long", "gps longitude":
		return csvRoleLon
	case "speed", "gps speed", "velocity":
		return csvRoleSpeed
	case "time", "utc time", "session time", "elapsed time", "lap time":
		return csvRoleTime
	case "altitude", "elevation", "gps altitude":
		return csvRoleAltitude
	case "heading", "bearing", "course":
		return csvRoleHeading
	case "satellites", "sats", "gps sats":
		return csvRoleSatellites
	case "accel x", "x g", "acc x":
		return csvRoleAccelX
	case "accel y", "y g", "acc y":
		return csvRoleAccelY
	case "accel z", "z g", "acc z":
		return csvRoleAccelZ
	case "lat g", "lateral g":
		return csvRoleLatG
	case "lon g", "long g", "longitudinal g":
		return csvRoleLonG
	}
	return csvRoleNone
}

// speedFactor picks the m/s conversion from the unit in the header
// name; a bare "Speed" column is taken as already m/s.
func speedFactor(name string) float64 {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "mph"):
		return 1 / telemetry.MpsToMph
	case strings.Contains(lower, "km/h"), strings.Contains(lower, "kph"), strings.Contains(lower, "kmh"):
		return 1 / telemetry.MpsToKph
	case strings.Contains(lower, "knot"), strings.Contains(lower, "kt"):
		return telemetry.KnotsToMps
	}
	return 1
}

func metaDelimiter(line string) byte {
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

// metaHeaderMatch applies the header acceptance rule: at least two
// synonym matches, one of which must be latitude or speed.
func metaHeaderMatch(cells []string) bool {
	matches, anchored := 0, false
	for _, c := range cells {
		role := metaRoleFor(c)
		if role != csvRoleNone {
			matches++
		}
		if role == csvRoleLat || role == csvRoleSpeed {
			anchored = true
		}
	}
	return matches >= 2 && anchored
}

func sniffMetaCSV(buf []byte) bool {
	for _, line := range sniffLines(buf) {
		if metaHeaderPattern.MatchString(line) {
			return true
		}
		if metaHeaderMatch(splitCSVLine(line, metaDelimiter(line))) {
			return true
		}
	}
	return false
}

func parseMetaCSV(buf []byte) (*telemetry.ParsedData, error) {
	lines := splitLines(buf)

	// Find the header within the first 50 non-empty lines.
	var (
		header      []string
		headerLine  = -1
		delim  byte = ','
		seen        = 0
	)
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		seen++
		if seen > sniffMaxLines {
			break
		}
		if metaHeaderPattern.MatchString(line) {
			continue
		}
		d := metaDelimiter(line)
		cells := splitCSVLine(line, d)
		if metaHeaderMatch(cells) {
			header = cells
			headerLine = i
			delim = d
			break
		}
	}
	if headerLine == -1 {
		return nil, ErrNoHeaderRow
	}

	b := newStreamBuilder(SpeedDrop)
	roles := make([]csvRole, len(header))
	extras := make(map[int]telemetry.Field)
	speedMul := 1.0
	haveLat, haveLon := false, false

	for i, name := range header {
		roles[i] = metaRoleFor(name)
		switch roles[i] {
		case csvRoleLat:
			haveLat = true
		case csvRoleLon:
			haveLon = true
		case csvRoleSpeed:
			speedMul = speedFactor(name)
		case csvRoleNone:
			if n := strings.TrimSpace(name); n != "" {
				extras[i] = b.data.AddExtraField(n, i)
			}
		}
	}
	if !haveLat || !haveLon {
		return nil, ErrMissingGPSColumns
	}

	var (
		haveBase bool
		baseMs   int64
	)

	for _, raw := range lines[headerLine+1:] {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		// Metadata rows can reappear below the header (session footers).
		if metaHeaderPattern.MatchString(line) {
			continue
		}
		cells := splitCSVLine(line, delim)

		var (
			s       telemetry.Sample
			rawMs   int64
			timeOK  bool
			coordOK int
		)
		for ci, cell := range cells {
			if ci >= len(roles) {
				break
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			switch roles[ci] {
			case csvRoleTime:
				if ms, ok := parseMetaTimeMs(cell); ok {
					rawMs = ms
					timeOK = true
				}
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				continue
			}
			switch roles[ci] {
			case csvRoleLat:
				s.Lat = v
				coordOK++
			case csvRoleLon:
				s.Lon = v
				coordOK++
			case csvRoleSpeed:
				s.SetSpeedMps(v * speedMul)
			case csvRoleAltitude:
				s.SetField(telemetry.FieldAltitude, v)
			case csvRoleHeading:
				s.SetHeading(v)
			case csvRoleSatellites:
				s.SetField(telemetry.FieldSatellites, v)
			case csvRoleAccelX:
				s.SetField(telemetry.FieldAccelX, toGUnits(v))
			case csvRoleAccelY:
				s.SetField(telemetry.FieldAccelY, toGUnits(v))
			case csvRoleAccelZ:
				s.SetField(telemetry.FieldAccelZ, toGUnits(v))
			case csvRoleLatG:
				s.SetField(telemetry.FieldLatG, toGUnits(v))
			case csvRoleLonG:
				s.SetField(telemetry.FieldLonG, toGUnits(v))
			default:
				if tag, ok := extras[ci]; ok {
					s.SetField(tag, v)
				}
			}
		}
		if !timeOK || coordOK != 2 {
			continue
		}

		if !haveBase {
			baseMs = rawMs
			haveBase = true
		}
		s.TimeMs = rawMs - baseMs
		if s.TimeMs < 0 {
			continue
		}

		b.add(s)
	}

	// Register descriptors for accel channels the file actually carried.
	if len(b.data.Samples) > 0 {
		first := b.data.Samples[0]
		for _, f := range []telemetry.Field{
			telemetry.FieldAltitude, telemetry.FieldSatellites,
			telemetry.FieldAccelX, telemetry.FieldAccelY, telemetry.FieldAccelZ,
			telemetry.FieldLatG, telemetry.FieldLonG,
		} {
			if _, ok := first.FieldValue(f); ok && !b.data.HasField(f) {
				idx := len(b.data.Fields)
				if f == telemetry.FieldLatG || f == telemetry.FieldLonG {
					idx = -1 - int(f-telemetry.FieldLatG)
				}
				b.data.AddField(f, idx)
			}
		}
	}

	return b.finish()
}

// toGUnits distinguishes native accelerometer g-values from m/s² by
// magnitude and clamps the result to a plausible G range.
func toGUnits(v float64) float64 {
	if math.Abs(v) > accelGThreshold {
		v /= telemetry.StandardG
	}
	return clamp(v, -accelGClamp, accelGClamp)
}

// parseMetaTimeMs accepts either seconds (possibly fractional) or a
// colon-delimited clock value.
func parseMetaTimeMs(cell string) (int64, bool) {
	if strings.Contains(cell, ":") {
		parts := strings.Split(cell, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return 0, false
		}
		var total float64
		for _, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return 0, false
			}
			total = total*60 + v
		}
		return int64(math.Round(total * 1000)), true
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false
	}
	return int64(math.Round(v * 1000)), true
}

// splitCSVLine splits one delimited line honoring double-quoted fields.
func splitCSVLine(line string, delim byte) []string {
	var (
		out      []string
		cur      strings.Builder
		inQuotes bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == delim && !inQuotes:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	out = append(out, cur.String())
	return out
}
