package logparse

import (
	"math"
	"strconv"
	"strings"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/telemetry"
)

// Channel-header CSV: sensor-logger style exports whose header is a row
// of snake_case channel names (gps_lat, speed_kmh, acc_x, ...).

var channelIndicators = map[string]bool{
	"time": true, "timestamp": true, "time_s": true, "utc_time": true,
	"gps_lat": true, "gps_latitude": true, "latitude": true, "lat": true,
	"gps_lon": true, "gps_longitude": true, "longitude": true, "lon": true,
	"gps_speed": true, "speed": true, "speed_kmh": true, "speed_kph": true, "speed_ms": true,
	"gps_heading": true, "heading": true, "course": true, "bearing": true,
	"gps_alt": true, "gps_altitude": true, "altitude": true, "alt": true,
	"num_sats": true, "satellites": true, "sats": true,
	"acc_x": true, "acc_y": true, "acc_z": true,
	"accel_x": true, "accel_y": true, "accel_z": true,
	"gyro_x": true, "gyro_y": true, "gyro_z": true,
}

// Per-role alias fallback chains, most specific first.
var channelAliases = map[csvRole][]string{
	csvRoleLat:        {"gps_lat", "gps_latitude", "latitude", "lat"},
	csvRoleLon:        {"gps_lon", "gps_longitude", "longitude", "lon"},
	csvRoleTime:       {"time", "timestamp", "time_s", "utc_time"},
	csvRoleSpeed:      {"gps_speed", "speed_kmh", "speed_kph", "speed_ms", "speed"},
	csvRoleHeading:    {"gps_heading", "heading", "course", "bearing"},
	csvRoleAltitude:   {"gps_alt", "gps_altitude", "altitude", "alt"},
	csvRoleSatellites: {"num_sats", "satellites", "sats"},
	csvRoleAccelX:     {"acc_x", "accel_x"},
	csvRoleAccelY:     {"acc_y", "accel_y"},
	csvRoleAccelZ:     {"acc_z", "accel_z"},
}

// channelDelimiter picks the separator by character-frequency vote on
// the header line.
func channelDelimiter(line string) byte {
	best, bestCount := byte(','), strings.Count(line, ",")
	if c := strings.Count(line, ";"); c > bestCount {
		best, bestCount = ';', c
	}
	if c := strings.Count(line, "\t"); c > bestCount {
		best = '\t'
	}
	return best
}

func channelHeaderMatch(cells []string) bool {
	matches := 0
	hasTime, hasSensor := false, false
	for _, c := range cells {
		name := normHeader(c)
		if channelIndicators[name] {
			matches++
		}
		if name == "time" || name == "timestamp" {
			hasTime = true
		}
		if strings.Contains(name, "gps") || strings.Contains(name, "acc") {
			hasSensor = true
		}
	}
	return matches >= 2 || (hasTime && hasSensor)
}

func sniffChannelCSV(buf []byte) bool {
	for _, line := range sniffLines(buf) {
		if channelHeaderMatch(splitCSVLine(line, channelDelimiter(line))) {
			return true
		}
	}
	return false
}

func parseChannelCSV(buf []byte) (*telemetry.ParsedData, error) {
	lines := splitLines(buf)

	var (
		header     []string
		headerLine = -1
		delim      byte
		seen       int
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
		d := channelDelimiter(line)
		cells := splitCSVLine(line, d)
		if channelHeaderMatch(cells) {
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

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[normHeader(name)] = i
	}

	roles := make([]csvRole, len(header))
	roleCol := make(map[csvRole]int)
	for role, aliases := range channelAliases {
		for _, alias := range aliases {
			if ci, ok := columns[alias]; ok {
				if roles[ci] == csvRoleNone {
					roles[ci] = role
					roleCol[role] = ci
				}
				break
			}
		}
	}

	_, haveLat := roleCol[csvRoleLat]
	_, haveLon := roleCol[csvRoleLon]
	timeCol, haveTime := roleCol[csvRoleTime]
	if !haveLat || !haveLon || !haveTime {
		return nil, ErrMissingGPSColumns
	}

	extras := make(map[int]telemetry.Field)
	for i, name := range header {
		if roles[i] == csvRoleNone {
			if n := strings.TrimSpace(name); n != "" {
				extras[i] = b.data.AddExtraField(n, i)
			}
		}
	}

	// Time and speed units are fixed once from the first data row;
	// files whose first row is atypical will misclassify, a documented
	// risk of this heuristic.
	speedName := ""
	if sc, ok := roleCol[csvRoleSpeed]; ok {
		speedName = normHeader(header[sc])
	}
	unitsSet := false
	timeIsMs := false
	speedMul := 1.0

	var (
		haveBase bool
		baseMs   int64
	)

	for _, raw := range lines[headerLine+1:] {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		cells := splitCSVLine(line, delim)
		if len(cells) <= timeCol {
			continue
		}

		if !unitsSet {
			timeIsMs, speedMul = channelUnits(cells, roleCol, speedName)
			unitsSet = true
		}

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
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				continue
			}
			switch roles[ci] {
			case csvRoleTime:
				if timeIsMs {
					rawMs = int64(math.Round(v))
				} else {
					rawMs = int64(math.Round(v * 1000))
				}
				timeOK = true
			case csvRoleLat:
				s.Lat = v
				coordOK++
			case csvRoleLon:
				s.Lon = v
				coordOK++
			case csvRoleSpeed:
				s.SetSpeedMps(v * speedMul)
			case csvRoleHeading:
				s.SetHeading(v)
			case csvRoleAltitude:
				s.SetField(telemetry.FieldAltitude, v)
			case csvRoleSatellites:
				s.SetField(telemetry.FieldSatellites, v)
			case csvRoleAccelX:
				s.SetField(telemetry.FieldAccelX, toGUnits(v))
			case csvRoleAccelY:
				s.SetField(telemetry.FieldAccelY, toGUnits(v))
			case csvRoleAccelZ:
				s.SetField(telemetry.FieldAccelZ, toGUnits(v))
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

	if len(b.data.Samples) > 0 {
		first := b.data.Samples[0]
		for _, f := range []telemetry.Field{
			telemetry.FieldAltitude, telemetry.FieldSatellites,
			telemetry.FieldAccelX, telemetry.FieldAccelY, telemetry.FieldAccelZ,
		} {
			if _, ok := first.FieldValue(f); ok && !b.data.HasField(f) {
				b.data.AddField(f, len(b.data.Fields))
			}
		}
	}

	return b.finish()
}

// channelUnits decides the time and speed units from the first data
// row. Explicit unit suffixes in the speed column name win over the
// magnitude heuristic.
func channelUnits(cells []string, roleCol map[csvRole]int, speedName string) (timeIsMs bool, speedMul float64) {
	speedMul = 1.0

	if tc, ok := roleCol[csvRoleTime]; ok && tc < len(cells) {
		if v, err := strconv.ParseFloat(strings.TrimSpace(cells[tc]), 64); err == nil {
			timeIsMs = v > 1e6
		}
	}

	switch {
	case strings.Contains(speedName, "kmh"), strings.Contains(speedName, "kph"):
		speedMul = 1 / telemetry.MpsToKph
		return
	case strings.Contains(speedName, "ms"):
		return
	}

	if sc, ok := roleCol[csvRoleSpeed]; ok && sc < len(cells) {
		if v, err := strconv.ParseFloat(strings.TrimSpace(cells[sc]), 64); err == nil {
			switch {
			case v > 50:
				speedMul = 1 / telemetry.MpsToKph
			case v > 0 && v < 30:
				speedMul = 1
			default:
				speedMul = 1 / telemetry.MpsToKph
			}
		}
	}
	return
}
