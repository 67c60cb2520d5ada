package logparse

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/telemetry"
)

// VBO-style sectioned text: space-delimited rows under a [data] marker,
// column names under [column names], free-form metadata under [header].

type vboRole int

const (
	vboRoleNone vboRole = iota
	vboRoleSatellites
	vboRoleTime
	vboRoleLat
	vboRoleLon
	vboRoleSpeed
	vboRoleHeading
	vboRoleHeight
)

var vboSynonyms = map[string]vboRole{
	"sats":       vboRoleSatellites,
	"satellites": vboRoleSatellites,
	"time":       vboRoleTime,
	"utc time":   vboRoleTime,
	"lat":        vboRoleLat,
	"latitude":   vboRoleLat,
	"long":       vboRoleLon,
	"lon":        vboRoleLon,
	"longitude":  vboRoleLon,
	"velocity":   vboRoleSpeed,
	"vel":        vboRoleSpeed,
	"speed":      vboRoleSpeed,
	"heading":    vboRoleHeading,
	"course":     vboRoleHeading,
	"height":     vboRoleHeight,
	"alt":        vboRoleHeight,
	"altitude":   vboRoleHeight,
}

// Legacy files with unnamed columns follow this fixed order.
var vboPositionalRoles = []vboRole{
	vboRoleSatellites, vboRoleTime, vboRoleLat, vboRoleLon,
	vboRoleSpeed, vboRoleHeading, vboRoleHeight,
}

func sniffVBO(buf []byte) bool {
	for _, line := range sniffLines(buf) {
		switch strings.ToLower(line) {
		case "[header]", "[column names]", "[data]":
			return true
		}
	}
	return false
}

func parseVBO(buf []byte) (*telemetry.ParsedData, error) {
	lines := splitLines(buf)

	var (
		section     string
		columnNames []string
		dataStart   = -1
		created     time.Time
	)

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "[") && strings.HasSuffix(lower, "]") {
			section = lower
			continue
		}
		switch section {
		case "[column names]":
			if columnNames == nil {
				columnNames = strings.Fields(line)
			}
		case "[data]":
			if dataStart == -1 {
				dataStart = i
			}
		default:
			if t, ok := parseVBOCreated(line); ok {
				created = t
			}
		}
	}

	if dataStart == -1 {
		return nil, ErrNoDataSection
	}

	b := newStreamBuilder(SpeedDrop)
	b.data.StartTime = created

	roles, extras := resolveVBOColumns(b.data, columnNames, lines[dataStart])
	if roles == nil {
		return nil, ErrMissingGPSColumns
	}

	var (
		haveBase   bool
		baseMs     int64
		lastRawMs  int64
		wrapOffset int64
	)

	for _, raw := range lines[dataStart:] {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < len(roles) {
			continue
		}

		var (
			s       telemetry.Sample
			rawMs   int64
			timeOK  bool
			coordOK = 0
		)
		for ci, role := range roles {
			v, err := strconv.ParseFloat(fields[ci], 64)
			if err != nil {
				continue
			}
			switch role {
			case vboRoleTime:
				rawMs = vboTimeMs(v)
				timeOK = true
			case vboRoleLat:
				s.Lat = unpackCoordinate(v)
				coordOK++
			case vboRoleLon:
				s.Lon = unpackCoordinate(v)
				coordOK++
			case vboRoleSpeed:
				s.SetSpeedMps(v / telemetry.MpsToKph)
			case vboRoleHeading:
				s.SetHeading(v)
			case vboRoleSatellites:
				s.SetField(telemetry.FieldSatellites, v)
			case vboRoleHeight:
				s.SetField(telemetry.FieldHeight, v)
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
		} else if rawMs < lastRawMs {
			wrapOffset += msPerDay
		}
		lastRawMs = rawMs
		s.TimeMs = rawMs + wrapOffset - baseMs

		b.add(s)
	}

	return b.finish()
}

// resolveVBOColumns maps column positions to roles. Named columns win;
// when lat/lon cannot be identified by name and the row is wide enough,
// the legacy positional layout is applied once to the whole map.
func resolveVBOColumns(data *telemetry.ParsedData, names []string, sampleRow string) ([]vboRole, map[int]telemetry.Field) {
	width := len(names)
	if width == 0 {
		width = len(strings.Fields(strings.TrimSpace(sampleRow)))
	}
	if width == 0 {
		return nil, nil
	}

	roles := make([]vboRole, width)
	extras := make(map[int]telemetry.Field)
	haveLat, haveLon := false, false

	for i, name := range names {
		role := vboSynonyms[normHeader(name)]
		roles[i] = role
		switch role {
		case vboRoleLat:
			haveLat = true
		case vboRoleLon:
			haveLon = true
		case vboRoleNone:
			extras[i] = data.AddExtraField(strings.TrimSpace(name), i)
		}
	}

	if (!haveLat || !haveLon) && width >= 5 {
		// Legacy accommodation: sats time lat long velocity heading height.
		extras = make(map[int]telemetry.Field)
		data.Fields = nil
		for i := range roles {
			if i < len(vboPositionalRoles) {
				roles[i] = vboPositionalRoles[i]
			} else {
				roles[i] = vboRoleNone
			}
		}
		haveLat, haveLon = true, true
	}

	if !haveLat || !haveLon {
		return nil, nil
	}
	return roles, extras
}

// vboTimeMs interprets a time cell as either seconds since midnight or
// packed hhmmss.sss, disambiguated by magnitude.
func vboTimeMs(v float64) int64 {
	if v >= 100000 {
		hours := int64(v) / 10000
		minutes := (int64(v) / 100) % 100
		seconds := int64(v) % 100
		fracMs := int64(math.Round((v - math.Trunc(v)) * 1000))
		return (hours*3600+minutes*60+seconds)*1000 + fracMs
	}
	return int64(math.Round(v * 1000))
}

// unpackCoordinate accepts plain decimal degrees or degrees+decimal-
// minutes packed as DDDMM.MMMMM; anything beyond coordinate range must
// be packed.
func unpackCoordinate(v float64) float64 {
	if math.Abs(v) <= 180 {
		return v
	}
	sign := 1.0
	if v < 0 {
		sign = -1
		v = -v
	}
	deg := math.Floor(v / 100)
	minutes := v - deg*100
	return sign * (deg + minutes/60)
}

// parseVBOCreated recognizes the "File created on 31/07/2019 at
// 09:55:20" header line and yields the session start wall clock.
func parseVBOCreated(line string) (time.Time, bool) {
	lower := strings.ToLower(line)
	if !strings.HasPrefix(lower, "file created on") {
		return time.Time{}, false
	}
	rest := strings.TrimSpace(line[len("file created on"):])
	for _, layout := range []string{
		"02/01/2006 at 15:04:05",
		"02/01/2006 15:04:05",
		"02/01/2006",
	} {
		if t, err := time.Parse(layout, rest); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
