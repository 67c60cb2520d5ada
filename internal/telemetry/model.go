package telemetry

import (
	"math"
	"time"
)

// Unit conversion constants. Cached speed values are always derived from
// the canonical m/s value with these to avoid rounding drift.
const (
	KnotsToMps = 0.514444
	MpsToMph   = 2.23694
	MpsToKph   = 3.6
	StandardG  = 9.80665
)

// MaxPlausibleSpeedMps is the sanity bound on any decoded speed; values
// above it (~335 mph) are decode artifacts.
const MaxPlausibleSpeedMps = 150.0

// Field tags an auxiliary value carried by a sample. Known fields have
// fixed tags; passthrough columns from less-common formats are assigned
// tags from extraFieldBase upward per decode.
type Field int16

const (
	FieldSatellites Field = iota
	FieldAltitude
	FieldHeight
	FieldLatG
	FieldLonG
	FieldAccelX
	FieldAccelY
	FieldAccelZ

	extraFieldBase Field = 64
)

var knownFieldNames = map[Field]string{
	FieldSatellites: "Satellites",
	FieldAltitude:   "Altitude (m)",
	FieldHeight:     "Height (m)",
	FieldLatG:       "Lat G",
	FieldLonG:       "Lon G",
	FieldAccelX:     "Accel X",
	FieldAccelY:     "Accel Y",
	FieldAccelZ:     "Accel Z",
}

// FieldName returns the display name for a known field tag, or "" for
// passthrough tags, whose names live in their descriptors.
func FieldName(f Field) string {
	return knownFieldNames[f]
}

// FieldDescriptor declares one auxiliary field of a parsed stream.
// Index is a signed synthetic index used only for default ordering:
// negative indices denote derived series such as G-force, non-negative
// ones passthrough columns from the source file. Descriptors are
// immutable after decode except for Enabled, which is external UI state.
type FieldDescriptor struct {
	Field   Field  `json:"field"`
	Name    string `json:"name"`
	Index   int    `json:"index"`
	Enabled bool   `json:"enabled"`
}

// Sample is one time-stamped observation of the canonical stream.
type Sample struct {
	// TimeMs is elapsed milliseconds since the first accepted sample of
	// the session, rebased at decode time.
	TimeMs int64 `json:"t"`

	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	SpeedMps float64 `json:"mps"`
	SpeedMph float64 `json:"mph"`
	SpeedKph float64 `json:"kph"`

	Heading    float64 `json:"hdg,omitempty"`
	HasHeading bool    `json:"hasHdg,omitempty"`

	Fields map[Field]float64 `json:"fields,omitempty"`
}

// SetSpeedMps stores the canonical speed and refreshes the cached unit
// conversions.
func (s *Sample) SetSpeedMps(v float64) {
	s.SpeedMps = v
	s.SpeedMph = v * MpsToMph
	s.SpeedKph = v * MpsToKph
}

// SetHeading normalizes deg into [0, 360) and marks the heading present.
func (s *Sample) SetHeading(deg float64) {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	s.Heading = deg
	s.HasHeading = true
}

// SetField records an auxiliary value, allocating the map on first use.
func (s *Sample) SetField(f Field, v float64) {
	if s.Fields == nil {
		s.Fields = make(map[Field]float64)
	}
	s.Fields[f] = v
}

// FieldValue returns the auxiliary value for f and whether it is set.
func (s *Sample) FieldValue(f Field) (float64, bool) {
	v, ok := s.Fields[f]
	return v, ok
}

// ValidCoordinate reports whether a lat/lon pair is usable: inside
// range and not the (0,0) null island fix loggers emit before lock.
func ValidCoordinate(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	return math.Abs(lat) <= 90 && math.Abs(lon) <= 180
}

// Bounds is the bounding box of a parsed stream.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLon float64 `json:"minLon"`
	MaxLon float64 `json:"maxLon"`
	set    bool
}

func (b *Bounds) Extend(lat, lon float64) {
	if !b.set {
		b.MinLat, b.MaxLat = lat, lat
		b.MinLon, b.MaxLon = lon, lon
		b.set = true
		return
	}
	b.MinLat = math.Min(b.MinLat, lat)
	b.MaxLat = math.Max(b.MaxLat, lat)
	b.MinLon = math.Min(b.MinLon, lon)
	b.MaxLon = math.Max(b.MaxLon, lon)
}

// ParsedData is the canonical stream a decoder produces: ordered
// samples, field descriptors, bounds and duration, plus the session
// start wall clock when the source format supplies one. It is treated
// as immutable by downstream consumers.
type ParsedData struct {
	Samples    []Sample          `json:"samples"`
	Fields     []FieldDescriptor `json:"fieldDescriptors"`
	Bounds     Bounds            `json:"bounds"`
	DurationMs int64             `json:"durationMs"`
	StartTime  time.Time         `json:"startTime,omitempty"`
}

// AddField registers a descriptor for a known field tag.
func (p *ParsedData) AddField(f Field, index int) Field {
	p.Fields = append(p.Fields, FieldDescriptor{
		Field:   f,
		Name:    FieldName(f),
		Index:   index,
		Enabled: true,
	})
	return f
}

// AddExtraField allocates a passthrough tag for a source column the
// known set does not cover.
func (p *ParsedData) AddExtraField(name string, index int) Field {
	next := extraFieldBase
	for _, d := range p.Fields {
		if d.Field >= next {
			next = d.Field + 1
		}
	}
	p.Fields = append(p.Fields, FieldDescriptor{
		Field:   next,
		Name:    name,
		Index:   index,
		Enabled: true,
	})
	return next
}

// HasField reports whether a descriptor exists for f.
func (p *ParsedData) HasField(f Field) bool {
	for _, d := range p.Fields {
		if d.Field == f {
			return true
		}
	}
	return false
}

// Finalize recomputes bounds and duration from the sample list. Called
// once by each decoder after its last accepted sample.
func (p *ParsedData) Finalize() {
	p.Bounds = Bounds{}
	for i := range p.Samples {
		p.Bounds.Extend(p.Samples[i].Lat, p.Samples[i].Lon)
	}
	if n := len(p.Samples); n > 0 {
		p.DurationMs = p.Samples[n-1].TimeMs
	}
}
