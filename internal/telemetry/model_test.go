package telemetry

import (
	"encoding/json"
	"math"
	"testing"
)

func TestSetSpeedMpsDerivesUnits(t *testing.T) {
	var s Sample
	s.SetSpeedMps(12.5)

	if math.Abs(s.SpeedMph-12.5*MpsToMph) > 1e-12 {
		t.Fatalf("mph not derived from m/s: %v", s.SpeedMph)
	}
	if math.Abs(s.SpeedKph-45.0) > 1e-9 {
		t.Fatalf("kph not derived from m/s: %v", s.SpeedKph)
	}
}

func TestSetHeadingNormalizes(t *testing.T) {
	var s Sample
	s.SetHeading(-90)
	if s.Heading != 270 || !s.HasHeading {
		t.Fatalf("expected 270, got %v", s.Heading)
	}
	s.SetHeading(360)
	if s.Heading != 0 {
		t.Fatalf("expected 0, got %v", s.Heading)
	}
	s.SetHeading(725)
	if s.Heading != 5 {
		t.Fatalf("expected 5, got %v", s.Heading)
	}
}

func TestValidCoordinate(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     bool
	}{
		{28.4, -81.3, true},
		{0, 0, false},
		{91, 10, false},
		{-45, 181, false},
		{0, 10, true},
	}
	for _, c := range cases {
		if got := ValidCoordinate(c.lat, c.lon); got != c.want {
			t.Fatalf("ValidCoordinate(%v,%v) = %v, want %v", c.lat, c.lon, got, c.want)
		}
	}
}

func TestAddExtraFieldAllocatesDistinctTags(t *testing.T) {
	var p ParsedData
	p.AddField(FieldSatellites, 0)
	a := p.AddExtraField("Water Temp", 1)
	b := p.AddExtraField("Oil Pressure", 2)
	if a == b {
		t.Fatalf("expected distinct tags, got %v twice", a)
	}
	if a < extraFieldBase || b < extraFieldBase {
		t.Fatalf("passthrough tags must not collide with known tags")
	}
	if !p.HasField(FieldSatellites) || !p.HasField(a) {
		t.Fatalf("descriptor lookup failed")
	}
}

func TestFinalizeBoundsAndDuration(t *testing.T) {
	p := ParsedData{Samples: []Sample{
		{TimeMs: 0, Lat: 28.41, Lon: -81.38},
		{TimeMs: 1000, Lat: 28.42, Lon: -81.37},
		{TimeMs: 2000, Lat: 28.40, Lon: -81.39},
	}}
	p.Finalize()

	if p.DurationMs != 2000 {
		t.Fatalf("duration: %v", p.DurationMs)
	}
	if p.Bounds.MinLat != 28.40 || p.Bounds.MaxLat != 28.42 {
		t.Fatalf("lat bounds: %+v", p.Bounds)
	}
	if p.Bounds.MinLon != -81.39 || p.Bounds.MaxLon != -81.37 {
		t.Fatalf("lon bounds: %+v", p.Bounds)
	}
}

func TestParsedDataJSONRoundTrip(t *testing.T) {
	p := ParsedData{Samples: []Sample{{TimeMs: 0, Lat: 28.4, Lon: -81.3}}}
	p.Samples[0].SetSpeedMps(10)
	p.Samples[0].SetField(FieldSatellites, 9)
	p.Finalize()

	raw, err := json.Marshal(&p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back ParsedData
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := back.Samples[0].FieldValue(FieldSatellites); !ok || v != 9 {
		t.Fatalf("aux fields lost in round trip")
	}
	if back.DurationMs != p.DurationMs {
		t.Fatalf("duration lost in round trip")
	}
}
