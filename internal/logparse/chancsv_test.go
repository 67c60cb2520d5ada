package logparse

import (
	"math"
	"strings"
	"testing"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/telemetry"
)

const chanCSVFixture = `time,gps_lat,gps_lon,speed_kmh,gps_heading,acc_x,acc_y,rpm
0.00,27.449833,-81.350667,90.0,180.0,0.1,0.8,4500
0.04,27.449850,-81.350640,91.0,181.0,0.2,0.9,4600
0.08,27.449867,-81.350613,92.0,182.0,0.3,1.0,4700
`

func TestParseChannelCSV(t *testing.T) {
	data, err := parseChannelCSV([]byte(chanCSVFixture))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(data.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(data.Samples))
	}
	if data.Samples[1].TimeMs != 40 || data.Samples[2].TimeMs != 80 {
		t.Fatalf("elapsed: %d %d", data.Samples[1].TimeMs, data.Samples[2].TimeMs)
	}
	if math.Abs(data.Samples[0].SpeedMps-25.0) > 1e-9 {
		t.Fatalf("speed_kmh column must convert: %v", data.Samples[0].SpeedMps)
	}
	if math.Abs(data.Samples[0].Heading-180.0) > 1e-9 {
		t.Fatalf("heading: %v", data.Samples[0].Heading)
	}
	if v, ok := data.Samples[2].FieldValue(telemetry.FieldAccelY); !ok || math.Abs(v-1.0) > 1e-9 {
		t.Fatalf("acc_y: %v %v", v, ok)
	}
	rpm, ok := findExtraField(data, "rpm")
	if !ok {
		t.Fatalf("rpm must become a passthrough channel: %+v", data.Fields)
	}
	if v, _ := data.Samples[1].FieldValue(rpm); v != 4600 {
		t.Fatalf("rpm channel: %v", v)
	}
}

func TestParseChannelCSVNativeAccelDisablesDerivation(t *testing.T) {
	data, err := ParseAs([]byte(chanCSVFixture), FormatChannelCSV)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, d := range data.Fields {
		if d.Field == telemetry.FieldLatG || d.Field == telemetry.FieldLonG {
			t.Fatalf("accelerometer files must not get derived G series: %+v", d)
		}
	}
}

func TestParseChannelCSVUnitHeuristics(t *testing.T) {
	// Epoch-millisecond timestamps and an unsuffixed speed column whose
	// first value is in the km/h magnitude band.
	input := strings.Join([]string{
		"timestamp,latitude,longitude,speed",
		"1710504000000,27.449833,-81.350667,90.0",
		"1710504001000,27.449850,-81.350640,91.0",
	}, "\n")

	data, err := parseChannelCSV([]byte(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if data.Samples[1].TimeMs != 1000 {
		t.Fatalf("epoch ms timestamps: %d", data.Samples[1].TimeMs)
	}
	if math.Abs(data.Samples[0].SpeedMps-25.0) > 1e-9 {
		t.Fatalf("magnitude heuristic must pick km/h: %v", data.Samples[0].SpeedMps)
	}
}

func TestParseChannelCSVSpeedMsSuffix(t *testing.T) {
	input := strings.Join([]string{
		"time,lat,lon,speed_ms",
		"0.0,27.449833,-81.350667,25.0",
	}, "\n")

	data, err := parseChannelCSV([]byte(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if math.Abs(data.Samples[0].SpeedMps-25.0) > 1e-9 {
		t.Fatalf("speed_ms is already m/s: %v", data.Samples[0].SpeedMps)
	}
}

func TestParseChannelCSVAliasPriority(t *testing.T) {
	// gps_lat must win over a plain lat column when both are present.
	input := strings.Join([]string{
		"time,lat,gps_lat,gps_lon",
		"0.0,99.9,27.449833,-81.350667",
	}, "\n")

	data, err := parseChannelCSV([]byte(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if math.Abs(data.Samples[0].Lat-27.449833) > 1e-9 {
		t.Fatalf("alias priority: %v", data.Samples[0].Lat)
	}
}

func TestParseChannelCSVErrors(t *testing.T) {
	// Recognizable header but no time channel.
	noTime := "gps_lat,gps_lon,speed_kmh\n27.4,-81.3,90.0\n"
	if _, err := parseChannelCSV([]byte(noTime)); err != ErrMissingGPSColumns {
		t.Fatalf("expected ErrMissingGPSColumns, got %v", err)
	}
	if _, err := parseChannelCSV([]byte("a,b,c\n1,2,3\n")); err != ErrNoHeaderRow {
		t.Fatalf("expected ErrNoHeaderRow, got %v", err)
	}
}

func TestSniffChannelCSV(t *testing.T) {
	if !sniffChannelCSV([]byte(chanCSVFixture)) {
		t.Fatalf("expected sniff match")
	}
	if !sniffChannelCSV([]byte("time,acc_x,acc_y\n0,0.1,0.2\n")) {
		t.Fatalf("time+sensor rule must match")
	}
	if sniffChannelCSV([]byte("a,b,c\n1,2,3\n")) {
		t.Fatalf("anonymous columns must not sniff")
	}
}
