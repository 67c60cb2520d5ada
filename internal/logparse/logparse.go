// Package logparse turns raw data-logger files into the canonical
// telemetry stream. Five independent decoders share one contract: given
// a complete in-memory buffer, either return a full ParsedData or a
// single terminal error, never a partial stream.
package logparse

import (
	"errors"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/telemetry"
)

// Decode errors surfaced to callers. Row-level problems (bad checksum,
// out-of-range fix, implausible speed) are recovered locally and never
// reach this level.
var (
	ErrUnknownFormat     = errors.New("unrecognized log format")
	ErrNoDataSection     = errors.New("no data section found")
	ErrNoValidGPS        = errors.New("no valid GPS data found")
	ErrNoHeaderRow       = errors.New("could not find header row")
	ErrMissingGPSColumns = errors.New("missing required GPS columns")
)

// Format identifies a supported logger file format.
type Format int

const (
	FormatUnknown Format = iota
	FormatUBX
	FormatVBO
	FormatMetaCSV
	FormatChannelCSV
	FormatNMEA
)

var formatNames = map[Format]string{
	FormatUnknown:    "unknown",
	FormatUBX:        "ubx",
	FormatVBO:        "vbo",
	FormatMetaCSV:    "meta-csv",
	FormatChannelCSV: "channel-csv",
	FormatNMEA:       "nmea",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "unknown"
}

// ParseFormat maps a stored format name back to its Format.
func ParseFormat(name string) Format {
	for f, n := range formatNames {
		if n == name {
			return f
		}
	}
	return FormatUnknown
}

// sniff prefix limits. Detection must never require a full parse.
const (
	sniffBinaryBytes = 1024
	sniffTextBytes   = 2048
	sniffMaxLines    = 50
)

// DetectFormat inspects a bounded prefix of buf and picks the decoder.
// The binary sniffer runs first and the permissive text sniffers last,
// so binary garbage decoded as text cannot misfire: first match wins.
func DetectFormat(buf []byte) Format {
	switch {
	case sniffUBX(buf):
		return FormatUBX
	case sniffVBO(buf):
		return FormatVBO
	case sniffMetaCSV(buf):
		return FormatMetaCSV
	case sniffChannelCSV(buf):
		return FormatChannelCSV
	case sniffNMEA(buf):
		return FormatNMEA
	}
	return FormatUnknown
}

// Parse routes buf to the matching decoder and post-processes the
// result. Derived G-force series are added when the source did not
// supply accelerometer channels.
func Parse(buf []byte) (*telemetry.ParsedData, Format, error) {
	format := DetectFormat(buf)
	data, err := ParseAs(buf, format)
	if err != nil {
		return nil, format, err
	}
	return data, format, nil
}

// ParseAs decodes buf with a specific decoder, bypassing detection.
func ParseAs(buf []byte, format Format) (*telemetry.ParsedData, error) {
	var (
		data *telemetry.ParsedData
		err  error
	)
	switch format {
	case FormatUBX:
		data, err = parseUBX(buf)
	case FormatVBO:
		data, err = parseVBO(buf)
	case FormatMetaCSV:
		data, err = parseMetaCSV(buf)
	case FormatChannelCSV:
		data, err = parseChannelCSV(buf)
	case FormatNMEA:
		data, err = parseNMEA(buf)
	default:
		return nil, ErrUnknownFormat
	}
	if err != nil {
		return nil, err
	}
	deriveAcceleration(data)
	return data, nil
}
