package logparse

import (
	"encoding/binary"
	"time"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/telemetry"
)

// u-blox UBX framing: two sync bytes, class, id, little-endian 16-bit
// payload length, payload, then a two-byte Fletcher checksum over
// class..payload. Only NAV-PVT frames are interpreted; everything else
// is skipped once correctly framed.
const (
	ubxSync1 = 0xB5
	ubxSync2 = 0x62

	ubxClassNav  = 0x01
	ubxIDNavPVT  = 0x07
	ubxNavPVTLen = 92

	ubxMaxPayload = 4096
)

// NAV-PVT validity bitmask: date and time flags must both be set.
const ubxValidDateTime = 0x03

const msPerDay = 24 * 60 * 60 * 1000

func sniffUBX(buf []byte) bool {
	limit := len(buf)
	if limit > sniffBinaryBytes {
		limit = sniffBinaryBytes
	}
	for i := 0; i+6 <= limit; i++ {
		if buf[i] != ubxSync1 || buf[i+1] != ubxSync2 {
			continue
		}
		length := int(binary.LittleEndian.Uint16(buf[i+4 : i+6]))
		if length <= ubxMaxPayload {
			return true
		}
	}
	return false
}

func ubxChecksum(region []byte) (byte, byte) {
	var ckA, ckB byte
	for _, b := range region {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

func parseUBX(buf []byte) (*telemetry.ParsedData, error) {
	b := newStreamBuilder(SpeedCarryPrevious)
	b.data.AddField(telemetry.FieldSatellites, 0)
	b.data.AddField(telemetry.FieldAltitude, 1)

	var (
		haveBase   bool
		baseMs     int64
		lastRawMs  int64
		wrapOffset int64
	)

	i := 0
	for i+8 <= len(buf) {
		if buf[i] != ubxSync1 || buf[i+1] != ubxSync2 {
			i++
			continue
		}
		length := int(binary.LittleEndian.Uint16(buf[i+4 : i+6]))
		end := i + 6 + length + 2
		if length > ubxMaxPayload || end > len(buf) {
			i++
			continue
		}
		ckA, ckB := ubxChecksum(buf[i+2 : i+6+length])
		if ckA != buf[end-2] || ckB != buf[end-1] {
			// Corrupted frame: advance a single byte and rescan for the
			// sync sequence rather than skipping the claimed length.
			i++
			continue
		}

		if buf[i+2] == ubxClassNav && buf[i+3] == ubxIDNavPVT && length == ubxNavPVTLen {
			payload := buf[i+6 : i+6+length]
			sample, rawMs, startTime, ok := decodeNavPVT(payload)
			if ok {
				if !haveBase {
					baseMs = rawMs
					lastRawMs = rawMs
					haveBase = true
					b.data.StartTime = startTime
				}
				// UTC time of day wraps at midnight; re-baseline forward
				// instead of letting elapsed time go negative.
				if rawMs < lastRawMs {
					wrapOffset += msPerDay
				}
				lastRawMs = rawMs
				sample.TimeMs = rawMs - baseMs + wrapOffset
				b.add(sample)
			}
		}
		i = end
	}

	return b.finish()
}

// decodeNavPVT extracts one fix from a 92-byte NAV-PVT payload.
// Rejected when the fix is below 2D or the date/time validity flags are
// not both set.
func decodeNavPVT(p []byte) (telemetry.Sample, int64, time.Time, bool) {
	var s telemetry.Sample

	valid := p[11]
	fixType := p[20]
	if fixType < 2 || valid&ubxValidDateTime != ubxValidDateTime {
		return s, 0, time.Time{}, false
	}

	year := int(binary.LittleEndian.Uint16(p[4:6]))
	month := int(p[6])
	day := int(p[7])
	hour := int64(p[8])
	minute := int64(p[9])
	second := int64(p[10])
	nano := int64(int32(binary.LittleEndian.Uint32(p[16:20])))

	rawMs := (hour*3600+minute*60+second)*1000 + nano/1_000_000

	s.Lat = float64(int32(binary.LittleEndian.Uint32(p[28:32]))) * 1e-7
	s.Lon = float64(int32(binary.LittleEndian.Uint32(p[24:28]))) * 1e-7
	s.SetSpeedMps(float64(int32(binary.LittleEndian.Uint32(p[60:64]))) / 1000.0)
	s.SetHeading(float64(int32(binary.LittleEndian.Uint32(p[64:68]))) * 1e-5)
	s.SetField(telemetry.FieldSatellites, float64(p[23]))
	s.SetField(telemetry.FieldAltitude, float64(int32(binary.LittleEndian.Uint32(p[36:40])))/1000.0)

	start := time.Date(year, time.Month(month), day,
		int(hour), int(minute), int(second), 0, time.UTC)
	return s, rawMs, start, true
}
