// Package export renders a lap timesheet workbook for download.
package export

import (
	"io"
	"strconv"
	"time"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/timing"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Laps"

// Timespan formats millisecond durations with a clock layout, e.g.
// "04:05.000" for mm:ss.mmm.
type Timespan time.Duration

func (t Timespan) Format(format string) string {
	z := time.Unix(0, 0).UTC()
	return z.Add(time.Duration(t)).Format(format)
}

func lapTime(ms int64) string {
	return Timespan(time.Duration(ms) * time.Millisecond).Format("04:05.000")
}

// Timesheet builds an xlsx workbook from a timing result and writes it
// to w.
func Timesheet(w io.Writer, sessionName string, result timing.Result) error {
	f, err := buildTimesheet(sessionName, result)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func buildTimesheet(sessionName string, result timing.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	if _, err := f.NewSheet(sheetName); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"1c399e"},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
		},
		Font: &excelize.Font{
			Color: "ffffff",
			Bold:  true,
		},
	})
	bestLapStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"3cb03a"},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
		},
		Font: &excelize.Font{
			Bold: true,
		},
	})

	f.SetCellValue(sheetName, "A1", sessionName)

	headers := []string{"Lap", "Time", "S1", "S2", "S3", "Max mph", "Min mph"}
	for i, h := range headers {
		cell := cellRef(i, 2)
		f.SetCellValue(sheetName, cell, h)
	}
	f.SetCellStyle(sheetName, "A2", cellRef(len(headers)-1, 2), headerStyle)

	best := bestLapNumber(result.Laps)
	for li, lap := range result.Laps {
		row := 3 + li
		f.SetCellValue(sheetName, cellRef(0, row), lap.Number)
		f.SetCellValue(sheetName, cellRef(1, row), lapTime(lap.TimeMs))
		if lap.Sectors != nil {
			f.SetCellValue(sheetName, cellRef(2, row), lapTime(lap.Sectors.S1Ms))
			f.SetCellValue(sheetName, cellRef(3, row), lapTime(lap.Sectors.S2Ms))
			f.SetCellValue(sheetName, cellRef(4, row), lapTime(lap.Sectors.S3Ms))
		} else {
			f.SetCellValue(sheetName, cellRef(2, row), "–")
			f.SetCellValue(sheetName, cellRef(3, row), "–")
			f.SetCellValue(sheetName, cellRef(4, row), "–")
		}
		f.SetCellValue(sheetName, cellRef(5, row), round1(lap.MaxSpeedMph))
		f.SetCellValue(sheetName, cellRef(6, row), round1(lap.MinSpeedMph))

		if lap.Number == best {
			f.SetCellStyle(sheetName, cellRef(0, row), cellRef(6, row), bestLapStyle)
		}
	}

	summaryRow := 4 + len(result.Laps)
	if result.OptimalTimeMs > 0 {
		f.SetCellValue(sheetName, cellRef(0, summaryRow), "Optimal")
		f.SetCellValue(sheetName, cellRef(1, summaryRow), lapTime(result.OptimalTimeMs))
		f.SetCellValue(sheetName, cellRef(2, summaryRow), "Delta")
		if result.DeltaToFastestMs >= 0 {
			f.SetCellValue(sheetName, cellRef(3, summaryRow), lapTime(result.DeltaToFastestMs))
		} else {
			// inconsistent sector crossings, report raw
			f.SetCellValue(sheetName, cellRef(3, summaryRow), result.DeltaToFastestMs)
		}
	}

	f.DeleteSheet("Sheet1")
	return f, nil
}

func cellRef(col, row int) string {
	return string(rune('A'+col)) + strconv.Itoa(row)
}

func bestLapNumber(laps []timing.Lap) int {
	best := 0
	var bestTime int64
	for _, lap := range laps {
		if best == 0 || lap.TimeMs < bestTime {
			best = lap.Number
			bestTime = lap.TimeMs
		}
	}
	return best
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
