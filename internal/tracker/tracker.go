// Package tracker reads and writes the spreadsheet trackers reps work from:
// lead sheets, exported call/SMS activity sheets and enriched lead sheets.
package tracker

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"leadbot/internal/timefmt"
)

// SheetOptions picks a sheet by name, or by index when Name is empty.
type SheetOptions struct {
	Name  string
	Index int
}

// ReadRows returns every row of a sheet as strings.
func ReadRows(path string, opts SheetOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "tracker: open file")
	}
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rows = append(rows, rowToStrings(row, f.Date1904))
	}
	return rows, nil
}

func getSheet(f *xlsx.File, opts SheetOptions) (*xlsx.Sheet, error) {
	if opts.Name != "" {
		sheet, ok := f.Sheet[opts.Name]
		if !ok {
			return nil, eris.Errorf("tracker: sheet %q not found", opts.Name)
		}
		return sheet, nil
	}
	if opts.Index < 0 || opts.Index >= len(f.Sheets) {
		return nil, eris.Errorf("tracker: sheet index %d out of range (file has %d sheets)", opts.Index, len(f.Sheets))
	}
	return f.Sheets[opts.Index], nil
}

func rowToStrings(row *xlsx.Row, date1904 bool) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cellString(cell, date1904)
	}
	return cells
}

// cellString renders date and time cells in the stored row layouts instead of
// the sheet's display format, which timefmt cannot read back. A serial with
// no whole days is a clock or a duration: "h:mm AM/PM" formats read as a
// clock, anything else as H:MM:SS, which parses as either.
func cellString(cell *xlsx.Cell, date1904 bool) string {
	if !cell.IsTime() {
		return strings.TrimSpace(cell.String())
	}
	serial, err := cell.Float()
	if err != nil || math.IsNaN(serial) || serial < 0 {
		return strings.TrimSpace(cell.String())
	}

	days := math.Floor(serial)
	secs := int(math.Round((serial - days) * 86400))
	if secs >= 86400 {
		days++
		secs = 0
	}

	if days == 0 {
		if strings.Contains(strings.ToLower(cell.GetNumberFormat()), "am/pm") {
			clock := time.Date(2000, 1, 1, 0, 0, secs, 0, time.UTC)
			return clock.Format(timefmt.RowClockLayout)
		}
		return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
	}

	t := xlsx.TimeFromExcelTime(days, date1904)
	if secs == 0 {
		return t.Format(timefmt.RowDateLayout)
	}
	return t.Add(time.Duration(secs) * time.Second).Format(timefmt.RowDateTimeLayout)
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
