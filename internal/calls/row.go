package calls

import (
	"strings"
	"time"

	"leadbot/internal/phone"
	"leadbot/internal/timefmt"
)

// Columns maps positional cell indexes of a call row. Alternate export
// layouts can be read by passing a different map.
type Columns struct {
	Direction int
	Type      int
	Phone     int
	Name      int
	Date      int
	Time      int
	Action    int
	Result    int
	Reason    int
	Duration  int
}

// DefaultColumns is the layout written by the sync engine.
var DefaultColumns = Columns{
	Direction: 0,
	Type:      1,
	Phone:     2,
	Name:      3,
	Date:      4,
	Time:      5,
	Action:    6,
	Result:    7,
	Reason:    8,
	Duration:  9,
}

// Header is the header line used when call rows are written to a sheet.
var Header = []string{"Direction", "Type", "Phone", "Name", "Date", "Time", "Action", "Result", "Reason", "Duration"}

// RowFromCells reads a positional row. Missing trailing cells read as "".
func RowFromCells(cells []string, cols Columns) Row {
	at := func(i int) string {
		if i < 0 || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}
	return Row{
		Direction: at(cols.Direction),
		Type:      at(cols.Type),
		Phone:     at(cols.Phone),
		Name:      at(cols.Name),
		Date:      at(cols.Date),
		Time:      at(cols.Time),
		Action:    at(cols.Action),
		Result:    at(cols.Result),
		Reason:    at(cols.Reason),
		Duration:  at(cols.Duration),
	}
}

// Cells returns the row in DefaultColumns order.
func (r Row) Cells() []string {
	return []string{r.Direction, r.Type, r.Phone, r.Name, r.Date, r.Time, r.Action, r.Result, r.Reason, r.Duration}
}

// DedupKey identifies a call for re-ingestion checks:
// date + "_" + time + "_" + last 10 phone digits. Two distinct calls to the
// same number within the same second collide; that approximation is accepted.
func (r Row) DedupKey() string {
	return r.Date + "_" + r.Time + "_" + phone.Last10(r.Phone)
}

// ToRecord converts a row into a classified record. ok is false when the
// counterpart phone cannot be normalized, in which case the row must be
// skipped by indexers.
func (r Row) ToRecord(c Classifier, loc *time.Location) (Record, bool) {
	key := phone.Normalize(r.Phone)
	if key == "" {
		return Record{}, false
	}
	dir := ParseDirection(r.Direction)
	dur := timefmt.ParseDuration(r.Duration)
	inbound := dir == DirectionInbound

	return Record{
		Direction:       dir,
		Phone:           key,
		Name:            r.Name,
		Timestamp:       timefmt.Combine(r.Date, r.Time, loc),
		DurationSeconds: dur,
		ResultText:      r.Result,
		Action:          r.Action,
		IsVoicemail:     c.IsVoicemail(r.Result, dur, inbound),
		IsLongCall:      c.IsLongCall(dur),
	}, true
}
