package tracker

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"leadbot/internal/calls"
	"leadbot/internal/sms"
	"leadbot/internal/timefmt"
)

type Kind string

const (
	KindCalls Kind = "calls"
	KindSMS   Kind = "sms"
)

// Activity holds rows read from an exported activity sheet. Only the slice
// for the requested kind is filled.
type Activity struct {
	Calls []calls.Row
	SMS   []sms.Row
}

// ReadActivity reads a call or SMS activity sheet in the phone system's
// positional export layout. A leading header row is skipped. Call date and
// time cells are rewritten in the layouts a sync stores so that imported and
// synced rows share dedup keys.
func ReadActivity(path string, opts SheetOptions, kind Kind) (Activity, error) {
	rows, err := ReadRows(path, opts)
	if err != nil {
		return Activity{}, err
	}
	if len(rows) > 0 && strings.EqualFold(firstCell(rows[0]), "direction") {
		rows = rows[1:]
	}

	var out Activity
	for _, cells := range rows {
		if blank(cells) {
			continue
		}
		switch kind {
		case KindCalls:
			out.Calls = append(out.Calls, canonicalCall(calls.RowFromCells(cells, calls.DefaultColumns)))
		case KindSMS:
			out.SMS = append(out.SMS, sms.RowFromCells(cells, sms.DefaultColumns))
		default:
			return Activity{}, eris.Errorf("tracker: unknown activity kind %q", kind)
		}
	}
	return out, nil
}

// canonicalCall leaves rows whose date does not parse untouched. Layouts are
// applied in UTC on both sides, so no zone shift happens.
func canonicalCall(r calls.Row) calls.Row {
	ts := timefmt.Combine(r.Date, r.Time, time.UTC)
	if ts.IsZero() {
		return r
	}
	_, _, _, clock := timefmt.ParseClock(r.Time)
	hasClock := ts.Hour() != 0 || ts.Minute() != 0 || ts.Second() != 0
	r.Date = ts.Format(timefmt.RowDateLayout)
	if clock || (strings.TrimSpace(r.Time) == "" && hasClock) {
		r.Time = ts.Format(timefmt.RowClockLayout)
	}
	return r
}

func firstCell(cells []string) string {
	if len(cells) == 0 {
		return ""
	}
	return cells[0]
}
