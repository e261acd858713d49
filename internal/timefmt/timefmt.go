// Package timefmt turns the loosely typed date, time and duration cells found
// in call and SMS exports into canonical values, and formats them for display.
//
// Every function here is pure and fails soft: unparseable input yields the zero
// time, 0 seconds or "Never" rather than an error.
package timefmt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DayLayout is the layout of day bucket keys.
const DayLayout = "2006-01-02"

// Layouts of the date and time cells in stored activity rows. They match the
// phone system's own CSV export, and dedup keys are built from them.
const (
	RowDateLayout     = "1/2/2006"
	RowClockLayout    = "3:04:05 PM"
	RowDateTimeLayout = "1/2/2006 3:04:05 PM"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DayLayout,
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"Mon Jan 2 2006",
}

var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
	"3:04:05PM",
	"3:04PM",
	"3:04:05 pm",
	"3:04 pm",
}

// ParseDate parses a date-ish cell. Strings without a zone are read in loc.
// The zero time is returned when nothing matches.
func ParseDate(v any, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	switch d := v.(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return d
	case *time.Time:
		if d == nil {
			return time.Time{}
		}
		return *d
	case string:
		return parseDateString(d, loc)
	case fmt.Stringer:
		return parseDateString(d.String(), loc)
	default:
		return time.Time{}
	}
}

func parseDateString(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	// JS Date.toString() appends " (Zone Name)".
	if i := strings.Index(s, " ("); i > 0 {
		s = s[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseClock extracts hours, minutes and seconds from a time-of-day cell.
func ParseClock(v any) (h, m, s int, ok bool) {
	switch c := v.(type) {
	case nil:
		return 0, 0, 0, false
	case time.Time:
		if c.IsZero() {
			return 0, 0, 0, false
		}
		return c.Hour(), c.Minute(), c.Second(), true
	case *time.Time:
		if c == nil || c.IsZero() {
			return 0, 0, 0, false
		}
		return c.Hour(), c.Minute(), c.Second(), true
	case time.Duration:
		total := int(c / time.Second)
		return total / 3600, (total % 3600) / 60, total % 60, true
	case string:
		str := strings.TrimSpace(c)
		if str == "" {
			return 0, 0, 0, false
		}
		for _, layout := range clockLayouts {
			if t, err := time.Parse(layout, str); err == nil {
				return t.Hour(), t.Minute(), t.Second(), true
			}
		}
		// A full timestamp in the time column still carries a clock.
		if t := parseDateString(str, time.UTC); !t.IsZero() {
			return t.Hour(), t.Minute(), t.Second(), true
		}
	}
	return 0, 0, 0, false
}

// Combine joins a date cell and an optional time-of-day cell into one
// timestamp. The calendar date comes from datePart; when timePart parses, its
// hours, minutes and seconds replace the date's clock. A date that does not
// parse yields the zero time.
func Combine(datePart, timePart any, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	d := ParseDate(datePart, loc)
	if d.IsZero() {
		return time.Time{}
	}
	h, m, s, ok := ParseClock(timePart)
	if !ok {
		return d
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, s, 0, d.Location())
}

// ParseDuration converts a duration cell to whole seconds.
//
// Accepted forms: "H:MM:SS", "M:SS", a bare integer of seconds, numeric
// values, time.Duration, and a time-of-day value read as H:MM(:SS). Values
// mentioning "progress", empty cells and anything unparseable count as 0.
func ParseDuration(raw any) int {
	switch v := raw.(type) {
	case nil:
		return 0
	case int:
		return max(v, 0)
	case int64:
		return int(max(v, 0))
	case float64:
		if math.IsNaN(v) || v <= 0 {
			return 0
		}
		return int(v)
	case time.Duration:
		return int(max(v, 0) / time.Second)
	case time.Time:
		if v.IsZero() {
			return 0
		}
		return v.Hour()*3600 + v.Minute()*60 + v.Second()
	case string:
		return parseDurationString(v)
	default:
		return parseDurationString(fmt.Sprint(v))
	}
}

func parseDurationString(s string) int {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || strings.Contains(s, "progress") {
		return 0
	}

	parts := strings.Split(s, ":")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			if len(parts) == 1 {
				if f, ferr := strconv.ParseFloat(p, 64); ferr == nil && f > 0 {
					return int(f)
				}
			}
			return 0
		}
		nums = append(nums, n)
	}

	switch len(nums) {
	case 1:
		return nums[0]
	case 2:
		return nums[0]*60 + nums[1]
	case 3:
		return nums[0]*3600 + nums[1]*60 + nums[2]
	default:
		return 0
	}
}

// FormatDuration renders seconds as "M:SS", or "H:MM:SS" from one hour up.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0:00"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// TimeAgo describes t relative to now in coarse human buckets.
func TimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	diff := now.Sub(t)
	if diff < time.Minute {
		return "Just now"
	}
	if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	}
	if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	}
	days := int(diff / (24 * time.Hour))
	switch {
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	case days < 30:
		return fmt.Sprintf("%dw ago", days/7)
	default:
		return fmt.Sprintf("%dmo ago", days/30)
	}
}

// FormatAbsolute renders t in loc as "Oct 15, 3:04 PM".
func FormatAbsolute(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "Never"
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("Jan 2, 3:04 PM")
}

// DayKey returns the YYYY-MM-DD bucket of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DayLayout)
}

// Yesterday returns the bucket key for the day before t in loc.
func Yesterday(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.AddDate(0, 0, -1).Format(DayLayout)
}

// DayRange returns the [start, end) instants of the bucket key in loc.
func DayRange(day string, loc *time.Location) (time.Time, time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(DayLayout, day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, start.AddDate(0, 0, 1), true
}
