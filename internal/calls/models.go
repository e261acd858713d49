package calls

import (
	"strings"
	"time"
)

// Direction of a call or message relative to the company line.
type Direction string

const (
	DirectionInbound  Direction = "Inbound"
	DirectionOutbound Direction = "Outbound"
)

// ParseDirection maps the direction cell case-insensitively. Anything that is
// not inbound is treated as outbound, matching how the phone system exports.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), "inbound") {
		return DirectionInbound
	}
	return DirectionOutbound
}

// Row is one stored call-log line in its positional export shape:
// direction, type, phone, name, date, time, action, result, reason, duration.
type Row struct {
	Direction string `json:"direction" db:"direction"`
	Type      string `json:"type" db:"type"`
	Phone     string `json:"phone" db:"phone"`
	Name      string `json:"name" db:"name"`
	Date      string `json:"date" db:"date"`
	Time      string `json:"time" db:"time"`
	Action    string `json:"action" db:"action"`
	Result    string `json:"result" db:"result"`
	Reason    string `json:"reason" db:"reason"`
	Duration  string `json:"duration" db:"duration"`
}

// Record is the typed view of a call row used for aggregation.
// It is rebuilt from rows on every index build and never persisted.
type Record struct {
	Direction Direction `json:"direction"`

	// Phone is the canonical 10-digit key of the counterpart.
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`

	// Timestamp is zero when the row's date did not parse.
	Timestamp time.Time `json:"timestamp"`

	DurationSeconds int    `json:"duration_seconds"`
	ResultText      string `json:"result"`
	Action          string `json:"action,omitempty"`

	IsVoicemail bool `json:"is_voicemail"`
	IsLongCall  bool `json:"is_long_call"`
}

func (r Record) Inbound() bool { return r.Direction == DirectionInbound }
