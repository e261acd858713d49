package sms

import (
	"strings"
	"time"

	"leadbot/internal/calls"
	"leadbot/internal/phone"
	"leadbot/internal/timefmt"
)

// Row is one stored message line in its positional export shape:
// direction, type, messageType, senderPhone, senderName, recipientPhone,
// recipientName, dateTime, segmentCount, status, detailedError.
type Row struct {
	Direction      string `json:"direction" db:"direction"`
	Type           string `json:"type" db:"type"`
	MessageType    string `json:"message_type" db:"message_type"`
	SenderPhone    string `json:"sender_phone" db:"sender_phone"`
	SenderName     string `json:"sender_name" db:"sender_name"`
	RecipientPhone string `json:"recipient_phone" db:"recipient_phone"`
	RecipientName  string `json:"recipient_name" db:"recipient_name"`
	DateTime       string `json:"date_time" db:"date_time"`
	SegmentCount   string `json:"segment_count" db:"segment_count"`
	Status         string `json:"status" db:"status"`
	DetailedError  string `json:"detailed_error" db:"detailed_error"`
}

// Record is the typed view of an SMS row.
type Record struct {
	Direction calls.Direction `json:"direction"`

	// Phone is the counterpart key: the recipient for outbound messages and
	// the sender for inbound ones.
	Phone string `json:"phone"`

	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
	DetailedError string    `json:"detailed_error,omitempty"`
	IsFailed      bool      `json:"is_failed"`
}

// IsReply reports whether the record is an inbound message from the lead.
func (r Record) IsReply() bool { return r.Direction == calls.DirectionInbound }

// Columns maps positional cell indexes of an SMS row.
type Columns struct {
	Direction      int
	Type           int
	MessageType    int
	SenderPhone    int
	SenderName     int
	RecipientPhone int
	RecipientName  int
	DateTime       int
	SegmentCount   int
	Status         int
	DetailedError  int
}

var DefaultColumns = Columns{
	Direction:      0,
	Type:           1,
	MessageType:    2,
	SenderPhone:    3,
	SenderName:     4,
	RecipientPhone: 5,
	RecipientName:  6,
	DateTime:       7,
	SegmentCount:   8,
	Status:         9,
	DetailedError:  10,
}

var Header = []string{
	"Direction", "Type", "Message Type", "Sender Phone", "Sender Name",
	"Recipient Phone", "Recipient Name", "Date/Time", "Segments", "Status", "Detailed Error",
}

func RowFromCells(cells []string, cols Columns) Row {
	at := func(i int) string {
		if i < 0 || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}
	return Row{
		Direction:      at(cols.Direction),
		Type:           at(cols.Type),
		MessageType:    at(cols.MessageType),
		SenderPhone:    at(cols.SenderPhone),
		SenderName:     at(cols.SenderName),
		RecipientPhone: at(cols.RecipientPhone),
		RecipientName:  at(cols.RecipientName),
		DateTime:       at(cols.DateTime),
		SegmentCount:   at(cols.SegmentCount),
		Status:         at(cols.Status),
		DetailedError:  at(cols.DetailedError),
	}
}

func (r Row) Cells() []string {
	return []string{
		r.Direction, r.Type, r.MessageType, r.SenderPhone, r.SenderName,
		r.RecipientPhone, r.RecipientName, r.DateTime, r.SegmentCount, r.Status, r.DetailedError,
	}
}

// DedupKey is creationDateTime + "_" + last 10 sender digits.
func (r Row) DedupKey() string {
	return r.DateTime + "_" + phone.Last10(r.SenderPhone)
}

// CounterpartPhone returns the raw phone of the other party.
func (r Row) CounterpartPhone() string {
	if calls.ParseDirection(r.Direction) == calls.DirectionInbound {
		return r.SenderPhone
	}
	return r.RecipientPhone
}

// ToRecord converts a row into a typed record; ok is false when the
// counterpart phone cannot be normalized.
func (r Row) ToRecord(f FailureMatcher, loc *time.Location) (Record, bool) {
	key := phone.Normalize(r.CounterpartPhone())
	if key == "" {
		return Record{}, false
	}
	return Record{
		Direction:     calls.ParseDirection(r.Direction),
		Phone:         key,
		Timestamp:     timefmt.ParseDate(r.DateTime, loc),
		Status:        r.Status,
		DetailedError: r.DetailedError,
		IsFailed:      f.IsFailed(r.Status),
	}, true
}

// FailureMatcher decides whether a delivery status means the send failed.
type FailureMatcher struct {
	vocab []string
}

// DefaultFailureVocabulary covers the delivery statuses the phone system
// reports for messages that never reached the handset.
var DefaultFailureVocabulary = []string{"failed", "undelivered", "error", "rejected"}

func NewFailureMatcher(vocab []string) FailureMatcher {
	out := make([]string, 0, len(vocab))
	for _, v := range vocab {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return FailureMatcher{vocab: out}
}

func (f FailureMatcher) IsFailed(status string) bool {
	s := strings.ToLower(status)
	for _, v := range f.vocab {
		if strings.Contains(s, v) {
			return true
		}
	}
	return false
}
