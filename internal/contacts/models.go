package contacts

import (
	"time"

	"leadbot/internal/calls"
)

// Bucket names the day a history entry came from.
type Bucket string

const (
	BucketToday     Bucket = "today"
	BucketYesterday Bucket = "yesterday"
)

type CallEntry struct {
	Timestamp       time.Time       `json:"timestamp"`
	Bucket          Bucket          `json:"bucket"`
	Direction       calls.Direction `json:"direction"`
	Name            string          `json:"name,omitempty"`
	DurationSeconds int             `json:"duration_seconds"`
	Duration        string          `json:"duration"`
	Result          string          `json:"result,omitempty"`
	IsVoicemail     bool            `json:"is_voicemail"`
	IsLongCall      bool            `json:"is_long_call"`
}

type SMSEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	Bucket        Bucket    `json:"bucket"`
	Status        string    `json:"status,omitempty"`
	DetailedError string    `json:"detailed_error,omitempty"`
	IsFailed      bool      `json:"is_failed"`
}

type ReplyEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Bucket    Bucket    `json:"bucket"`
}

// Aggregate is the two-day rollup of activity for one phone key.
//
// Today and yesterday counters come from disjoint inputs and are only summed
// by readers. History lists are unbounded here; the enricher trims them.
// An Aggregate attached to leads is read-only.
type Aggregate struct {
	Phone string `json:"phone"`

	SMSYesterday int `json:"sms_yesterday"`
	SMSToday     int `json:"sms_today"`

	CallsYesterday int `json:"calls_yesterday"`
	CallsToday     int `json:"calls_today"`

	VMYesterday int `json:"vm_yesterday"`
	VMToday     int `json:"vm_today"`

	RepliesYesterday int `json:"replies_yesterday"`
	RepliesToday     int `json:"replies_today"`

	InboundCallsYesterday int `json:"inbound_calls_yesterday"`
	InboundCallsToday     int `json:"inbound_calls_today"`

	LongestCallYesterday int `json:"longest_call_yesterday"`
	LongestCallToday     int `json:"longest_call_today"`
	LongestCallEver      int `json:"longest_call_ever"`

	LastCall          time.Time       `json:"last_call"`
	LastCallResult    string          `json:"last_call_result,omitempty"`
	LastCallDuration  int             `json:"last_call_duration"`
	LastCallDirection calls.Direction `json:"last_call_direction,omitempty"`

	LastSMS       time.Time `json:"last_sms"`
	LastSMSStatus string    `json:"last_sms_status,omitempty"`

	LastReply time.Time `json:"last_reply"`

	CallHistory  []CallEntry  `json:"call_history"`
	SMSHistory   []SMSEntry   `json:"sms_history"`
	ReplyHistory []ReplyEntry `json:"reply_history"`

	HasLongCall    bool `json:"has_long_call"`
	HasInboundCall bool `json:"has_inbound_call"`

	// Set once the first event of each kind is seen, so a row without a
	// timestamp can still fill the last-event fields.
	seenCall, seenSMS, seenReply bool
}

// Zero returns the empty aggregate for phone with non-nil history lists.
func Zero(phone string) Aggregate {
	return Aggregate{
		Phone:        phone,
		CallHistory:  []CallEntry{},
		SMSHistory:   []SMSEntry{},
		ReplyHistory: []ReplyEntry{},
	}
}

// Index maps phone keys to aggregates.
type Index map[string]*Aggregate

// Get returns a copy of the aggregate for an already-normalized key, or the
// zero aggregate.
func (idx Index) Get(key string) Aggregate {
	if a, ok := idx[key]; ok && a != nil {
		return *a
	}
	return Zero(key)
}
