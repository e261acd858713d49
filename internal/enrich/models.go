package enrich

import (
	"time"

	"leadbot/internal/calls"
	"leadbot/internal/contacts"
)

// Lead is one row from a tracker. Extra carries columns the enricher does not
// interpret so they survive a read-enrich-write round trip.
type Lead struct {
	ID     string            `json:"id,omitempty"`
	Name   string            `json:"name,omitempty"`
	Phone  string            `json:"phone"`
	Source string            `json:"source,omitempty"`
	Rep    string            `json:"rep,omitempty"`
	Extra  map[string]string `json:"extra,omitempty"`

	RC          *RC         `json:"rc,omitempty"`
	Direction   Action      `json:"direction,omitempty"`
	Temperature Temperature `json:"temperature,omitempty"`
}

// RC is the per-lead view of a contact aggregate. It is read-only once
// attached.
type RC struct {
	Phone string `json:"phone"`

	SMSYesterday          int `json:"sms_yesterday"`
	SMSToday              int `json:"sms_today"`
	CallsYesterday        int `json:"calls_yesterday"`
	CallsToday            int `json:"calls_today"`
	VMYesterday           int `json:"vm_yesterday"`
	VMToday               int `json:"vm_today"`
	RepliesYesterday      int `json:"replies_yesterday"`
	RepliesToday          int `json:"replies_today"`
	InboundCallsYesterday int `json:"inbound_calls_yesterday"`
	InboundCallsToday     int `json:"inbound_calls_today"`

	SMSTotal          int `json:"sms_total"`
	CallsTotal        int `json:"calls_total"`
	VMTotal           int `json:"vm_total"`
	RepliesTotal      int `json:"replies_total"`
	InboundCallsTotal int `json:"inbound_calls_total"`

	LongestCallYesterday int    `json:"longest_call_yesterday"`
	LongestCallToday     int    `json:"longest_call_today"`
	LongestCallEver      int    `json:"longest_call_ever"`
	LongestCall          string `json:"longest_call"`

	LastCall          Moment          `json:"last_call"`
	LastCallResult    string          `json:"last_call_result,omitempty"`
	LastCallDuration  string          `json:"last_call_duration"`
	LastCallDirection calls.Direction `json:"last_call_direction,omitempty"`
	LastSMS           Moment          `json:"last_sms"`
	LastSMSStatus     string          `json:"last_sms_status,omitempty"`
	LastReply         Moment          `json:"last_reply"`

	HasReplied     bool `json:"has_replied"`
	HasLongCall    bool `json:"has_long_call"`
	HasInboundCall bool `json:"has_inbound_call"`
	AllSMSFailed   bool `json:"all_sms_failed"`
	HasFailedSMS   bool `json:"has_failed_sms"`

	CallHistory  []CallView  `json:"call_history"`
	SMSHistory   []SMSView   `json:"sms_history"`
	ReplyHistory []ReplyView `json:"reply_history"`
}

// Moment is a timestamp with its display forms. Zero times render as
// "Never" in both.
type Moment struct {
	At       time.Time `json:"at"`
	Ago      string    `json:"ago"`
	Absolute string    `json:"absolute"`
}

type CallView struct {
	contacts.CallEntry
	Moment Moment `json:"moment"`
}

type SMSView struct {
	contacts.SMSEntry
	Moment Moment `json:"moment"`
}

type ReplyView struct {
	contacts.ReplyEntry
	Moment Moment `json:"moment"`
}
