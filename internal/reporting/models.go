package reporting

// ActivityRequest selects an inclusive range of day buckets (YYYY-MM-DD).
type ActivityRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DayActivity is what the event log holds for one day bucket.
type DayActivity struct {
	Day string `json:"day"`

	Calls         int `json:"calls"`
	InboundCalls  int `json:"inbound_calls"`
	OutboundCalls int `json:"outbound_calls"`
	Voicemails    int `json:"voicemails"`
	LongCalls     int `json:"long_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	SMSSent   int `json:"sms_sent"`
	SMSFailed int `json:"sms_failed"`
	Replies   int `json:"replies"`

	// Contacts is the number of distinct phones touched that day.
	Contacts int `json:"contacts"`

	// Skipped counts rows whose phone does not normalize.
	Skipped int `json:"skipped"`
}

type ActivitySummary struct {
	From string        `json:"from"`
	To   string        `json:"to"`
	Days []DayActivity `json:"days"`

	Totals DayActivity `json:"totals"`

	// ConnectionRate is long calls over outbound calls.
	ConnectionRate float64 `json:"connection_rate"`
	// ReplyRate is replies over texts sent.
	ReplyRate float64 `json:"reply_rate"`
}
