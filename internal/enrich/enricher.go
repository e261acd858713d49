package enrich

import (
	"slices"
	"time"

	"leadbot/internal/contacts"
	"leadbot/internal/phone"
	"leadbot/internal/timefmt"
)

// DefaultHistoryLimit is how many recent entries of each kind a lead shows.
const DefaultHistoryLimit = 5

type Options struct {
	Now          time.Time
	Location     *time.Location
	HistoryLimit int
	Rules        RuleConfig
}

func (o Options) withDefaults() Options {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.Rules.TextFirstSources == nil {
		o.Rules = DefaultRuleConfig()
	}
	return o
}

// Enrich attaches an RC view, a direction and a temperature to every lead in
// place. A lead whose phone cannot be indexed gets the zero view; one bad
// lead never stops the batch.
func Enrich(leads []Lead, idx contacts.Index, opts Options) {
	opts = opts.withDefaults()
	for i := range leads {
		enrichOne(&leads[i], idx, opts)
	}
}

func enrichOne(l *Lead, idx contacts.Index, opts Options) {
	key := phone.Normalize(l.Phone)
	var agg contacts.Aggregate
	if key == "" {
		agg = contacts.Zero("")
	} else {
		agg = idx.Get(key)
	}
	rc := View(agg, opts)
	l.RC = &rc
	l.Direction = Direction(*l, rc, opts.Rules)
	l.Temperature = TemperatureOf(rc)
}

// View derives the per-lead view from an aggregate.
func View(a contacts.Aggregate, opts Options) RC {
	opts = opts.withDefaults()
	m := func(t time.Time) Moment { return moment(t, opts.Now, opts.Location) }

	rc := RC{
		Phone: a.Phone,

		SMSYesterday:          a.SMSYesterday,
		SMSToday:              a.SMSToday,
		CallsYesterday:        a.CallsYesterday,
		CallsToday:            a.CallsToday,
		VMYesterday:           a.VMYesterday,
		VMToday:               a.VMToday,
		RepliesYesterday:      a.RepliesYesterday,
		RepliesToday:          a.RepliesToday,
		InboundCallsYesterday: a.InboundCallsYesterday,
		InboundCallsToday:     a.InboundCallsToday,

		SMSTotal:          a.SMSYesterday + a.SMSToday,
		CallsTotal:        a.CallsYesterday + a.CallsToday,
		VMTotal:           a.VMYesterday + a.VMToday,
		RepliesTotal:      a.RepliesYesterday + a.RepliesToday,
		InboundCallsTotal: a.InboundCallsYesterday + a.InboundCallsToday,

		LongestCallYesterday: a.LongestCallYesterday,
		LongestCallToday:     a.LongestCallToday,
		LongestCallEver:      a.LongestCallEver,
		LongestCall:          timefmt.FormatDuration(a.LongestCallEver),

		LastCall:          m(a.LastCall),
		LastCallResult:    a.LastCallResult,
		LastCallDuration:  timefmt.FormatDuration(a.LastCallDuration),
		LastCallDirection: a.LastCallDirection,
		LastSMS:           m(a.LastSMS),
		LastSMSStatus:     a.LastSMSStatus,
		LastReply:         m(a.LastReply),

		HasLongCall:    a.HasLongCall,
		HasInboundCall: a.HasInboundCall,
	}
	rc.HasReplied = rc.RepliesTotal > 0

	calls := recent(a.CallHistory, opts.HistoryLimit, func(e contacts.CallEntry) time.Time { return e.Timestamp })
	rc.CallHistory = make([]CallView, len(calls))
	for i, e := range calls {
		rc.CallHistory[i] = CallView{CallEntry: e, Moment: m(e.Timestamp)}
	}

	texts := recent(a.SMSHistory, opts.HistoryLimit, func(e contacts.SMSEntry) time.Time { return e.Timestamp })
	rc.SMSHistory = make([]SMSView, len(texts))
	failed := 0
	for i, e := range texts {
		rc.SMSHistory[i] = SMSView{SMSEntry: e, Moment: m(e.Timestamp)}
		if e.IsFailed {
			failed++
		}
	}
	rc.HasFailedSMS = failed > 0
	rc.AllSMSFailed = rc.SMSTotal > 0 && len(texts) > 0 && failed == len(texts)

	replies := recent(a.ReplyHistory, opts.HistoryLimit, func(e contacts.ReplyEntry) time.Time { return e.Timestamp })
	rc.ReplyHistory = make([]ReplyView, len(replies))
	for i, e := range replies {
		rc.ReplyHistory[i] = ReplyView{ReplyEntry: e, Moment: m(e.Timestamp)}
	}
	return rc
}

// recent returns up to limit entries, newest first. Entries without a
// timestamp sort last; ties keep their original order.
func recent[T any](entries []T, limit int, at func(T) time.Time) []T {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, func(a, b T) int {
		ta, tb := at(a), at(b)
		switch {
		case ta.IsZero() && tb.IsZero():
			return 0
		case ta.IsZero():
			return 1
		case tb.IsZero():
			return -1
		default:
			return tb.Compare(ta)
		}
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func moment(t, now time.Time, loc *time.Location) Moment {
	return Moment{At: t, Ago: timefmt.TimeAgo(t, now), Absolute: timefmt.FormatAbsolute(t, loc)}
}
