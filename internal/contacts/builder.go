package contacts

import (
	"time"

	"leadbot/internal/calls"
	"leadbot/internal/sms"
	"leadbot/internal/timefmt"
)

// DayRows is one day bucket of raw event rows.
type DayRows struct {
	Calls []calls.Row
	SMS   []sms.Row
}

// BuildConfig carries the classifiers and timezone used to type rows.
type BuildConfig struct {
	Classifier calls.Classifier
	Failure    sms.FailureMatcher
	Location   *time.Location
}

func DefaultBuildConfig(loc *time.Location) BuildConfig {
	return BuildConfig{
		Classifier: calls.NewClassifier(calls.DefaultClassifierConfig()),
		Failure:    sms.NewFailureMatcher(sms.DefaultFailureVocabulary),
		Location:   loc,
	}
}

// Build folds two day buckets into a per-phone index. Yesterday is folded
// before today, each in row order, so ties on last-event timestamps resolve
// the same way on every run. Rows whose phone does not normalize are skipped.
// Build has no side effects beyond the returned map.
func Build(today, yesterday DayRows, cfg BuildConfig) Index {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	idx := Index{}
	idx.fold(yesterday, BucketYesterday, cfg)
	idx.fold(today, BucketToday, cfg)
	return idx
}

func (idx Index) fold(rows DayRows, bucket Bucket, cfg BuildConfig) {
	for _, row := range rows.Calls {
		rec, ok := row.ToRecord(cfg.Classifier, cfg.Location)
		if !ok {
			continue
		}
		idx.entry(rec.Phone).addCall(rec, bucket)
	}
	for _, row := range rows.SMS {
		rec, ok := row.ToRecord(cfg.Failure, cfg.Location)
		if !ok {
			continue
		}
		a := idx.entry(rec.Phone)
		if rec.IsReply() {
			a.addReply(rec, bucket)
		} else {
			a.addSMS(rec, bucket)
		}
	}
}

func (idx Index) entry(key string) *Aggregate {
	a, ok := idx[key]
	if !ok {
		z := Zero(key)
		a = &z
		idx[key] = a
	}
	return a
}

// newer reports whether ts should replace the stored last-event time.
func newer(seen bool, current, ts time.Time) bool {
	return !seen || ts.After(current)
}

func (a *Aggregate) addCall(rec calls.Record, bucket Bucket) {
	if bucket == BucketToday {
		a.CallsToday++
		if rec.IsVoicemail {
			a.VMToday++
		}
		if rec.Inbound() {
			a.InboundCallsToday++
		}
		a.LongestCallToday = max(a.LongestCallToday, rec.DurationSeconds)
	} else {
		a.CallsYesterday++
		if rec.IsVoicemail {
			a.VMYesterday++
		}
		if rec.Inbound() {
			a.InboundCallsYesterday++
		}
		a.LongestCallYesterday = max(a.LongestCallYesterday, rec.DurationSeconds)
	}
	a.LongestCallEver = max(a.LongestCallEver, rec.DurationSeconds)
	a.HasLongCall = a.HasLongCall || rec.IsLongCall
	a.HasInboundCall = a.HasInboundCall || rec.Inbound()

	if newer(a.seenCall, a.LastCall, rec.Timestamp) {
		a.seenCall = true
		a.LastCall = rec.Timestamp
		a.LastCallResult = rec.ResultText
		a.LastCallDuration = rec.DurationSeconds
		a.LastCallDirection = rec.Direction
	}

	a.CallHistory = append(a.CallHistory, CallEntry{
		Timestamp:       rec.Timestamp,
		Bucket:          bucket,
		Direction:       rec.Direction,
		Name:            rec.Name,
		DurationSeconds: rec.DurationSeconds,
		Duration:        timefmt.FormatDuration(rec.DurationSeconds),
		Result:          rec.ResultText,
		IsVoicemail:     rec.IsVoicemail,
		IsLongCall:      rec.IsLongCall,
	})
}

func (a *Aggregate) addSMS(rec sms.Record, bucket Bucket) {
	if bucket == BucketToday {
		a.SMSToday++
	} else {
		a.SMSYesterday++
	}
	if newer(a.seenSMS, a.LastSMS, rec.Timestamp) {
		a.seenSMS = true
		a.LastSMS = rec.Timestamp
		a.LastSMSStatus = rec.Status
	}
	a.SMSHistory = append(a.SMSHistory, SMSEntry{
		Timestamp:     rec.Timestamp,
		Bucket:        bucket,
		Status:        rec.Status,
		DetailedError: rec.DetailedError,
		IsFailed:      rec.IsFailed,
	})
}

func (a *Aggregate) addReply(rec sms.Record, bucket Bucket) {
	if bucket == BucketToday {
		a.RepliesToday++
	} else {
		a.RepliesYesterday++
	}
	if newer(a.seenReply, a.LastReply, rec.Timestamp) {
		a.seenReply = true
		a.LastReply = rec.Timestamp
	}
	a.ReplyHistory = append(a.ReplyHistory, ReplyEntry{Timestamp: rec.Timestamp, Bucket: bucket})
}
