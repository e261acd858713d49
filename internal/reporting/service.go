package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"leadbot/internal/contacts"
	"leadbot/internal/eventlog"
	"leadbot/internal/timefmt"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// MaxDays bounds one activity request.
const MaxDays = 31

// Service summarizes the event log. It reads the same rows the contact index
// does and types them with the same classifiers, so the numbers agree with
// what reps see on their leads.
type Service struct {
	repo eventlog.Repository
	cfg  contacts.BuildConfig
}

func NewService(repo eventlog.Repository, cfg contacts.BuildConfig) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{repo: repo, cfg: cfg}
}

func (s *Service) Activity(ctx context.Context, req ActivityRequest) (ActivitySummary, error) {
	if s.repo == nil {
		return ActivitySummary{}, errors.New("reporting: repository not configured")
	}
	days, err := s.days(req)
	if err != nil {
		return ActivitySummary{}, err
	}

	out := ActivitySummary{From: req.From, To: req.To, Days: make([]DayActivity, 0, len(days))}
	for _, day := range days {
		d, err := s.day(ctx, day)
		if err != nil {
			return ActivitySummary{}, err
		}
		out.Days = append(out.Days, d)
		out.Totals.add(d)
	}
	out.Totals.Day = ""
	if out.Totals.Calls > 0 {
		out.Totals.AverageDurationSeconds = out.Totals.TotalDurationSeconds / out.Totals.Calls
	}
	if out.Totals.OutboundCalls > 0 {
		out.ConnectionRate = float64(out.Totals.LongCalls) / float64(out.Totals.OutboundCalls)
	}
	if out.Totals.SMSSent > 0 {
		out.ReplyRate = float64(out.Totals.Replies) / float64(out.Totals.SMSSent)
	}
	return out, nil
}

func (s *Service) days(req ActivityRequest) ([]string, error) {
	from, _, ok := timefmt.DayRange(req.From, s.cfg.Location)
	if !ok {
		return nil, eris.Wrapf(ErrInvalidRequest, "reporting: from %q", req.From)
	}
	to, _, ok := timefmt.DayRange(req.To, s.cfg.Location)
	if !ok {
		return nil, eris.Wrapf(ErrInvalidRequest, "reporting: to %q", req.To)
	}
	if to.Before(from) {
		return nil, eris.Wrap(ErrInvalidRequest, "reporting: to before from")
	}

	var out []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if len(out) == MaxDays {
			return nil, eris.Wrapf(ErrInvalidRequest, "reporting: range exceeds %d days", MaxDays)
		}
		out = append(out, timefmt.DayKey(d, s.cfg.Location))
	}
	return out, nil
}

func (s *Service) day(ctx context.Context, day string) (DayActivity, error) {
	callRows, err := s.repo.ListCalls(ctx, day)
	if err != nil {
		return DayActivity{}, err
	}
	smsRows, err := s.repo.ListSMS(ctx, day)
	if err != nil {
		return DayActivity{}, err
	}

	out := DayActivity{Day: day}
	seen := map[string]struct{}{}

	for _, row := range callRows {
		rec, ok := row.ToRecord(s.cfg.Classifier, s.cfg.Location)
		if !ok {
			out.Skipped++
			continue
		}
		seen[rec.Phone] = struct{}{}
		out.Calls++
		out.TotalDurationSeconds += rec.DurationSeconds
		if rec.Inbound() {
			out.InboundCalls++
		} else {
			out.OutboundCalls++
		}
		if rec.IsVoicemail {
			out.Voicemails++
		}
		if rec.IsLongCall {
			out.LongCalls++
		}
	}
	if out.Calls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.Calls
	}

	for _, row := range smsRows {
		rec, ok := row.ToRecord(s.cfg.Failure, s.cfg.Location)
		if !ok {
			out.Skipped++
			continue
		}
		seen[rec.Phone] = struct{}{}
		if rec.IsReply() {
			out.Replies++
			continue
		}
		out.SMSSent++
		if rec.IsFailed {
			out.SMSFailed++
		}
	}

	out.Contacts = len(seen)
	return out, nil
}

func (a *DayActivity) add(d DayActivity) {
	a.Calls += d.Calls
	a.InboundCalls += d.InboundCalls
	a.OutboundCalls += d.OutboundCalls
	a.Voicemails += d.Voicemails
	a.LongCalls += d.LongCalls
	a.TotalDurationSeconds += d.TotalDurationSeconds
	a.SMSSent += d.SMSSent
	a.SMSFailed += d.SMSFailed
	a.Replies += d.Replies
	a.Contacts += d.Contacts
	a.Skipped += d.Skipped
}
