package eventlog

import (
	"context"
	"errors"
	"regexp"

	"leadbot/internal/calls"
	"leadbot/internal/sms"
)

// Repository is the append-only store of raw call and SMS rows, bucketed by
// day (YYYY-MM-DD in the configured timezone).
//
// Rows are never updated or deleted. List methods return rows in append
// order so that anything folded over them is reproducible.
//
// Only one writer (the sync engine) should append to a given day at a time;
// that is enforced by the caller's single-flight lock, not here.
type Repository interface {
	AppendCalls(ctx context.Context, day string, rows []calls.Row) error
	AppendSMS(ctx context.Context, day string, rows []sms.Row) error

	ListCalls(ctx context.Context, day string) ([]calls.Row, error)
	ListSMS(ctx context.Context, day string) ([]sms.Row, error)
}

var ErrInvalidDay = errors.New("eventlog: day must be YYYY-MM-DD")

var dayPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func validDay(day string) error {
	if !dayPattern.MatchString(day) {
		return ErrInvalidDay
	}
	return nil
}
