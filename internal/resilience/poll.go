package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned when a poll loop passes its deadline without a
// terminal result.
var ErrPollTimeout = errors.New("resilience: poll deadline exceeded")

// PollSchedule waits Initial between the first polls and stretches the gap by
// Growth each round up to Max. Timeout bounds the whole loop.
type PollSchedule struct {
	Initial time.Duration
	Max     time.Duration
	Growth  float64
	Timeout time.Duration
}

// DefaultPollSchedule matches how long message-store exports usually take:
// a few seconds for a day of traffic, occasionally a couple of minutes.
func DefaultPollSchedule() PollSchedule {
	return PollSchedule{
		Initial: 2 * time.Second,
		Max:     15 * time.Second,
		Growth:  1.5,
		Timeout: 5 * time.Minute,
	}
}

func (s PollSchedule) withDefaults() PollSchedule {
	d := DefaultPollSchedule()
	if s.Initial <= 0 {
		s.Initial = d.Initial
	}
	if s.Max < s.Initial {
		s.Max = s.Initial
	}
	if s.Growth < 1 {
		s.Growth = d.Growth
	}
	if s.Timeout <= 0 {
		s.Timeout = d.Timeout
	}
	return s
}

// Interval returns the wait before poll number round+1.
func (s PollSchedule) Interval(round int) time.Duration {
	s = s.withDefaults()
	d := float64(s.Initial)
	for i := 0; i < round; i++ {
		d *= s.Growth
		if d >= float64(s.Max) {
			return s.Max
		}
	}
	return time.Duration(d)
}

// Poll calls check until it reports done, returns an error, or the schedule's
// timeout passes. The first check runs immediately.
func Poll(ctx context.Context, s PollSchedule, check func(ctx context.Context, round int) (done bool, err error)) error {
	s = s.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	for round := 0; ; round++ {
		done, err := check(ctx, round)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := Sleep(ctx, s.Interval(round)); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return ErrPollTimeout
			}
			return err
		}
	}
}
