package eventlog

import (
	"context"
	"sync"

	"leadbot/internal/calls"
	"leadbot/internal/sms"
)

// MemoryRepo is an in-memory append-only repository for tests and local runs.
type MemoryRepo struct {
	mu    sync.Mutex
	calls map[string][]calls.Row
	sms   map[string][]sms.Row
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{calls: map[string][]calls.Row{}, sms: map[string][]sms.Row{}}
}

func (r *MemoryRepo) AppendCalls(ctx context.Context, day string, rows []calls.Row) error {
	if err := validDay(day); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[day] = append(r.calls[day], rows...)
	return nil
}

func (r *MemoryRepo) AppendSMS(ctx context.Context, day string, rows []sms.Row) error {
	if err := validDay(day); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sms[day] = append(r.sms[day], rows...)
	return nil
}

func (r *MemoryRepo) ListCalls(ctx context.Context, day string) ([]calls.Row, error) {
	if err := validDay(day); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Row, len(r.calls[day]))
	copy(out, r.calls[day])
	return out, nil
}

func (r *MemoryRepo) ListSMS(ctx context.Context, day string) ([]sms.Row, error) {
	if err := validDay(day); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sms.Row, len(r.sms[day]))
	copy(out, r.sms[day])
	return out, nil
}
