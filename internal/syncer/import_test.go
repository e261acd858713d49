package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadbot/internal/audit"
	"leadbot/internal/calls"
	"leadbot/internal/eventlog"
)

func TestImport_DedupsAndAudits(t *testing.T) {
	ctx := context.Background()
	repo := eventlog.NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()
	idx := &recordingIndex{}
	e := NewEngine(nil, repo, testConfig(), WithAudit(audit.NewService(auditRepo)), WithIndex(idx))

	rows := []calls.Row{
		{Direction: "Outbound", Phone: "5551234567", Date: "3/4/2025", Time: "9:00 AM", Duration: "1:00"},
		{Direction: "Outbound", Phone: "5551234567", Date: "3/4/2025", Time: "9:00 AM", Duration: "1:00"},
		{Direction: "Outbound", Phone: "5557654321", Date: "3/4/2025", Time: "9:10 AM", Duration: "0:20"},
	}
	res, err := e.Import(ctx, day, rows, smsRows())
	require.NoError(t, err)
	require.NotNil(t, res.Calls)
	assert.Equal(t, 3, res.Calls.Fetched)
	assert.Equal(t, 2, res.Calls.NewCount)
	require.NotNil(t, res.SMS)
	assert.Equal(t, len(smsRows()), res.SMS.NewCount)

	res, err = e.Import(ctx, day, rows, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Calls.NewCount)
	assert.Equal(t, 2, res.Calls.Total)
	assert.Nil(t, res.SMS)

	stored, err := repo.ListCalls(ctx, day)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	events := auditRepo.Events()
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, audit.EventTypeImport, ev.Type)
	}
	assert.Equal(t, []string{day, day}, idx.days)
}

func TestImport_RespectsLockAndDay(t *testing.T) {
	locker := NewMemoryLocker()
	e := NewEngine(nil, eventlog.NewMemoryRepo(), testConfig(), WithLocker(locker))

	_, err := e.Import(context.Background(), "03/04/2025", nil, nil)
	assert.ErrorIs(t, err, eventlog.ErrInvalidDay)

	ok, err := locker.TryLock(context.Background(), lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = e.Import(context.Background(), day, nil, nil)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}
