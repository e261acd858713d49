package syncer

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadbot/internal/audit"
	"leadbot/internal/calls"
	"leadbot/internal/eventlog"
	"leadbot/internal/resilience"
	"leadbot/internal/sms"
	"leadbot/internal/telephony"

	_ "modernc.org/sqlite"
)

const day = "2025-03-04"

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeSource struct {
	mu sync.Mutex

	pages      map[int][]calls.Row
	throttle   map[int]int // remaining 429s per page
	hardFail   map[int]error
	block      map[int]bool // pages that hang until ctx is done
	requested  []int
	perPageArg int

	statuses  []telephony.ExportStatus
	polls     int
	smsRows   []sms.Row
	createErr error
}

func newFakeSource(totalPages, perPage int) *fakeSource {
	f := &fakeSource{pages: map[int][]calls.Row{}, throttle: map[int]int{}, hardFail: map[int]error{}}
	for p := 1; p <= totalPages; p++ {
		for i := 0; i < perPage; i++ {
			f.pages[p] = append(f.pages[p], calls.Row{
				Direction: "Outbound",
				Type:      "Voice",
				Phone:     fmt.Sprintf("555%07d", p*100+i),
				Date:      "3/4/2025",
				Time:      fmt.Sprintf("10:%02d:%02d", p, i),
				Duration:  "1:00",
			})
		}
	}
	return f
}

func (f *fakeSource) CallLog(ctx context.Context, req telephony.CallLogRequest) (telephony.CallLogPage, error) {
	if f.block[req.Page] {
		<-ctx.Done()
		return telephony.CallLogPage{}, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, req.Page)
	f.perPageArg = req.PerPage
	if err := f.hardFail[req.Page]; err != nil {
		return telephony.CallLogPage{}, err
	}
	if f.throttle[req.Page] > 0 {
		f.throttle[req.Page]--
		return telephony.CallLogPage{}, &resilience.TransientError{Err: telephony.ErrRateLimited, StatusCode: 429}
	}
	total := 0
	for _, rows := range f.pages {
		total += len(rows)
	}
	return telephony.CallLogPage{
		Rows:   f.pages[req.Page],
		Paging: telephony.Paging{Page: req.Page, TotalPages: len(f.pages), TotalElements: total},
	}, nil
}

func (f *fakeSource) CreateMessageExport(context.Context, time.Time, time.Time) (telephony.ExportTask, error) {
	if f.createErr != nil {
		return telephony.ExportTask{}, f.createErr
	}
	return telephony.ExportTask{ID: "task-1", Status: telephony.ExportAccepted}, nil
}

func (f *fakeSource) GetMessageExport(_ context.Context, id string) (telephony.ExportTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := telephony.ExportInProgress
	if f.polls < len(f.statuses) {
		st = f.statuses[f.polls]
	}
	f.polls++
	return telephony.ExportTask{ID: id, Status: st}, nil
}

func (f *fakeSource) DownloadMessageExport(_ context.Context, task telephony.ExportTask) ([]sms.Row, error) {
	return f.smsRows, nil
}

func (f *fakeSource) requestedPages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.requested...)
}

func testConfig() Config {
	return Config{
		PageSize:  50,
		BatchSize: 2,
		Retry:     resilience.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
		Poll:      resilience.PollSchedule{Initial: time.Millisecond, Max: 2 * time.Millisecond, Timeout: time.Second},
		Location:  time.UTC,
	}
}

func TestRunCalls_FetchesAllPagesInBatches(t *testing.T) {
	src := newFakeSource(5, 3)
	repo := eventlog.NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()
	e := NewEngine(src, repo, testConfig(), WithAudit(audit.NewService(auditRepo)))

	res, err := e.Run(context.Background(), Request{Kind: KindCalls, Day: day})
	require.NoError(t, err)
	require.NotNil(t, res.Calls)
	assert.Nil(t, res.SMS)
	assert.Equal(t, KindResult{Fetched: 15, NewCount: 15, Total: 15, Pages: 5}, *res.Calls)
	assert.True(t, res.OK())

	assert.Equal(t, 1, src.requestedPages()[0], "first page is fetched alone")
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, src.requestedPages())
	assert.Equal(t, 50, src.perPageArg)

	stored, err := repo.ListCalls(context.Background(), day)
	require.NoError(t, err)
	assert.Len(t, stored, 15)

	snap := e.Progress()
	assert.True(t, snap.Complete)
	assert.False(t, snap.Error)
	assert.Equal(t, 100.0, snap.Percent)
	assert.Equal(t, StageComplete, snap.Subsystems["calls"])

	evs := auditRepo.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, 15, evs[0].NewCount)
	assert.Equal(t, res.RunID, evs[0].RunID)
}

func TestRunCalls_SecondRunAddsNothing(t *testing.T) {
	src := newFakeSource(3, 4)
	e := NewEngine(src, eventlog.NewMemoryRepo(), testConfig())

	_, err := e.Run(context.Background(), Request{Kind: KindCalls, Day: day})
	require.NoError(t, err)

	res, err := e.Run(context.Background(), Request{Kind: KindCalls, Day: day})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Calls.NewCount)
	assert.Equal(t, 12, res.Calls.Total)
	assert.Equal(t, 12, res.Calls.Fetched)
}

func TestRunCalls_RetriesThrottledBatch(t *testing.T) {
	src := newFakeSource(4, 2)
	src.throttle[3] = 2
	e := NewEngine(src, eventlog.NewMemoryRepo(), testConfig())

	res, err := e.Run(context.Background(), Request{Kind: KindCalls, Day: day})
	require.NoError(t, err)
	assert.Equal(t, 8, res.Calls.NewCount)
	assert.False(t, res.Calls.Partial)

	var throttled bool
	for _, l := range e.Progress().Log {
		throttled = throttled || strings.Contains(l.Message, "throttled")
	}
	assert.True(t, throttled)
}

func TestRunCalls_ExhaustedRetriesKeepFetchedPages(t *testing.T) {
	src := newFakeSource(5, 2)
	src.throttle[4] = 100
	repo := eventlog.NewMemoryRepo()
	e := NewEngine(src, repo, testConfig())

	res, err := e.Run(context.Background(), Request{Kind: KindAll, Day: day})
	require.Error(t, err)
	assert.ErrorIs(t, err, telephony.ErrRateLimited)
	assert.ErrorIs(t, err, resilience.ErrAttemptsExhausted)
	assert.False(t, res.OK())
	assert.Nil(t, res.SMS, "sms is skipped once calls fail")

	// Pages 1, 2 and 3 made it; batch 4-5 never did.
	assert.True(t, res.Calls.Partial)
	assert.Equal(t, 6, res.Calls.NewCount)
	stored, _ := repo.ListCalls(context.Background(), day)
	assert.Len(t, stored, 6)

	snap := e.Progress()
	assert.True(t, snap.Complete)
	assert.True(t, snap.Error)
	assert.Equal(t, StageError, snap.Stage)
	assert.Equal(t, StageAborted, snap.Subsystems["calls"])
	assert.NotEmpty(t, snap.Message)
}

func TestRunCalls_HardPageErrorAbortsWithoutRetry(t *testing.T) {
	src := newFakeSource(3, 1)
	src.hardFail[2] = &telephony.APIError{StatusCode: 400, Method: "GET", Path: "/call-log"}
	e := NewEngine(src, eventlog.NewMemoryRepo(), testConfig())

	res, err := e.Run(context.Background(), Request{Kind: KindCalls, Day: day})
	require.Error(t, err)
	assert.Equal(t, 1, res.Calls.NewCount)

	count := 0
	for _, p := range src.requestedPages() {
		if p == 2 {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRunCalls_DeadlineKeepsFetchedPages(t *testing.T) {
	repo := eventlog.NewSQLRepo(openSQLite(t), eventlog.DialectSQLite)
	require.NoError(t, repo.Migrate(context.Background()))

	src := newFakeSource(3, 2)
	src.block = map[int]bool{2: true, 3: true}
	auditRepo := audit.NewMemoryRepo()
	e := NewEngine(src, repo, testConfig(), WithAudit(audit.NewService(auditRepo)))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	res, err := e.Run(ctx, Request{Kind: KindCalls, Day: day})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotContains(t, err.Error(), "list stored calls")

	assert.True(t, res.Calls.Partial)
	assert.Equal(t, 2, res.Calls.Fetched)
	assert.Equal(t, 2, res.Calls.NewCount)
	stored, err := repo.ListCalls(context.Background(), day)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	evs := auditRepo.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, 2, evs[0].NewCount)
	assert.Equal(t, StageAborted, evs[0].Stage)
}

func smsRows() []sms.Row {
	return []sms.Row{
		{Direction: "Outbound", SenderPhone: "5559990000", RecipientPhone: "5551234567", DateTime: "3/4/2025 9:00:00 AM", Status: "Delivered"},
		{Direction: "Inbound", SenderPhone: "5551234567", RecipientPhone: "5559990000", DateTime: "3/4/2025 9:05:00 AM", Status: "Received"},
	}
}

func TestRunSMS_PollsUntilCompleted(t *testing.T) {
	src := newFakeSource(1, 0)
	src.statuses = []telephony.ExportStatus{telephony.ExportInProgress, telephony.ExportInProgress, telephony.ExportCompleted}
	src.smsRows = smsRows()
	repo := eventlog.NewMemoryRepo()
	e := NewEngine(src, repo, testConfig())

	res, err := e.Run(context.Background(), Request{Kind: KindSMS, Day: day})
	require.NoError(t, err)
	assert.Equal(t, 3, src.polls)
	assert.Equal(t, 2, res.SMS.NewCount)

	src.polls = 0
	res, err = e.Run(context.Background(), Request{Kind: KindSMS, Day: day})
	require.NoError(t, err)
	assert.Equal(t, 0, res.SMS.NewCount)
	assert.Equal(t, 2, res.SMS.Total)
}

func TestRunSMS_FailedExport(t *testing.T) {
	src := newFakeSource(1, 0)
	src.statuses = []telephony.ExportStatus{telephony.ExportInProgress, telephony.ExportFailed}
	src.smsRows = smsRows()
	repo := eventlog.NewMemoryRepo()
	e := NewEngine(src, repo, testConfig())

	_, err := e.Run(context.Background(), Request{Kind: KindSMS, Day: day})
	assert.ErrorIs(t, err, ErrExportFailed)
	stored, _ := repo.ListSMS(context.Background(), day)
	assert.Empty(t, stored)

	snap := e.Progress()
	assert.True(t, snap.Complete)
	assert.True(t, snap.Error)
}

func TestRunSMS_TimesOut(t *testing.T) {
	src := newFakeSource(1, 0)
	cfg := testConfig()
	cfg.Poll = resilience.PollSchedule{Initial: 2 * time.Millisecond, Max: 2 * time.Millisecond, Timeout: 10 * time.Millisecond}
	auditRepo := audit.NewMemoryRepo()
	e := NewEngine(src, eventlog.NewMemoryRepo(), cfg, WithAudit(audit.NewService(auditRepo)))

	_, err := e.Run(context.Background(), Request{Kind: KindSMS, Day: day})
	assert.ErrorIs(t, err, ErrExportTimeout)

	evs := auditRepo.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, StageTimedOut, evs[0].Stage)
	assert.NotEmpty(t, evs[0].Error)
}

type recordingIndex struct{ days []string }

func (r *recordingIndex) InvalidateDay(_ context.Context, day string) error {
	r.days = append(r.days, day)
	return nil
}

func TestRun_InvalidatesIndexOnlyWhenRowsAdded(t *testing.T) {
	src := newFakeSource(1, 2)
	idx := &recordingIndex{}
	e := NewEngine(src, eventlog.NewMemoryRepo(), testConfig(), WithIndex(idx))

	_, err := e.Run(context.Background(), Request{Kind: KindCalls, Day: day})
	require.NoError(t, err)
	_, err = e.Run(context.Background(), Request{Kind: KindCalls, Day: day})
	require.NoError(t, err)
	assert.Equal(t, []string{day}, idx.days)
}

func TestRun_RejectsConcurrentRuns(t *testing.T) {
	locker := NewMemoryLocker()
	ok, err := locker.TryLock(context.Background(), lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	e := NewEngine(newFakeSource(1, 1), eventlog.NewMemoryRepo(), testConfig(), WithLocker(locker))
	_, err = e.Run(context.Background(), Request{Kind: KindCalls, Day: day})
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	_, err = e.Start(context.Background(), Request{Kind: KindCalls, Day: day})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRun_ValidatesRequest(t *testing.T) {
	e := NewEngine(newFakeSource(1, 1), eventlog.NewMemoryRepo(), testConfig())
	_, err := e.Run(context.Background(), Request{Kind: "fax", Day: day})
	assert.Error(t, err)
	_, err = e.Run(context.Background(), Request{Kind: KindCalls, Day: "today"})
	assert.ErrorIs(t, err, eventlog.ErrInvalidDay)
}

func TestRun_DefaultsToToday(t *testing.T) {
	e := NewEngine(newFakeSource(1, 1), eventlog.NewMemoryRepo(), testConfig(),
		WithClock(func() time.Time { return time.Date(2025, 3, 4, 18, 0, 0, 0, time.UTC) }))
	res, err := e.Run(context.Background(), Request{Kind: KindCalls})
	require.NoError(t, err)
	assert.Equal(t, day, res.Day)
}

func TestStart_RunsInBackground(t *testing.T) {
	src := newFakeSource(2, 2)
	src.statuses = []telephony.ExportStatus{telephony.ExportCompleted}
	src.smsRows = smsRows()
	repo := eventlog.NewMemoryRepo()
	e := NewEngine(src, repo, testConfig())

	runID, err := e.Start(context.Background(), Request{Kind: KindAll, Day: day})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	require.Eventually(t, func() bool { return e.Progress().Complete }, 2*time.Second, 5*time.Millisecond)
	snap := e.Progress()
	assert.Equal(t, runID, snap.RunID)
	assert.False(t, snap.Error)
	assert.Equal(t, StageComplete, snap.Subsystems["calls"])
	assert.Equal(t, StageComplete, snap.Subsystems["sms"])

	// The lock is released once the background run ends.
	require.Eventually(t, func() bool {
		_, err := e.Run(context.Background(), Request{Kind: KindCalls, Day: day})
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindAll, k)
	_, err = ParseKind("voicemail")
	assert.Error(t, err)
}
