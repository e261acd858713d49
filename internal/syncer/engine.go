package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"leadbot/internal/audit"
	"leadbot/internal/eventlog"
	"leadbot/internal/resilience"
	"leadbot/internal/telephony"
	"leadbot/internal/timefmt"
	"leadbot/pkg/logger"
)

type Kind string

const (
	KindCalls Kind = "calls"
	KindSMS   Kind = "sms"
	KindAll   Kind = "all"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCalls, KindSMS, KindAll:
		return Kind(s), nil
	case "":
		return KindAll, nil
	default:
		return "", eris.Errorf("syncer: unknown kind %q", s)
	}
}

var (
	ErrAlreadyRunning = errors.New("syncer: a sync is already running")
	ErrExportFailed   = errors.New("syncer: sms export failed")
	ErrExportTimeout  = errors.New("syncer: sms export timed out")
)

const lockKey = "leadbot:sync:lock"

// Config tunes fetch pacing and bounds.
type Config struct {
	PageSize   int
	BatchSize  int
	BatchDelay time.Duration
	Retry      resilience.Policy
	Poll       resilience.PollSchedule
	LockTTL    time.Duration
	// RunTimeout bounds background runs started with Start.
	RunTimeout time.Duration
	Location   *time.Location
}

func DefaultConfig() Config {
	return Config{
		PageSize:   250,
		BatchSize:  3,
		BatchDelay: 1500 * time.Millisecond,
		Retry:      resilience.DefaultPolicy(),
		Poll:       resilience.DefaultPollSchedule(),
		LockTTL:    20 * time.Minute,
		RunTimeout: 15 * time.Minute,
		Location:   time.Local,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
	if c.LockTTL <= 0 {
		c.LockTTL = d.LockTTL
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = d.RunTimeout
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	return c
}

// Source is the part of the phone system the engine reads from.
type Source interface {
	telephony.CallLogSource
	telephony.MessageExporter
}

// IndexInvalidator is told which day got new rows.
type IndexInvalidator interface {
	InvalidateDay(ctx context.Context, day string) error
}

type Request struct {
	Kind Kind
	// Day is YYYY-MM-DD in the engine's timezone. Empty means today.
	Day string
}

type KindResult struct {
	Fetched  int  `json:"fetched"`
	NewCount int  `json:"new_count"`
	Total    int  `json:"total"`
	Pages    int  `json:"pages,omitempty"`
	Partial  bool `json:"partial,omitempty"`
}

// Result is the structured outcome of one run. Error is set on failure; the
// counts still describe whatever was written before it.
type Result struct {
	RunID      string      `json:"run_id"`
	Day        string      `json:"day"`
	Kind       Kind        `json:"kind"`
	Calls      *KindResult `json:"calls,omitempty"`
	SMS        *KindResult `json:"sms,omitempty"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

func (r Result) OK() bool { return r.Error == "" }

type Engine struct {
	src      Source
	repo     eventlog.Repository
	locker   Locker
	audit    *audit.Service
	index    IndexInvalidator
	progress *Progress
	cfg      Config
	clock    func() time.Time
}

type Option func(*Engine)

func WithLocker(l Locker) Option { return func(e *Engine) { e.locker = l } }
func WithAudit(a *audit.Service) Option { return func(e *Engine) { e.audit = a } }
func WithIndex(i IndexInvalidator) Option { return func(e *Engine) { e.index = i } }
func WithClock(c func() time.Time) Option { return func(e *Engine) { e.clock = c } }

func NewEngine(src Source, repo eventlog.Repository, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		src:      src,
		repo:     repo,
		locker:   NewMemoryLocker(),
		progress: NewProgress(),
		cfg:      cfg.withDefaults(),
		clock:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Progress() ProgressSnapshot { return e.progress.Snapshot() }

func (e *Engine) normalize(req Request) (Request, error) {
	if req.Kind == "" {
		req.Kind = KindAll
	}
	if _, err := ParseKind(string(req.Kind)); err != nil {
		return req, err
	}
	if req.Day == "" {
		req.Day = timefmt.DayKey(e.clock(), e.cfg.Location)
	}
	if _, _, ok := timefmt.DayRange(req.Day, e.cfg.Location); !ok {
		return req, eventlog.ErrInvalidDay
	}
	return req, nil
}

func (e *Engine) acquire(ctx context.Context) (func(), error) {
	ok, err := e.locker.TryLock(ctx, lockKey, e.cfg.LockTTL)
	if err != nil {
		return nil, eris.Wrap(err, "syncer: acquire lock")
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.locker.Unlock(ctx, lockKey); err != nil {
			zap.L().Warn("syncer: release lock", zap.Error(err))
		}
	}, nil
}

// Run executes one sync to completion. The returned error mirrors
// Result.Error, except ErrAlreadyRunning and request errors, which return
// before anything starts.
func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	req, err := e.normalize(req)
	if err != nil {
		return Result{}, err
	}
	release, err := e.acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer release()

	return e.run(ctx, req, uuid.NewString())
}

// Start takes the lock and runs the sync in the background. It returns the
// run id right away; progress is read through Progress.
func (e *Engine) Start(ctx context.Context, req Request) (string, error) {
	req, err := e.normalize(req)
	if err != nil {
		return "", err
	}
	release, err := e.acquire(ctx)
	if err != nil {
		return "", err
	}

	runID := uuid.NewString()
	e.progress.Reset(runID)
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.RunTimeout)
	go func() {
		defer release()
		defer cancel()
		_, _ = e.run(bg, req, runID)
	}()
	return runID, nil
}

func (e *Engine) run(ctx context.Context, req Request, runID string) (Result, error) {
	log := logger.From(ctx).With(zap.String("run_id", runID), zap.String("day", req.Day), zap.String("kind", string(req.Kind)))
	if e.progress.Snapshot().RunID != runID {
		e.progress.Reset(runID)
	}
	res := Result{RunID: runID, Day: req.Day, Kind: req.Kind, StartedAt: e.clock()}
	log.Info("sync started")
	e.progress.Logf("sync %s started for %s", req.Kind, req.Day)

	callSpan, smsSpan := span{0, 100}, span{0, 100}
	if req.Kind == KindAll {
		callSpan, smsSpan = span{0, 50}, span{50, 100}
	}

	var failed error
	var failedSub string
	if req.Kind == KindCalls || req.Kind == KindAll {
		kr, err := e.syncCalls(ctx, req.Day, callSpan, log)
		res.Calls = &kr
		e.record(ctx, runID, KindCalls, req.Day, kr, err)
		if err != nil {
			failed, failedSub = err, string(KindCalls)
		}
	}
	if failed == nil && (req.Kind == KindSMS || req.Kind == KindAll) {
		kr, err := e.syncSMS(ctx, req.Day, smsSpan, log)
		res.SMS = &kr
		e.record(ctx, runID, KindSMS, req.Day, kr, err)
		if err != nil {
			failed, failedSub = err, string(KindSMS)
		}
	}

	res.FinishedAt = e.clock()
	if failed != nil {
		res.Error = failed.Error()
		e.progress.Logf("sync failed: %v", failed)
		e.progress.Fail(failedSub, failed)
		log.Error("sync failed", zap.Error(failed))
		return res, failed
	}

	msg := summary(res)
	e.progress.Logf("%s", msg)
	e.progress.Finish(msg)
	log.Info("sync finished", zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

// settleWriteTimeout bounds the writes that finish a run after its own
// context has ended.
const settleWriteTimeout = 30 * time.Second

// settleContext keeps ctx values but drops its cancellation and deadline.
func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleWriteTimeout)
}

func (e *Engine) record(ctx context.Context, runID string, kind Kind, day string, kr KindResult, err error) {
	ctx, cancel := settleContext(ctx)
	defer cancel()
	if kr.NewCount > 0 && e.index != nil {
		if ierr := e.index.InvalidateDay(ctx, day); ierr != nil {
			logger.From(ctx).Warn("syncer: invalidate contact index", zap.String("day", day), zap.Error(ierr))
		}
	}
	if e.audit == nil {
		return
	}
	stage := StageDone
	if err != nil {
		stage = e.progress.Snapshot().Subsystems[string(kind)]
	}
	e.audit.LogSyncRun(ctx, audit.SyncSummary{
		RunID:    runID,
		Kind:     string(kind),
		Day:      day,
		Fetched:  kr.Fetched,
		NewCount: kr.NewCount,
		Total:    kr.Total,
		Stage:    stage,
		Err:      err,
	})
}

func summary(r Result) string {
	var s string
	if r.Calls != nil {
		s += fmt.Sprintf("calls: %d new of %d fetched (%d stored). ", r.Calls.NewCount, r.Calls.Fetched, r.Calls.Total)
	}
	if r.SMS != nil {
		s += fmt.Sprintf("sms: %d new of %d fetched (%d stored). ", r.SMS.NewCount, r.SMS.Fetched, r.SMS.Total)
	}
	return "sync complete. " + s
}
