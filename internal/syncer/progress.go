package syncer

import (
	"fmt"
	"sync"
	"time"
)

const maxLogLines = 50

// Stages of a call sync.
const (
	StageInit              = "init"
	StageFetchingFirstPage = "fetching_first_page"
	StageFetchingBatch     = "fetching_batch"
	StageRateLimited       = "rate_limited"
	StageBackoff           = "backoff"
	StageComplete          = "complete"
	StageAborted           = "aborted"
)

// Stages of an SMS sync.
const (
	StageTaskCreated = "task_created"
	StagePolling     = "polling"
	StageCompleted   = "completed"
	StageDownloading = "downloading"
	StageFailed      = "failed"
	StageTimedOut    = "timed_out"
)

// Stages shared by both.
const (
	StageWriting = "writing"
	StageDone    = "done"
	StageError   = "error"
)

type LogLine struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// ProgressSnapshot is a copy of the tracker state safe to serialize.
type ProgressSnapshot struct {
	RunID      string            `json:"run_id,omitempty"`
	Running    bool              `json:"running"`
	Complete   bool              `json:"complete"`
	Error      bool              `json:"error"`
	Message    string            `json:"message,omitempty"`
	Percent    float64           `json:"percent"`
	Stage      string            `json:"stage"`
	Subsystems map[string]string `json:"subsystems"`
	Log        []LogLine         `json:"log"`
	StartedAt  time.Time         `json:"started_at,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
}

// Progress is the pollable status of the current or last sync. It is a side
// channel for UIs and never affects what gets written.
type Progress struct {
	mu    sync.Mutex
	clock func() time.Time
	s     ProgressSnapshot
}

func NewProgress() *Progress {
	return &Progress{clock: time.Now, s: ProgressSnapshot{Stage: StageInit, Subsystems: map[string]string{}}}
}

// Reset starts tracking a new run.
func (p *Progress) Reset(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock()
	p.s = ProgressSnapshot{
		RunID:      runID,
		Running:    true,
		Stage:      StageInit,
		Subsystems: map[string]string{},
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// Update sets the stage of one subsystem and the overall percent, capped to
// [0, 100].
func (p *Progress) Update(subsystem, stage string, percent float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s.Stage = stage
	if subsystem != "" {
		p.s.Subsystems[subsystem] = stage
	}
	p.s.Percent = clampPercent(percent)
	p.s.UpdatedAt = p.clock()
}

// Logf appends to the rolling log, keeping the newest lines.
func (p *Progress) Logf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock()
	p.s.Log = append(p.s.Log, LogLine{At: now, Message: fmt.Sprintf(format, args...)})
	if n := len(p.s.Log); n > maxLogLines {
		p.s.Log = append([]LogLine(nil), p.s.Log[n-maxLogLines:]...)
	}
	p.s.UpdatedAt = now
}

// Finish marks a successful run.
func (p *Progress) Finish(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s.Running = false
	p.s.Complete = true
	p.s.Error = false
	p.s.Percent = 100
	p.s.Stage = StageDone
	p.s.Message = message
	p.s.UpdatedAt = p.clock()
}

// Fail marks the run complete with an error. A subsystem already in a
// terminal failure stage (aborted, failed, timed_out) keeps it; one caught
// mid-stage is set to error.
func (p *Progress) Fail(subsystem string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s.Running = false
	p.s.Complete = true
	p.s.Error = true
	if subsystem != "" && !failureStage(p.s.Subsystems[subsystem]) {
		p.s.Subsystems[subsystem] = StageError
	}
	p.s.Stage = StageError
	if err != nil {
		p.s.Message = err.Error()
	}
	p.s.UpdatedAt = p.clock()
}

func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.s
	out.Subsystems = make(map[string]string, len(p.s.Subsystems))
	for k, v := range p.s.Subsystems {
		out.Subsystems[k] = v
	}
	out.Log = append([]LogLine(nil), p.s.Log...)
	return out
}

func failureStage(stage string) bool {
	switch stage {
	case StageAborted, StageFailed, StageTimedOut, StageError:
		return true
	}
	return false
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// span maps a subsystem's own 0..1 progress onto its slice of the overall
// percent.
type span struct{ lo, hi float64 }

func (s span) at(frac float64) float64 {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return s.lo + (s.hi-s.lo)*frac
}
