package syncer

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"leadbot/internal/resilience"
	"leadbot/internal/sms"
	"leadbot/internal/telephony"
	"leadbot/internal/timefmt"
)

// syncSMS runs the message-store export for day: create the task, poll it on
// a growing interval until it finishes or the poll deadline passes, download
// the archive and append the rows not yet stored. A failed or timed-out
// export fails the run with nothing written.
func (e *Engine) syncSMS(ctx context.Context, day string, sp span, log *zap.Logger) (KindResult, error) {
	const sub = string(KindSMS)
	var kr KindResult

	from, to, _ := timefmt.DayRange(day, e.cfg.Location)
	e.progress.Update(sub, StageInit, sp.at(0))

	retry := e.cfg.Retry
	retry.OnRetry = resilience.RetryLogger("ringcentral", "message export")

	task, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (telephony.ExportTask, error) {
		return e.src.CreateMessageExport(ctx, from, to)
	})
	if err != nil {
		e.progress.Update(sub, StageFailed, sp.at(0))
		return kr, eris.Wrap(err, "syncer: create sms export")
	}
	e.progress.Update(sub, StageTaskCreated, sp.at(0.05))
	e.progress.Logf("sms: export task %s created", task.ID)

	pollErr := resilience.Poll(ctx, e.cfg.Poll, func(ctx context.Context, round int) (bool, error) {
		e.progress.Update(sub, StagePolling, sp.at(0.05+0.6*pollFraction(round)))
		t, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (telephony.ExportTask, error) {
			return e.src.GetMessageExport(ctx, task.ID)
		})
		if err != nil {
			return false, err
		}
		task = t
		switch t.Status {
		case telephony.ExportCompleted:
			return true, nil
		case telephony.ExportFailed, telephony.ExportCancelled:
			return false, eris.Wrapf(ErrExportFailed, "task %s status %s", t.ID, t.Status)
		default:
			return false, nil
		}
	})
	switch {
	case errors.Is(pollErr, resilience.ErrPollTimeout):
		e.progress.Update(sub, StageTimedOut, sp.at(0.65))
		return kr, eris.Wrapf(ErrExportTimeout, "task %s", task.ID)
	case pollErr != nil:
		e.progress.Update(sub, StageFailed, sp.at(0.65))
		return kr, eris.Wrap(pollErr, "syncer: poll sms export")
	}
	e.progress.Update(sub, StageCompleted, sp.at(0.7))

	e.progress.Update(sub, StageDownloading, sp.at(0.75))
	rows, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]sms.Row, error) {
		return e.src.DownloadMessageExport(ctx, task)
	})
	if err != nil {
		e.progress.Update(sub, StageFailed, sp.at(0.75))
		return kr, eris.Wrap(err, "syncer: download sms export")
	}
	kr.Fetched = len(rows)
	log.Debug("sms export downloaded", zap.String("task_id", task.ID), zap.Int("rows", len(rows)))

	e.progress.Update(sub, StageWriting, sp.at(0.9))
	if err := e.writeSMS(ctx, day, rows, &kr); err != nil {
		return kr, err
	}

	e.progress.Update(sub, StageComplete, sp.at(1))
	e.progress.Logf("sms: %d new, %d stored for %s", kr.NewCount, kr.Total, day)
	return kr, nil
}

func (e *Engine) writeSMS(ctx context.Context, day string, fetched []sms.Row, kr *KindResult) error {
	existing, err := e.repo.ListSMS(ctx, day)
	if err != nil {
		return eris.Wrapf(err, "syncer: list stored sms %s", day)
	}
	fresh := Dedup(existing, fetched)
	if err := e.repo.AppendSMS(ctx, day, fresh); err != nil {
		return eris.Wrapf(err, "syncer: append sms %s", day)
	}
	kr.NewCount = len(fresh)
	kr.Total = len(existing) + len(fresh)
	return nil
}

// pollFraction approaches 1 as polling goes on without ever reaching it.
func pollFraction(round int) float64 {
	return 1 - 1/float64(round+2)
}
