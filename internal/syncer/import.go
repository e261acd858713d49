package syncer

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"leadbot/internal/audit"
	"leadbot/internal/calls"
	"leadbot/internal/sms"
	"leadbot/pkg/logger"
)

// Import appends rows exported by hand (tracker spreadsheets) into a day
// bucket. It holds the same lock as a sync, dedups the same way, and
// invalidates the contact index when anything new landed.
func (e *Engine) Import(ctx context.Context, day string, callRows []calls.Row, smsRows []sms.Row) (Result, error) {
	req, err := e.normalize(Request{Kind: KindAll, Day: day})
	if err != nil {
		return Result{}, err
	}
	release, err := e.acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer release()

	res := Result{RunID: uuid.NewString(), Day: req.Day, Kind: KindAll, StartedAt: e.clock()}
	log := logger.From(ctx).With(zap.String("run_id", res.RunID), zap.String("day", req.Day))

	if len(callRows) > 0 {
		kr := KindResult{Fetched: len(callRows)}
		err := e.writeCalls(ctx, req.Day, callRows, &kr)
		e.recordImport(ctx, res.RunID, KindCalls, req.Day, kr, err)
		res.Calls = &kr
		if err != nil {
			res.Error = err.Error()
			return res, err
		}
	}
	if len(smsRows) > 0 {
		kr := KindResult{Fetched: len(smsRows)}
		err := e.writeSMS(ctx, req.Day, smsRows, &kr)
		e.recordImport(ctx, res.RunID, KindSMS, req.Day, kr, err)
		res.SMS = &kr
		if err != nil {
			res.Error = err.Error()
			return res, err
		}
	}

	res.FinishedAt = e.clock()
	log.Info("import finished", zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

func (e *Engine) recordImport(ctx context.Context, runID string, kind Kind, day string, kr KindResult, err error) {
	if kr.NewCount > 0 && e.index != nil {
		if ierr := e.index.InvalidateDay(ctx, day); ierr != nil {
			logger.From(ctx).Warn("syncer: invalidate contact index", zap.String("day", day), zap.Error(ierr))
		}
	}
	if e.audit == nil {
		return
	}
	e.audit.LogImport(ctx, audit.SyncSummary{
		RunID:    runID,
		Kind:     string(kind),
		Day:      day,
		Fetched:  kr.Fetched,
		NewCount: kr.NewCount,
		Total:    kr.Total,
		Err:      err,
	})
}

