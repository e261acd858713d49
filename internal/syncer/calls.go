package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"leadbot/internal/calls"
	"leadbot/internal/resilience"
	"leadbot/internal/telephony"
	"leadbot/internal/timefmt"
)

// syncCalls pages the call log for day and appends the rows not yet stored.
//
// The first page is fetched alone to learn the page count. The rest go out in
// parallel batches of BatchSize with BatchDelay between batches. A throttled
// or transiently failing batch is retried as a whole under the retry policy;
// once that gives up the sync aborts, but pages already fetched are still
// written.
func (e *Engine) syncCalls(ctx context.Context, day string, sp span, log *zap.Logger) (KindResult, error) {
	const sub = string(KindCalls)
	var kr KindResult

	from, to, _ := timefmt.DayRange(day, e.cfg.Location)
	e.progress.Update(sub, StageFetchingFirstPage, sp.at(0))

	first, err := e.fetchPages(ctx, []int{1}, from, to, sp, 0)
	if err != nil {
		e.progress.Update(sub, StageAborted, sp.at(0))
		return kr, eris.Wrap(err, "syncer: fetch first call page")
	}
	totalPages := max(first[0].Paging.TotalPages, 1)
	kr.Pages = totalPages
	e.progress.Logf("calls: %d records across %d pages", first[0].Paging.TotalElements, totalPages)

	fetched := append([]calls.Row(nil), first[0].Rows...)
	done := 1
	var abortErr error

	for start := 2; start <= totalPages; start += e.cfg.BatchSize {
		if start > 2 && e.cfg.BatchDelay > 0 {
			if err := resilience.Sleep(ctx, e.cfg.BatchDelay); err != nil {
				abortErr = eris.Wrap(err, "syncer: call sync cancelled")
				break
			}
		}

		end := min(start+e.cfg.BatchSize-1, totalPages)
		batch := make([]int, 0, end-start+1)
		for p := start; p <= end; p++ {
			batch = append(batch, p)
		}

		frac := float64(done) / float64(totalPages)
		e.progress.Update(sub, StageFetchingBatch, sp.at(frac*0.9))
		pages, err := e.fetchPages(ctx, batch, from, to, sp, frac)
		if err != nil {
			abortErr = eris.Wrapf(err, "syncer: fetch call pages %d-%d", start, end)
			break
		}
		for _, pg := range pages {
			fetched = append(fetched, pg.Rows...)
		}
		done += len(batch)
		log.Debug("call batch fetched", zap.Int("from_page", start), zap.Int("to_page", end), zap.Int("rows", len(fetched)))
	}

	kr.Fetched = len(fetched)
	if abortErr != nil {
		kr.Partial = true
		e.progress.Logf("calls: aborted after %d of %d pages, keeping %d fetched rows", done, totalPages, len(fetched))
	}

	e.progress.Update(sub, StageWriting, sp.at(0.95))
	writeCtx := ctx
	if abortErr != nil {
		// The abort may be the run's own deadline or cancellation.
		var cancel context.CancelFunc
		writeCtx, cancel = settleContext(ctx)
		defer cancel()
	}
	if err := e.writeCalls(writeCtx, day, fetched, &kr); err != nil {
		e.progress.Update(sub, StageAborted, sp.at(0.95))
		if abortErr != nil {
			return kr, errors.Join(abortErr, err)
		}
		return kr, err
	}

	if abortErr != nil {
		e.progress.Update(sub, StageAborted, sp.at(1))
		return kr, abortErr
	}
	e.progress.Update(sub, StageComplete, sp.at(1))
	e.progress.Logf("calls: %d new, %d stored for %s", kr.NewCount, kr.Total, day)
	return kr, nil
}

// fetchPages fetches a batch concurrently and returns pages in request
// order. Any failure fails the batch; a retryable failure re-runs all of it.
func (e *Engine) fetchPages(ctx context.Context, pages []int, from, to time.Time, sp span, frac float64) ([]telephony.CallLogPage, error) {
	policy := e.cfg.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		stage := StageBackoff
		if resilience.IsRateLimited(err) {
			stage = StageRateLimited
		}
		e.progress.Update(string(KindCalls), stage, sp.at(frac*0.9))
		e.progress.Logf("calls: pages %v throttled, retry %d in %s", pages, attempt, delay.Round(time.Millisecond))
		zap.L().Warn("call page batch retry",
			zap.Ints("pages", pages),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	return resilience.DoVal(ctx, policy, func(ctx context.Context) ([]telephony.CallLogPage, error) {
		out := make([]telephony.CallLogPage, len(pages))
		g, gctx := errgroup.WithContext(ctx)
		for i, p := range pages {
			g.Go(func() error {
				pg, err := e.src.CallLog(gctx, telephony.CallLogRequest{From: from, To: to, Page: p, PerPage: e.cfg.PageSize})
				if err != nil {
					return err
				}
				out[i] = pg
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (e *Engine) writeCalls(ctx context.Context, day string, fetched []calls.Row, kr *KindResult) error {
	existing, err := e.repo.ListCalls(ctx, day)
	if err != nil {
		return eris.Wrapf(err, "syncer: list stored calls %s", day)
	}
	fresh := Dedup(existing, fetched)
	if err := e.repo.AppendCalls(ctx, day, fresh); err != nil {
		return eris.Wrapf(err, "syncer: append calls %s", day)
	}
	kr.NewCount = len(fresh)
	kr.Total = len(existing) + len(fresh)
	return nil
}
