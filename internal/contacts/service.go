package contacts

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"leadbot/internal/eventlog"
	"leadbot/internal/phone"
	"leadbot/internal/timefmt"
	"leadbot/pkg/logger"
)

const DefaultCacheTTL = 60 * time.Second

// Service builds the index over the rolling two-day window of the event log.
type Service struct {
	repo  eventlog.Repository
	cache Cache
	cfg   BuildConfig
	ttl   time.Duration
	clock func() time.Time
}

// NewService wires the builder to storage. cache may be nil.
func NewService(repo eventlog.Repository, cache Cache, cfg BuildConfig, ttl time.Duration) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{repo: repo, cache: cache, cfg: cfg, ttl: ttl, clock: time.Now}
}

func (s *Service) Location() *time.Location { return s.cfg.Location }

func cacheKey(day string) string { return "index:" + day }

// Index returns the index for the day containing now and the day before.
// Cache failures fall back to a rebuild.
func (s *Service) Index(ctx context.Context, now time.Time) (Index, error) {
	today := timefmt.DayKey(now, s.cfg.Location)
	key := cacheKey(today)

	if s.cache != nil {
		idx, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			logger.From(ctx).Warn("contacts: index cache read failed", zap.String("day", today), zap.Error(err))
		} else if ok {
			return idx, nil
		}
	}

	idx, err := s.build(ctx, today, timefmt.Yesterday(now, s.cfg.Location))
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, idx, s.ttl); err != nil {
			logger.From(ctx).Warn("contacts: index cache write failed", zap.String("day", today), zap.Error(err))
		}
	}
	return idx, nil
}

func (s *Service) build(ctx context.Context, today, yesterday string) (Index, error) {
	var t, y DayRows
	g, gctx := errgroup.WithContext(ctx)
	load := func(day string, into *DayRows) func() error {
		return func() error {
			c, err := s.repo.ListCalls(gctx, day)
			if err != nil {
				return eris.Wrapf(err, "contacts: list calls %s", day)
			}
			m, err := s.repo.ListSMS(gctx, day)
			if err != nil {
				return eris.Wrapf(err, "contacts: list sms %s", day)
			}
			*into = DayRows{Calls: c, SMS: m}
			return nil
		}
	}
	g.Go(load(today, &t))
	g.Go(load(yesterday, &y))
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Build(t, y, s.cfg), nil
}

// Lookup returns the aggregate for one raw phone. Unindexable phones get the
// zero aggregate.
func (s *Service) Lookup(ctx context.Context, raw string, now time.Time) (Aggregate, error) {
	key := phone.Normalize(raw)
	if key == "" {
		return Zero(""), nil
	}
	idx, err := s.Index(ctx, now)
	if err != nil {
		return Aggregate{}, err
	}
	return idx.Get(key), nil
}

// Invalidate drops cached indexes that include today's bucket. Call it after
// a sync appended rows.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	now := s.clock()
	today := timefmt.DayKey(now, s.cfg.Location)
	tomorrow := timefmt.DayKey(now.Add(24*time.Hour), s.cfg.Location)
	return s.cache.Delete(ctx, cacheKey(today), cacheKey(tomorrow))
}

// InvalidateDay drops cached indexes whose window includes day.
func (s *Service) InvalidateDay(ctx context.Context, day string) error {
	if s.cache == nil {
		return nil
	}
	start, _, ok := timefmt.DayRange(day, s.cfg.Location)
	if !ok {
		return eris.Errorf("contacts: invalid day %q", day)
	}
	next := timefmt.DayKey(start.Add(36*time.Hour), s.cfg.Location)
	return s.cache.Delete(ctx, cacheKey(day), cacheKey(next))
}
