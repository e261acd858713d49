package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"leadbot/pkg/logger"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
	Recent(ctx context.Context, t EventType, limit int) ([]Event, error)
}

// Service records sync summaries and outbound sends.
//
// Callers treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.Type == EventTypeSyncRun && (e.Kind == "" || e.Day == "") {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogSyncRun records the outcome of one sync kind. Failures are logged and
// swallowed.
func (s *Service) LogSyncRun(ctx context.Context, sum SyncSummary) {
	e := Event{
		Type:     EventTypeSyncRun,
		RunID:    sum.RunID,
		Kind:     sum.Kind,
		Day:      sum.Day,
		Fetched:  sum.Fetched,
		NewCount: sum.NewCount,
		Total:    sum.Total,
		Stage:    sum.Stage,
		Message:  "sync completed",
	}
	if sum.Err != nil {
		e.Error = sum.Err.Error()
		e.Message = "sync failed"
	}
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit: sync run not recorded", zap.String("run_id", sum.RunID), zap.Error(err))
	}
}

// LogImport records rows loaded from a tracker export.
func (s *Service) LogImport(ctx context.Context, sum SyncSummary) {
	e := Event{
		Type:     EventTypeImport,
		RunID:    sum.RunID,
		Kind:     sum.Kind,
		Day:      sum.Day,
		Fetched:  sum.Fetched,
		NewCount: sum.NewCount,
		Total:    sum.Total,
		Message:  "import completed",
	}
	if sum.Err != nil {
		e.Error = sum.Err.Error()
		e.Message = "import failed"
	}
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit: import not recorded", zap.Error(err))
	}
}

// LogSMSSent records an outbound text sent through the API.
func (s *Service) LogSMSSent(ctx context.Context, actorUserID, actorRole, toKey, messageID string) {
	err := s.Append(ctx, Event{
		Type:        EventTypeSMSSent,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		Message:     "sms to " + toKey + " id " + messageID,
	})
	if err != nil {
		logger.From(ctx).Warn("audit: sms send not recorded", zap.Error(err))
	}
}

// Recent returns the newest events of a type.
func (s *Service) Recent(ctx context.Context, t EventType, limit int) ([]Event, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	return s.repo.Recent(ctx, t, limit)
}
