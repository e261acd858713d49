package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotisserie/eris"

	"leadbot/internal/eventlog"
)

// SQLRepo keeps audit events in an insert-only audit_events table next to
// the event log.
type SQLRepo struct {
	db      *sql.DB
	dialect eventlog.Dialect
}

func NewSQLRepo(db *sql.DB, dialect eventlog.Dialect) *SQLRepo {
	return &SQLRepo{db: db, dialect: dialect}
}

func (r *SQLRepo) ph(n int) string {
	if r.dialect == eventlog.DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (r *SQLRepo) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
	id            TEXT PRIMARY KEY,
	type          TEXT NOT NULL,
	run_id        TEXT NOT NULL DEFAULT '',
	actor_user_id TEXT NOT NULL DEFAULT '',
	actor_role    TEXT NOT NULL DEFAULT '',
	kind          TEXT NOT NULL DEFAULT '',
	day           TEXT NOT NULL DEFAULT '',
	fetched       INTEGER NOT NULL DEFAULT 0,
	new_count     INTEGER NOT NULL DEFAULT 0,
	total         INTEGER NOT NULL DEFAULT 0,
	stage         TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_type_created ON audit_events(type, created_at)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return eris.Wrap(err, "audit: migrate")
		}
	}
	return nil
}

func (r *SQLRepo) Append(ctx context.Context, e Event) error {
	q := fmt.Sprintf(`INSERT INTO audit_events
	(id, type, run_id, actor_user_id, actor_role, kind, day, fetched, new_count, total, stage, error, message, created_at)
	VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		r.ph(1), r.ph(2), r.ph(3), r.ph(4), r.ph(5), r.ph(6), r.ph(7),
		r.ph(8), r.ph(9), r.ph(10), r.ph(11), r.ph(12), r.ph(13), r.ph(14))
	_, err := r.db.ExecContext(ctx, q,
		e.ID, string(e.Type), e.RunID, e.ActorUserID, e.ActorRole, e.Kind, e.Day,
		e.Fetched, e.NewCount, e.Total, e.Stage, e.Error, e.Message, e.CreatedAt.UTC())
	if err != nil {
		return eris.Wrap(err, "audit: insert event")
	}
	return nil
}

func (r *SQLRepo) Recent(ctx context.Context, t EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, type, run_id, actor_user_id, actor_role, kind, day, fetched, new_count, total, stage, error, message, created_at
	FROM audit_events`
	args := []any{}
	if t != "" {
		q += " WHERE type = " + r.ph(1)
		args = append(args, string(t))
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "audit: query events")
	}
	defer rows.Close() //nolint:errcheck

	var out []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(&e.ID, &typ, &e.RunID, &e.ActorUserID, &e.ActorRole, &e.Kind, &e.Day,
			&e.Fetched, &e.NewCount, &e.Total, &e.Stage, &e.Error, &e.Message, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "audit: scan event")
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "audit: iterate events")
}
