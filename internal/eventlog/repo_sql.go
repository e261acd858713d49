package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"leadbot/internal/calls"
	"leadbot/internal/sms"
	"leadbot/pkg/utils"
)

// Dialect selects placeholder style and DDL for the SQL repository.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLRepo stores rows in call_events / sms_events tables.
// Works against Postgres (pgx stdlib driver) and SQLite (modernc driver).
type SQLRepo struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLRepo(db *sql.DB, dialect Dialect) *SQLRepo {
	return &SQLRepo{db: db, dialect: dialect}
}

func (r *SQLRepo) idColumn() string {
	if r.dialect == DialectPostgres {
		return "id BIGSERIAL PRIMARY KEY"
	}
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}

// ph returns the n-th (1-based) bind placeholder.
func (r *SQLRepo) ph(n int) string {
	if r.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Migrate creates the event tables if they do not exist.
func (r *SQLRepo) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS call_events (
	` + r.idColumn() + `,
	day        TEXT NOT NULL,
	direction  TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	date       TEXT NOT NULL DEFAULT '',
	time       TEXT NOT NULL DEFAULT '',
	action     TEXT NOT NULL DEFAULT '',
	result     TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL DEFAULT '',
	duration   TEXT NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS sms_events (
	` + r.idColumn() + `,
	day             TEXT NOT NULL,
	direction       TEXT NOT NULL DEFAULT '',
	type            TEXT NOT NULL DEFAULT '',
	message_type    TEXT NOT NULL DEFAULT '',
	sender_phone    TEXT NOT NULL DEFAULT '',
	sender_name     TEXT NOT NULL DEFAULT '',
	recipient_phone TEXT NOT NULL DEFAULT '',
	recipient_name  TEXT NOT NULL DEFAULT '',
	date_time       TEXT NOT NULL DEFAULT '',
	segment_count   TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT '',
	detailed_error  TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_call_events_day ON call_events(day, id)`,
		`CREATE INDEX IF NOT EXISTS idx_sms_events_day ON sms_events(day, id)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return eris.Wrap(err, "eventlog: migrate")
		}
	}
	return nil
}

func (r *SQLRepo) insertSQL(table string, cols []string) string {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = r.ph(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(ph, ", "))
}

var callColumns = []string{"day", "direction", "type", "phone", "name", "date", "time", "action", "result", "reason", "duration"}

var smsColumns = []string{"day", "direction", "type", "message_type", "sender_phone", "sender_name", "recipient_phone", "recipient_name", "date_time", "segment_count", "status", "detailed_error"}

// AppendCalls writes all rows in one transaction.
func (r *SQLRepo) AppendCalls(ctx context.Context, day string, rows []calls.Row) error {
	if err := validDay(day); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	q := r.insertSQL("call_events", callColumns)
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, q)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck
		for _, row := range rows {
			args := []any{day}
			for _, c := range row.Cells() {
				args = append(args, c)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return err
			}
		}
		return nil
	})
	return eris.Wrapf(err, "eventlog: append %d call rows", len(rows))
}

// AppendSMS writes all rows in one transaction.
func (r *SQLRepo) AppendSMS(ctx context.Context, day string, rows []sms.Row) error {
	if err := validDay(day); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	q := r.insertSQL("sms_events", smsColumns)
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, q)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck
		for _, row := range rows {
			args := []any{day}
			for _, c := range row.Cells() {
				args = append(args, c)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return err
			}
		}
		return nil
	})
	return eris.Wrapf(err, "eventlog: append %d sms rows", len(rows))
}

func (r *SQLRepo) ListCalls(ctx context.Context, day string) ([]calls.Row, error) {
	if err := validDay(day); err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM call_events WHERE day = %s ORDER BY id", strings.Join(callColumns[1:], ", "), r.ph(1))
	rs, err := r.db.QueryContext(ctx, q, day)
	if err != nil {
		return nil, eris.Wrap(err, "eventlog: list calls")
	}
	defer rs.Close() //nolint:errcheck

	var out []calls.Row
	for rs.Next() {
		var c calls.Row
		if err := rs.Scan(&c.Direction, &c.Type, &c.Phone, &c.Name, &c.Date, &c.Time, &c.Action, &c.Result, &c.Reason, &c.Duration); err != nil {
			return nil, eris.Wrap(err, "eventlog: scan call row")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rs.Err(), "eventlog: iterate call rows")
}

func (r *SQLRepo) ListSMS(ctx context.Context, day string) ([]sms.Row, error) {
	if err := validDay(day); err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM sms_events WHERE day = %s ORDER BY id", strings.Join(smsColumns[1:], ", "), r.ph(1))
	rs, err := r.db.QueryContext(ctx, q, day)
	if err != nil {
		return nil, eris.Wrap(err, "eventlog: list sms")
	}
	defer rs.Close() //nolint:errcheck

	var out []sms.Row
	for rs.Next() {
		var m sms.Row
		if err := rs.Scan(&m.Direction, &m.Type, &m.MessageType, &m.SenderPhone, &m.SenderName, &m.RecipientPhone, &m.RecipientName, &m.DateTime, &m.SegmentCount, &m.Status, &m.DetailedError); err != nil {
			return nil, eris.Wrap(err, "eventlog: scan sms row")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rs.Err(), "eventlog: iterate sms rows")
}
