package telephony

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"leadbot/internal/eventlog"
)

// StoredToken is the last refresh token issued for a client. Seed is the
// configured token it descends from; when configuration carries a different
// seed the operator has re-provisioned and the stored chain is stale.
type StoredToken struct {
	Seed         string
	RefreshToken string
	UpdatedAt    time.Time
}

// TokenStore persists rotated refresh tokens across processes, keyed by
// OAuth client id.
type TokenStore interface {
	LoadRefreshToken(ctx context.Context, key string) (StoredToken, bool, error)
	SaveRefreshToken(ctx context.Context, key string, tok StoredToken) error
}

type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]StoredToken
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]StoredToken{}}
}

func (s *MemoryTokenStore) LoadRefreshToken(_ context.Context, key string) (StoredToken, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[key]
	return tok, ok, nil
}

func (s *MemoryTokenStore) SaveRefreshToken(_ context.Context, key string, tok StoredToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = tok
	return nil
}

// SQLTokenStore keeps one row per client in oauth_tokens.
type SQLTokenStore struct {
	db      *sql.DB
	dialect eventlog.Dialect
}

func NewSQLTokenStore(db *sql.DB, dialect eventlog.Dialect) *SQLTokenStore {
	return &SQLTokenStore{db: db, dialect: dialect}
}

func (s *SQLTokenStore) ph(n int) string {
	if s.dialect == eventlog.DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLTokenStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS oauth_tokens (
	client_id     TEXT PRIMARY KEY,
	seed          TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL,
	updated_at    TIMESTAMP NOT NULL
)`)
	return eris.Wrap(err, "telephony: migrate token store")
}

func (s *SQLTokenStore) LoadRefreshToken(ctx context.Context, key string) (StoredToken, bool, error) {
	var tok StoredToken
	err := s.db.QueryRowContext(ctx,
		`SELECT seed, refresh_token, updated_at FROM oauth_tokens WHERE client_id = `+s.ph(1), key,
	).Scan(&tok.Seed, &tok.RefreshToken, &tok.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredToken{}, false, nil
	}
	if err != nil {
		return StoredToken{}, false, eris.Wrap(err, "telephony: load refresh token")
	}
	return tok, true, nil
}

// SaveRefreshToken upserts the row; both drivers accept ON CONFLICT.
func (s *SQLTokenStore) SaveRefreshToken(ctx context.Context, key string, tok StoredToken) error {
	q := fmt.Sprintf(`INSERT INTO oauth_tokens (client_id, seed, refresh_token, updated_at)
	VALUES (%s, %s, %s, %s)
	ON CONFLICT (client_id) DO UPDATE SET
		seed = excluded.seed,
		refresh_token = excluded.refresh_token,
		updated_at = excluded.updated_at`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	_, err := s.db.ExecContext(ctx, q, key, tok.Seed, tok.RefreshToken, tok.UpdatedAt.UTC())
	return eris.Wrap(err, "telephony: save refresh token")
}
