// Package postgres persists the marketplace session in a single-row table.
// Single row because multi-account support is deliberately out of scope.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/estoquel/restocker/internal/session"
)

// DBTX may be a pgx pool or an open transaction (handy in tests)
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// name of the single session row; there is no multi-account support
const sessionName = "default"

type Store struct {
	DB DBTX
}

func NewStore(db DBTX) *Store {
	return &Store{DB: db}
}

const loadSession = `-- name: Load session triple
SELECT access_token, refresh_token, user_id
FROM sessions
WHERE name = $1
`

// Load returns the stored session. Absent row means "nothing stored yet"
// and yields a zero session without error, like a missing key-value entry.
func (s *Store) Load(ctx context.Context) (session.Session, error) {
	rows, _ := s.DB.Query(ctx, loadSession, sessionName)
	sess, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (session.Session, error) {
		var t session.Session
		err := row.Scan(&t.AccessToken, &t.RefreshToken, &t.UserID)
		return t, err
	})

	switch {
	case err == nil:
		return sess, nil
	case errors.Is(err, pgx.ErrNoRows):
		return session.Session{}, nil
	default:
		return session.Session{}, fmt.Errorf("db error: %w", err)
	}
}

const saveSession = `-- name: Save session triple (overwrite semantics)
INSERT INTO sessions (name, access_token, refresh_token, user_id, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (name) DO UPDATE
SET access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    user_id = EXCLUDED.user_id,
    updated_at = EXCLUDED.updated_at
`

func (s *Store) Save(ctx context.Context, sess session.Session) error {
	_, err := s.DB.Exec(ctx, saveSession, sessionName, sess.AccessToken, sess.RefreshToken, sess.UserID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const clearSession = `-- name: Clear session
DELETE FROM sessions WHERE name = $1
`

// Clear removes the stored session. Clearing an empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, clearSession, sessionName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
