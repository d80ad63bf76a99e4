package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/careermate/authflow/internal/domain"
	"github.com/careermate/authflow/internal/infrastructure/storage"
)

// Store persists the session records in a local sqlite database. Writes are
// whole-record replaces; there is no partial update to roll back.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, domain.ErrStorage("migrate", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	const q = `
CREATE TABLE IF NOT EXISTS session_kv (
    key        TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	_, err := s.db.Exec(q)
	return err
}

// ---------- helpers ----------

func (s *Store) put(ctx context.Context, key string, value []byte) error {
	const q = `
INSERT INTO session_kv (key, value, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP;
`
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return domain.ErrStorage("put", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT value FROM session_kv WHERE key = ? LIMIT 1;`

	var value []byte
	err := s.db.QueryRowContext(ctx, q, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.ErrStorage("get", err)
	}
	return value, nil
}

// ---------- flow.SessionStore ----------

func (s *Store) SaveAccount(ctx context.Context, u *domain.UserAccount) error {
	b, err := storage.EncodeAccount(u)
	if err != nil {
		return domain.ErrStorage("encode_account", err)
	}
	return s.put(ctx, storage.KeyUserAccount, b)
}

func (s *Store) LoadAccount(ctx context.Context) (*domain.UserAccount, error) {
	b, err := s.get(ctx, storage.KeyUserAccount)
	if err != nil || b == nil {
		return nil, err
	}
	return storage.DecodeAccount(b)
}

func (s *Store) SaveSession(ctx context.Context, sess *domain.OAuthSession) error {
	b, err := storage.EncodeSession(sess)
	if err != nil {
		return domain.ErrStorage("encode_session", err)
	}
	return s.put(ctx, storage.KeyOAuthSession, b)
}

func (s *Store) LoadSession(ctx context.Context) (*domain.OAuthSession, error) {
	b, err := s.get(ctx, storage.KeyOAuthSession)
	if err != nil || b == nil {
		return nil, err
	}
	return storage.DecodeSession(b)
}

// Clear removes the account and session records together.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ErrStorage("clear", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `DELETE FROM session_kv WHERE key IN (?, ?);`
	if _, err := tx.ExecContext(ctx, q, storage.KeyUserAccount, storage.KeyOAuthSession); err != nil {
		return domain.ErrStorage("clear", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.ErrStorage("clear", err)
	}
	return nil
}
