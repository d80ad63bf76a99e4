package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/careermate/authflow/internal/domain"
	"github.com/careermate/authflow/internal/infrastructure/security"
	"github.com/careermate/authflow/internal/infrastructure/storage"
)

const vaultFile = "session.vault"

// Store keeps the session records in a single encrypted file. The whole
// vault is sealed and rewritten on every save so a crash mid-write can
// never leave a half-updated record behind.
type Store struct {
	mu     sync.Mutex
	path   string
	sealer *security.Sealer
}

func New(dir string, sealer *security.Sealer) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, domain.ErrStorage("mkdir", err)
	}
	return &Store{path: filepath.Join(dir, vaultFile), sealer: sealer}, nil
}

// ---------- helpers ----------

func (s *Store) read() (map[string]json.RawMessage, error) {
	sealed, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, domain.ErrStorage("read_vault", err)
	}

	plain, err := s.sealer.Open(sealed)
	if err != nil {
		return nil, domain.ErrStorage("open_vault", err)
	}

	records := map[string]json.RawMessage{}
	if err := json.Unmarshal(plain, &records); err != nil {
		return nil, domain.ErrStorage("decode_vault", err)
	}
	return records, nil
}

func (s *Store) write(records map[string]json.RawMessage) error {
	plain, err := json.Marshal(records)
	if err != nil {
		return domain.ErrStorage("encode_vault", err)
	}

	sealed, err := s.sealer.Seal(plain)
	if err != nil {
		return domain.ErrStorage("seal_vault", err)
	}

	// Write to a sibling temp file first, then rename over the vault.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return domain.ErrStorage("write_vault", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return domain.ErrStorage("rename_vault", err)
	}
	return nil
}

func (s *Store) put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	records[key] = value
	return s.write(records)
}

func (s *Store) get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return nil, err
	}
	return records[key], nil
}

// ---------- flow.SessionStore ----------

func (s *Store) SaveAccount(_ context.Context, u *domain.UserAccount) error {
	b, err := storage.EncodeAccount(u)
	if err != nil {
		return domain.ErrStorage("encode_account", err)
	}
	return s.put(storage.KeyUserAccount, b)
}

func (s *Store) LoadAccount(_ context.Context) (*domain.UserAccount, error) {
	b, err := s.get(storage.KeyUserAccount)
	if err != nil || b == nil {
		return nil, err
	}
	return storage.DecodeAccount(b)
}

func (s *Store) SaveSession(_ context.Context, sess *domain.OAuthSession) error {
	b, err := storage.EncodeSession(sess)
	if err != nil {
		return domain.ErrStorage("encode_session", err)
	}
	return s.put(storage.KeyOAuthSession, b)
}

func (s *Store) LoadSession(_ context.Context) (*domain.OAuthSession, error) {
	b, err := s.get(storage.KeyOAuthSession)
	if err != nil || b == nil {
		return nil, err
	}
	return storage.DecodeSession(b)
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return domain.ErrStorage("clear", err)
	}
	return nil
}
