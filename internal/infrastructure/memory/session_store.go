package memory

import (
	"context"
	"sync"

	"github.com/careermate/authflow/internal/domain"
	"github.com/careermate/authflow/internal/infrastructure/storage"
)

// SessionStore keeps the session records in process memory. Used when no
// durable storage is configured and in tests; everything is lost on exit.
type SessionStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		records: make(map[string][]byte),
	}
}

func (s *SessionStore) put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = value
}

func (s *SessionStore) get(key string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[key]
}

func (s *SessionStore) SaveAccount(_ context.Context, u *domain.UserAccount) error {
	b, err := storage.EncodeAccount(u)
	if err != nil {
		return domain.ErrStorage("encode_account", err)
	}
	s.put(storage.KeyUserAccount, b)
	return nil
}

func (s *SessionStore) LoadAccount(_ context.Context) (*domain.UserAccount, error) {
	b := s.get(storage.KeyUserAccount)
	if b == nil {
		return nil, nil
	}
	return storage.DecodeAccount(b)
}

func (s *SessionStore) SaveSession(_ context.Context, sess *domain.OAuthSession) error {
	b, err := storage.EncodeSession(sess)
	if err != nil {
		return domain.ErrStorage("encode_session", err)
	}
	s.put(storage.KeyOAuthSession, b)
	return nil
}

func (s *SessionStore) LoadSession(_ context.Context) (*domain.OAuthSession, error) {
	b := s.get(storage.KeyOAuthSession)
	if b == nil {
		return nil, nil
	}
	return storage.DecodeSession(b)
}

func (s *SessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, storage.KeyUserAccount)
	delete(s.records, storage.KeyOAuthSession)
	return nil
}
