package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/careermate/authflow/internal/domain"
	"github.com/careermate/authflow/internal/infrastructure/security"
)

// ErrStateNotFound is returned when a callback presents a state value that
// was never issued, already consumed, or expired.
var ErrStateNotFound = errors.New("pending authorization not found or expired")

const pendingAuthTTL = 10 * time.Minute

// PendingAuth is the per-redirect data parked while the user is away in the
// external agent.
type PendingAuth struct {
	Provider domain.Provider
	Verifier string // PKCE verifier, empty for providers that do not use PKCE
}

type pendingEntry struct {
	data      PendingAuth
	expiresAt time.Time
}

// PendingAuthStore issues state values for authorization redirects and
// consumes them exactly once when the callback comes back. A state that is
// consumed twice (browser refresh on the callback page, replay) fails the
// second time.
type PendingAuthStore struct {
	mu      sync.Mutex
	entries map[string]pendingEntry
}

func NewPendingAuthStore() *PendingAuthStore {
	return &PendingAuthStore{
		entries: make(map[string]pendingEntry),
	}
}

// Begin issues a fresh state value and parks the redirect data under it.
func (s *PendingAuthStore) Begin(data PendingAuth) (string, error) {
	state, err := security.GenerateState()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Cleanup expired
	now := time.Now()
	for k, v := range s.entries {
		if now.After(v.expiresAt) {
			delete(s.entries, k)
		}
	}

	s.entries[state] = pendingEntry{
		data:      data,
		expiresAt: now.Add(pendingAuthTTL),
	}
	return state, nil
}

// Consume validates a callback state and removes it. One-time use.
func (s *PendingAuthStore) Consume(state string) (PendingAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.entries, state)
		return PendingAuth{}, ErrStateNotFound
	}

	delete(s.entries, state)
	return entry.data, nil
}
