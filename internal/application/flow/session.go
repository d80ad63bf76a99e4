package flow

import (
	"context"
	"time"

	"github.com/careermate/authflow/internal/domain"
)

// Status is the locally known authentication state. A lapsed session keeps
// its account record around for display but reports unauthenticated.
type Status struct {
	Authenticated bool
	Expired       bool
	User          *domain.UserAccount
	Session       *domain.OAuthSession
}

// Status reports what the local store knows without touching the network.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	acct, err := s.store.LoadAccount(ctx)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return &Status{}, nil
	}
	sess, err := s.store.LoadSession(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{Authenticated: true, User: acct, Session: sess}
	if sess != nil && sess.Expired(time.Now()) {
		st.Authenticated = false
		st.Expired = true
	}
	return st, nil
}

// Restore rehydrates the backend session from the persisted record. Called
// once at startup; a missing or lapsed session is not an error.
func (s *Service) Restore(ctx context.Context) error {
	sess, err := s.store.LoadSession(ctx)
	if err != nil || sess == nil {
		return err
	}
	if sess.Expired(time.Now()) {
		return nil
	}
	if sess.SessionCookie != "" {
		s.backend.RestoreSessionCookie(sess.SessionCookie)
	}
	return nil
}
