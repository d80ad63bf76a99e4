package flow

import (
	"context"

	"github.com/careermate/authflow/internal/domain"
)

// Unlink removes a provider identity. The backend enforces the account
// invariants (never the last method, never the primary); its answer is the
// new truth and replaces the local record.
func (s *Service) Unlink(ctx context.Context, provider domain.Provider) (*domain.UserAccount, error) {
	if !domain.IsValidProvider(string(provider)) {
		return nil, domain.ErrUnknownProvider(string(provider))
	}
	acct, err := s.store.LoadAccount(ctx)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, domain.ErrNotAuthenticated()
	}

	user, err := s.backend.Unlink(ctx, provider)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveAccount(ctx, user); err != nil {
		return nil, err
	}
	s.emitAudit("flow.unlink", map[string]string{
		"provider": string(provider),
		"result":   "ok",
	})
	return user, nil
}
