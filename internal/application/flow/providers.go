package flow

import (
	"context"

	"github.com/careermate/authflow/internal/domain"
)

// Providers fetches the linked-provider overview from the backend.
func (s *Service) Providers(ctx context.Context) (*domain.ProviderOverview, error) {
	return s.backend.Providers(ctx)
}

// SetPrimaryAuth changes the preferred login method and mirrors the change
// into the local account record.
func (s *Service) SetPrimaryAuth(ctx context.Context, provider domain.Provider) (*domain.UserAccount, error) {
	if !domain.IsValidProvider(string(provider)) {
		return nil, domain.ErrUnknownProvider(string(provider))
	}
	user, err := s.backend.SetPrimaryAuth(ctx, provider)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveAccount(ctx, user); err != nil {
		return nil, err
	}
	s.emitAudit("flow.set_primary", map[string]string{
		"provider": string(provider),
		"result":   "ok",
	})
	return user, nil
}
