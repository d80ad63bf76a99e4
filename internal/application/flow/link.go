package flow

import (
	"context"

	"github.com/careermate/authflow/internal/domain"
)

// Link adds another provider identity to the signed-in account. The
// authorization leg reuses the provider's delivery plan; the credential then
// goes to the link endpoint instead of the exchange one.
func (s *Service) Link(ctx context.Context, provider domain.Provider) (*domain.UserAccount, error) {
	if !domain.IsOAuthProvider(provider) {
		return nil, domain.ErrUnknownProvider(string(provider))
	}
	acct, err := s.store.LoadAccount(ctx)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, domain.ErrNotAuthenticated()
	}
	if _, ok := acct.Identity(provider); ok {
		return nil, domain.ErrProviderAlreadyLinked(provider)
	}
	if err := s.acquire(provider); err != nil {
		return nil, err
	}
	defer s.release(provider)

	plan := s.platform.FlowConfig(provider, s.platform.Detect())
	if err := s.preflight(provider, plan); err != nil {
		return nil, err
	}

	cred, _, err := s.deliver(ctx, provider, plan)
	if err != nil {
		return nil, err
	}

	user, err := s.backend.Link(ctx, cred)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveAccount(ctx, user); err != nil {
		return nil, err
	}
	s.emitAudit("flow.link", map[string]string{
		"provider": string(provider),
		"result":   "ok",
	})
	return user, nil
}
