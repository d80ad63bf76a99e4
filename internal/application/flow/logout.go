package flow

import (
	"context"

	"github.com/careermate/authflow/internal/domain"
)

// Logout ends the session everywhere it can reach. The backend call and the
// per-provider agent sign-outs are best effort; the local store is always
// cleared, and only a failure to clear it comes back as an error.
func (s *Service) Logout(ctx context.Context) error {
	acct, err := s.store.LoadAccount(ctx)
	if err != nil {
		s.lg.Warn().Err(err).Msg("loading account before logout failed")
	}

	if err := s.backend.Logout(ctx); err != nil {
		s.lg.Warn().Err(err).Msg("backend logout failed")
	}

	if acct != nil {
		for _, id := range acct.LinkedIdentities {
			if !domain.IsOAuthProvider(id.Provider) {
				continue
			}
			if err := s.agent.SignOut(ctx, id.Provider); err != nil {
				s.lg.Warn().Err(err).
					Str("provider", string(id.Provider)).
					Msg("provider sign-out failed")
			}
		}
	}

	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.emitAudit("flow.logout", map[string]string{"result": "ok"})
	return nil
}
