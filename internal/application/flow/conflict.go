package flow

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/careermate/authflow/internal/domain"
)

// conflictCase builds the local case for a conflict reported by the backend,
// keeping the raw details payload for the verbatim echo on resolution.
func conflictCase(de *domain.Error, pending *domain.Credential) (*domain.ConflictCase, error) {
	attempted := domain.Provider(de.Meta["attempted_provider"])
	if attempted == "" && pending != nil {
		attempted = pending.Provider
	}
	cc, err := domain.NewConflictCase(
		uuid.NewString(),
		de.Meta["email"],
		attempted,
		domain.ProvidersFromMeta(de.Meta["existing_providers"]),
		de.Meta["suggested_action"],
		pending,
	)
	if err != nil {
		return nil, err
	}
	cc.Details = []byte(de.Meta["details"])
	return cc, nil
}

// runConflict owns the CONFLICT leg of a sign-in: build the case, ask the
// user, drive the chosen resolution to a terminal state.
func (s *Service) runConflict(ctx context.Context, m *Machine, provider domain.Provider, cred *domain.Credential, de *domain.Error) (*LoginResult, error) {
	cc, err := conflictCase(de, cred)
	if err != nil {
		return nil, err
	}
	if terr := m.Transition(domain.Event{Kind: domain.EventConflictDetected, Conflict: cc, Err: de}); terr != nil {
		return nil, terr
	}
	s.lg.Info().
		Str("provider", string(provider)).
		Str("case_id", cc.ID).
		Str("existing", joinProviders(cc.ExistingProviders)).
		Msg("account conflict detected")

	outcome, err := s.resolveCase(ctx, cc)
	if err != nil {
		return nil, err
	}

	switch outcome.Action {
	case domain.ActionLinked:
		if err := s.persistSession(ctx, provider, outcome.User); err != nil {
			return nil, err
		}
		if terr := m.Transition(domain.Event{Kind: domain.EventConflictLinked, User: outcome.User}); terr != nil {
			return nil, terr
		}
		s.emitAudit("flow.login", map[string]string{
			"provider":   string(provider),
			"attempt_id": m.Attempt().ID,
			"result":     "linked",
		})
		return &LoginResult{User: outcome.User}, nil

	case domain.ActionSwitch:
		if terr := m.Transition(domain.Event{Kind: domain.EventConflictSwitched}); terr != nil {
			return nil, terr
		}
		s.emitAudit("flow.login", map[string]string{
			"provider":   string(provider),
			"attempt_id": m.Attempt().ID,
			"result":     "switched",
		})
		return &LoginResult{Switched: true}, nil

	default:
		if terr := m.Transition(domain.Event{Kind: domain.EventConflictCancelled}); terr != nil {
			return nil, terr
		}
		return nil, domain.ErrCancelled()
	}
}

// resolveCase asks the user and performs the resolution against the backend.
// Exactly one resolution per case; the guard rejects a concurrent second
// dialog and a replay of a closed case.
func (s *Service) resolveCase(ctx context.Context, cc *domain.ConflictCase) (*domain.ConflictOutcome, error) {
	if err := s.beginResolution(cc.ID); err != nil {
		return nil, err
	}
	closed := false
	defer func() { s.endResolution(cc.ID, closed) }()

	choice, err := s.prompt.Choose(ctx, cc)
	if err != nil || !domain.IsValidResolution(string(choice)) {
		choice = domain.ResolutionCancel
	}
	s.emitAudit("flow.conflict", map[string]string{
		"case_id":    cc.ID,
		"email":      cc.Email,
		"provider":   string(cc.AttemptedProvider),
		"resolution": string(choice),
	})

	outcome, err := s.performResolution(ctx, choice, cc)
	if err != nil {
		return nil, err
	}
	closed = true
	return outcome, nil
}

// performResolution executes the user's choice. Linking must succeed on the
// backend; switch and cancel settle locally and only notify it.
func (s *Service) performResolution(ctx context.Context, choice domain.Resolution, cc *domain.ConflictCase) (*domain.ConflictOutcome, error) {
	switch choice {
	case domain.ResolutionLink:
		// The link step stays retryable at the user's request; the dialog
		// remains open until it works or the user gives up.
		for {
			outcome, err := s.backend.ResolveConflict(ctx, domain.ResolutionLink, cc)
			if err == nil {
				return outcome, nil
			}
			s.lg.Warn().Err(err).Str("case_id", cc.ID).Msg("link resolution failed")
			if !s.prompt.RetryLink(ctx, cc, err) {
				return nil, err
			}
		}

	case domain.ResolutionSwitch:
		// The backend is told so it can drop the pending credential; a
		// failed notification does not block switching locally.
		if _, err := s.backend.ResolveConflict(ctx, domain.ResolutionSwitch, cc); err != nil {
			s.lg.Warn().Err(err).Str("case_id", cc.ID).Msg("switch notification failed")
		}
		return &domain.ConflictOutcome{Action: domain.ActionSwitch, Provider: cc.AttemptedProvider}, nil

	default:
		if _, err := s.backend.ResolveConflict(ctx, domain.ResolutionCancel, cc); err != nil {
			s.lg.Warn().Err(err).Str("case_id", cc.ID).Msg("cancel notification failed")
		}
		return &domain.ConflictOutcome{Action: domain.ActionCancelled, Provider: cc.AttemptedProvider}, nil
	}
}

func joinProviders(ps []domain.Provider) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}
