package flow

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/careermate/authflow/internal/domain"
)

// retrySchedule yields the wait between exchange tries: exponential from the
// configured base delay, undithered so the waits are predictable, capped so a
// long outage never pushes a single wait past half a minute.
func (s *Service) retrySchedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryBaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // the attempt cap bounds the loop, not wall time
	b.Reset()
	return b
}

// exchange sends the credential to the backend, retrying transient failures
// up to the attempt cap. Non-retryable failures and conflicts surface
// immediately; the caller routes conflicts to resolution.
func (s *Service) exchange(ctx context.Context, m *Machine, provider domain.Provider, cred *domain.Credential) (*domain.UserAccount, error) {
	sched := s.retrySchedule()
	max := s.cfg.MaxAttempts

	for attempt := 1; ; attempt++ {
		m.Attempt().AttemptNumber = attempt
		user, err := s.sendCredential(ctx, cred)
		if err == nil {
			return user, nil
		}

		var de *domain.Error
		if !errors.As(err, &de) {
			de = domain.ErrInternal(err)
		}
		m.Attempt().LastError = de
		if !de.Kind.Retryable() || attempt >= max {
			return nil, de
		}

		if terr := m.Transition(domain.Event{Kind: domain.EventRetryScheduled, Err: de}); terr != nil {
			return nil, terr
		}
		if s.cb.OnRetryAttempt != nil {
			s.cb.OnRetryAttempt(provider, attempt, max, de)
		}
		delay := sched.NextBackOff()
		s.lg.Info().
			Str("provider", string(provider)).
			Int("attempt", attempt).
			Int("max", max).
			Dur("delay", delay).
			Err(de).
			Msg("exchange failed, retrying")
		if err := s.sleep(ctx, delay); err != nil {
			return nil, domain.ErrCancelled()
		}
		if terr := m.Transition(domain.Event{Kind: domain.EventRetryElapsed}); terr != nil {
			return nil, terr
		}
	}
}

// sendCredential routes the credential to the matching exchange endpoint.
// Both delivery methods collapse here: an ID token goes to the google
// exchange, an authorization code to the github one.
func (s *Service) sendCredential(ctx context.Context, cred *domain.Credential) (*domain.UserAccount, error) {
	switch cred.Kind {
	case domain.CredentialIDToken:
		return s.backend.ExchangeGoogle(ctx, cred.IDToken)
	case domain.CredentialAuthCode:
		return s.backend.ExchangeGitHub(ctx, cred.Code, cred.State)
	default:
		return nil, domain.New(domain.KindInternal, "unknown_credential", "credential has no exchangeable payload")
	}
}
