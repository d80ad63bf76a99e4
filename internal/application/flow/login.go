package flow

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/careermate/authflow/internal/domain"
	pkgctx "github.com/careermate/authflow/internal/pkg/context"
)

// LoginResult is the terminal outcome of one sign-in.
type LoginResult struct {
	// User is set when the attempt ended signed in, including a conflict
	// resolved by linking.
	User *domain.UserAccount
	// Switched reports a conflict resolved by switching accounts: nothing
	// was mutated and the caller may start a fresh attempt.
	Switched bool
}

// Login runs one full sign-in for a provider: connectivity, external
// authorization, credential exchange with retry, and session persistence.
// Account conflicts are driven to resolution through the prompt port before
// Login returns. Cancellations come back as cancelled-kind errors so callers
// can stay quiet about them.
func (s *Service) Login(ctx context.Context, provider domain.Provider) (*LoginResult, error) {
	if !domain.IsOAuthProvider(provider) {
		return nil, domain.ErrUnknownProvider(string(provider))
	}
	if err := s.acquire(provider); err != nil {
		return nil, err
	}
	defer s.release(provider)

	m := s.newMachine(provider)
	// Outbound calls carry the attempt id so server logs correlate with ours.
	ctx = pkgctx.WithAttemptID(ctx, m.Attempt().ID)
	res, err := s.runLogin(ctx, m, provider)
	if err != nil {
		s.finishWithError(m, provider, err)
		return nil, err
	}
	return res, nil
}

func (s *Service) runLogin(ctx context.Context, m *Machine, provider domain.Provider) (*LoginResult, error) {
	if err := m.Transition(domain.Event{Kind: domain.EventBegin}); err != nil {
		return nil, err
	}

	plan := s.platform.FlowConfig(provider, s.platform.Detect())

	// Configuration gaps cannot be fixed by waiting or retrying; reject them
	// before any network traffic, the connectivity probe included.
	if err := s.preflight(provider, plan); err != nil {
		return nil, err
	}

	if !s.net.Online(ctx) {
		if err := m.Transition(domain.Event{Kind: domain.EventOffline}); err != nil {
			return nil, err
		}
		s.lg.Info().Str("provider", string(provider)).Msg("offline, waiting for connectivity")
		if err := s.net.WaitOnline(ctx); err != nil {
			return nil, domain.ErrCancelled()
		}
		if err := m.Transition(domain.Event{Kind: domain.EventConnectivityRestored}); err != nil {
			return nil, err
		}
	}

	cred, err := s.authorize(ctx, m, provider, plan)
	if err != nil {
		return nil, err
	}

	user, err := s.exchange(ctx, m, provider, cred)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) && de.Kind == domain.KindAccountConflict {
			return s.runConflict(ctx, m, provider, cred, de)
		}
		return nil, err
	}

	if err := s.persistSession(ctx, provider, user); err != nil {
		return nil, err
	}
	if err := m.Transition(domain.Event{Kind: domain.EventExchangeSucceeded, User: user}); err != nil {
		return nil, err
	}
	s.emitAudit("flow.login", map[string]string{
		"provider":   string(provider),
		"attempt_id": m.Attempt().ID,
		"attempts":   strconv.Itoa(m.Attempt().AttemptNumber),
		"result":     "ok",
	})
	return &LoginResult{User: user}, nil
}

// preflight rejects plans that cannot possibly deliver. The web method needs
// a client identifier; the native method was already capability-gated when
// the resolver built the plan.
func (s *Service) preflight(provider domain.Provider, plan domain.DeliveryPlan) error {
	for _, method := range plan.Methods() {
		if method != domain.MethodWeb || s.cfg.ClientIDs[provider] != "" {
			return nil
		}
	}
	return domain.ErrMissingClientID(provider)
}

// authorize runs the external leg of a sign-in attempt, moving the machine
// through AWAITING_EXTERNAL_RESPONSE.
func (s *Service) authorize(ctx context.Context, m *Machine, provider domain.Provider, plan domain.DeliveryPlan) (*domain.Credential, error) {
	if err := m.Transition(domain.Event{Kind: domain.EventAgentOpened}); err != nil {
		return nil, err
	}
	cred, method, err := s.deliver(ctx, provider, plan)
	if err != nil {
		return nil, err
	}
	m.Attempt().Method = method
	if err := m.Transition(domain.Event{Kind: domain.EventCredentialReceived, Credential: cred}); err != nil {
		return nil, err
	}
	return cred, nil
}

// deliver walks the plan in order until a method yields a credential. Methods
// that turn out unconfigured at run time fall through to the next one; any
// other failure stops the walk.
func (s *Service) deliver(ctx context.Context, provider domain.Provider, plan domain.DeliveryPlan) (*domain.Credential, domain.Method, error) {
	var lastCfg *domain.Error
	for _, method := range plan.Methods() {
		cred, err := s.agent.Authorize(ctx, provider, method)
		if err == nil {
			return cred, method, nil
		}
		if domain.KindOf(err) == domain.KindConfig {
			errors.As(err, &lastCfg)
			s.lg.Warn().Err(err).
				Str("provider", string(provider)).
				Str("method", string(method)).
				Msg("delivery method unavailable")
			continue
		}
		return nil, method, err
	}
	nde := domain.ErrNoDeliveryMethod(provider)
	if lastCfg != nil {
		nde.Cause = lastCfg
	}
	return nil, "", nde
}

// persistSession stores the fresh account and its session record. The write
// replaces whatever identity was stored before, which is also what clears
// stale artifacts after an account switch.
func (s *Service) persistSession(ctx context.Context, provider domain.Provider, user *domain.UserAccount) error {
	if err := s.store.SaveAccount(ctx, user); err != nil {
		return err
	}
	now := time.Now()
	return s.store.SaveSession(ctx, &domain.OAuthSession{
		Provider:      provider,
		SessionCookie: s.backend.SessionCookie(),
		CreatedAt:     now,
		ExpiresAt:     now.Add(domain.SessionTTL(provider)),
	})
}

// finishWithError lands the machine on the right terminal state for err and
// reports through the logger, callbacks and audit. Cancelled outcomes stay
// non-alarming.
func (s *Service) finishWithError(m *Machine, provider domain.Provider, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		de = domain.ErrInternal(err)
	}

	if !m.State().Terminal() {
		var ev domain.Event
		switch {
		case m.State() == domain.StateConflict:
			ev = domain.Event{Kind: domain.EventConflictCancelled, Err: de}
		case de.Kind == domain.KindCancelled:
			ev = domain.Event{Kind: domain.EventUserCancelled, Err: de}
		default:
			ev = domain.Event{Kind: domain.EventFlowFailed, Err: de}
		}
		if terr := m.Transition(ev); terr != nil {
			// Cancellation can arrive in states with no cancel edge; the
			// failure edge is the fallback terminal.
			_ = m.Transition(domain.Event{Kind: domain.EventFlowFailed, Err: de})
		}
	}

	if s.cb.OnError != nil {
		s.cb.OnError(provider, de)
	}

	evt := s.lg.Info()
	if de.Kind.Alarming() {
		evt = s.lg.Warn()
	}
	evt.Err(de).
		Str("provider", string(provider)).
		Str("attempt_id", m.Attempt().ID).
		Str("state", string(m.State())).
		Msg("sign-in did not complete")

	result := "error"
	if de.Kind == domain.KindCancelled {
		result = "cancelled"
	}
	s.emitAudit("flow.login", map[string]string{
		"provider":   string(provider),
		"attempt_id": m.Attempt().ID,
		"result":     result,
		"code":       de.Code,
	})
}
