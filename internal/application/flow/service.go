package flow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careermate/authflow/internal/domain"
)

// Config carries the orchestrator tunables. Zero values fall back to the
// defaults in NewService.
type Config struct {
	// ClientIDs maps each OAuth provider to its client identifier. An empty
	// entry makes the web method undeliverable for that provider.
	ClientIDs map[domain.Provider]string
	// MaxAttempts bounds exchange tries per credential, first try included.
	MaxAttempts int
	// RetryBaseDelay seeds the exponential backoff between exchange tries.
	RetryBaseDelay time.Duration
}

// Service is the authentication orchestrator. One Service serves the whole
// process; per-attempt state lives in a Machine created for each sign-in.
type Service struct {
	store    SessionStore
	backend  Backend
	agent    ExternalAgent
	net      Connectivity
	platform PlatformResolver
	prompt   ConflictPrompt

	cfg Config
	lg  zerolog.Logger
	cb  Callbacks

	audit func(action string, fields map[string]string)
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	inflight  map[domain.Provider]bool
	resolving string          // conflict case mid-dialog, at most one
	resolved  map[string]bool // conflict cases already closed
}

func NewService(store SessionStore, backend Backend, agent ExternalAgent, net Connectivity, platform PlatformResolver, prompt ConflictPrompt, cfg Config, lg zerolog.Logger) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	return &Service{
		store:    store,
		backend:  backend,
		agent:    agent,
		net:      net,
		platform: platform,
		prompt:   prompt,
		cfg:      cfg,
		lg:       lg,
		sleep:    sleepCtx,
		inflight: make(map[domain.Provider]bool),
		resolved: make(map[string]bool),
	}
}

// WithAudit sets the audit sink. Chainable, call before first use.
func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	s.audit = fn
	return s
}

// WithCallbacks sets the progress observers. Chainable, call before first use.
func (s *Service) WithCallbacks(cb Callbacks) *Service {
	s.cb = cb
	return s
}

func (s *Service) emitAudit(action string, fields map[string]string) {
	if s.audit != nil {
		s.audit(action, fields)
	}
}

// acquire marks a provider's flow in flight. A second begin for the same
// provider fails fast instead of spawning a duplicate attempt.
func (s *Service) acquire(p domain.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[p] {
		return domain.ErrAuthInProgress(p)
	}
	s.inflight[p] = true
	return nil
}

func (s *Service) release(p domain.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, p)
}

// beginResolution claims a conflict case for resolution. Each case resolves
// exactly once, and only one dialog runs at a time.
func (s *Service) beginResolution(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved[id] {
		return domain.ErrConflictAlreadyResolved()
	}
	if s.resolving != "" {
		return domain.ErrResolutionInProgress()
	}
	s.resolving = id
	return nil
}

func (s *Service) endResolution(id string, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolving == id {
		s.resolving = ""
	}
	if closed {
		s.resolved[id] = true
	}
}

// newMachine builds the per-attempt state machine, with transitions logged
// and forwarded to the state-change callback.
func (s *Service) newMachine(provider domain.Provider) *Machine {
	att := &domain.OAuthAttempt{
		ID:          uuid.NewString(),
		Provider:    provider,
		StartedAt:   time.Now(),
		MaxAttempts: s.cfg.MaxAttempts,
	}
	return NewMachine(provider, att, func(from, to domain.FlowState, ev domain.Event) {
		s.lg.Debug().
			Str("provider", string(provider)).
			Str("attempt_id", att.ID).
			Str("event", string(ev.Kind)).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("flow transition")
		if s.cb.OnStateChange != nil {
			s.cb.OnStateChange(provider, from, to)
		}
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
