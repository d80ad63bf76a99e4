// Package flow orchestrates authentication attempts end to end: platform
// resolution, external authorization, credential exchange with retry, account
// conflict resolution, and session persistence. It reaches the outside world
// only through the ports declared here.
package flow

import (
	"context"

	"github.com/careermate/authflow/internal/domain"
)

/*
SessionStore
------------
Local persistence for the signed-in account and the backend session record.
Load methods return nil without error when nothing is stored.
*/
type SessionStore interface {
	SaveAccount(ctx context.Context, u *domain.UserAccount) error
	LoadAccount(ctx context.Context) (*domain.UserAccount, error)
	SaveSession(ctx context.Context, sess *domain.OAuthSession) error
	LoadSession(ctx context.Context) (*domain.OAuthSession, error)
	Clear(ctx context.Context) error
}

/*
Backend
-------
The careermate API. Credential exchange, identity management and conflict
resolution all happen server side; failures come back already classified as
domain errors.
*/
type Backend interface {
	ExchangeGoogle(ctx context.Context, idToken string) (*domain.UserAccount, error)
	ExchangeGitHub(ctx context.Context, code, state string) (*domain.UserAccount, error)
	Link(ctx context.Context, cred *domain.Credential) (*domain.UserAccount, error)
	Unlink(ctx context.Context, p domain.Provider) (*domain.UserAccount, error)
	ResolveConflict(ctx context.Context, res domain.Resolution, cc *domain.ConflictCase) (*domain.ConflictOutcome, error)
	Providers(ctx context.Context) (*domain.ProviderOverview, error)
	SetPrimaryAuth(ctx context.Context, p domain.Provider) (*domain.UserAccount, error)
	Logout(ctx context.Context) error
	SessionCookie() string
	RestoreSessionCookie(serialized string)
}

/*
ExternalAgent
-------------
Hands the user to the provider and returns the resulting credential. Blocks
until the user completes or abandons authorization; an abandon surfaces as a
cancelled-kind error.
*/
type ExternalAgent interface {
	Authorize(ctx context.Context, provider domain.Provider, method domain.Method) (*domain.Credential, error)
	SignOut(ctx context.Context, provider domain.Provider) error
}

/*
Connectivity
------------
Network reachability. WaitOnline blocks until the network is back or the
context ends.
*/
type Connectivity interface {
	Online(ctx context.Context) bool
	WaitOnline(ctx context.Context) error
}

/*
PlatformResolver
----------------
Answers what the current platform can do and how a provider's flow should be
delivered on it.
*/
type PlatformResolver interface {
	Detect() domain.Platform
	Capabilities(p domain.Platform) domain.Capabilities
	FlowConfig(provider domain.Provider, p domain.Platform) domain.DeliveryPlan
}

/*
ConflictPrompt
--------------
The user-facing half of conflict resolution. Choose presents one case and
returns the user's decision; RetryLink asks whether a failed link step should
be tried again. Implementations decide how the question is asked (terminal,
dialog); the orchestrator only cares about the answer.
*/
type ConflictPrompt interface {
	Choose(ctx context.Context, cc *domain.ConflictCase) (domain.Resolution, error)
	RetryLink(ctx context.Context, cc *domain.ConflictCase, cause error) bool
}

// Callbacks observe attempt progress. Every field is optional; nil entries
// are skipped. Invoked synchronously on the attempt's goroutine, so they must
// not block for long.
type Callbacks struct {
	OnStateChange  func(provider domain.Provider, from, to domain.FlowState)
	OnRetryAttempt func(provider domain.Provider, attempt, max int, err error)
	OnError        func(provider domain.Provider, err error)
}
