package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/careermate/authflow/internal/domain"
)

/*
Shared audit capture
*/

type auditEntry struct {
	action string
	fields map[string]string
}

/*
Fakes for ports
*/

type fakeStore struct {
	mu sync.Mutex

	account *domain.UserAccount
	session *domain.OAuthSession

	// injected errors (if set, method returns error)
	saveAccountErr error
	loadAccountErr error
	saveSessionErr error
	loadSessionErr error
	clearErr       error

	// record calls
	clearCalls int
}

func (f *fakeStore) SaveAccount(ctx context.Context, u *domain.UserAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveAccountErr != nil {
		return f.saveAccountErr
	}
	f.account = u
	return nil
}

func (f *fakeStore) LoadAccount(ctx context.Context) (*domain.UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loadAccountErr != nil {
		return nil, f.loadAccountErr
	}
	return f.account, nil
}

func (f *fakeStore) SaveSession(ctx context.Context, sess *domain.OAuthSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveSessionErr != nil {
		return f.saveSessionErr
	}
	f.session = sess
	return nil
}

func (f *fakeStore) LoadSession(ctx context.Context) (*domain.OAuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loadSessionErr != nil {
		return nil, f.loadSessionErr
	}
	return f.session, nil
}

func (f *fakeStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.clearCalls++
	if f.clearErr != nil {
		return f.clearErr
	}
	f.account = nil
	f.session = nil
	return nil
}

func (f *fakeStore) storedAccount() *domain.UserAccount {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.account
}

func (f *fakeStore) storedSession() *domain.OAuthSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

type githubCode struct{ code, state string }

type fakeBackend struct {
	mu sync.Mutex

	// user is what successful calls hand back.
	user *domain.UserAccount

	// exchangeErrs is consumed one entry per exchange call; nil entries and
	// calls past the end succeed.
	exchangeErrs  []error
	exchangeCalls int
	idTokens      []string
	codes         []githubCode

	linkErr     error
	linkedCreds []*domain.Credential

	unlinkErr error
	unlinked  []domain.Provider

	// resolveErrs is consumed one entry per ResolveConflict call.
	resolveErrs    []error
	resolveCalls   []domain.Resolution
	resolveCases   []*domain.ConflictCase
	resolveOutcome *domain.ConflictOutcome

	overview     *domain.ProviderOverview
	providersErr error

	setPrimaryErr error
	primaries     []domain.Provider

	logoutErr   error
	logoutCalls int

	cookie   string
	restored []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		user: &domain.UserAccount{
			Email:             "dev@example.com",
			Username:          "dev",
			Name:              "Dev Example",
			PrimaryAuthMethod: domain.ProviderGoogle,
			LinkedIdentities: []domain.AuthIdentity{
				{Provider: domain.ProviderGoogle, ExternalID: "sub-1", Email: "dev@example.com"},
			},
			LoginMethods: []domain.Provider{domain.ProviderGoogle},
		},
		cookie: "session=abc123",
	}
}

func (f *fakeBackend) popExchangeErr() error {
	if len(f.exchangeErrs) == 0 {
		return nil
	}
	err := f.exchangeErrs[0]
	f.exchangeErrs = f.exchangeErrs[1:]
	return err
}

func (f *fakeBackend) ExchangeGoogle(ctx context.Context, idToken string) (*domain.UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.exchangeCalls++
	f.idTokens = append(f.idTokens, idToken)
	if err := f.popExchangeErr(); err != nil {
		return nil, err
	}
	return f.user, nil
}

func (f *fakeBackend) ExchangeGitHub(ctx context.Context, code, state string) (*domain.UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.exchangeCalls++
	f.codes = append(f.codes, githubCode{code, state})
	if err := f.popExchangeErr(); err != nil {
		return nil, err
	}
	return f.user, nil
}

func (f *fakeBackend) Link(ctx context.Context, cred *domain.Credential) (*domain.UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.linkedCreds = append(f.linkedCreds, cred)
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	return f.user, nil
}

func (f *fakeBackend) Unlink(ctx context.Context, p domain.Provider) (*domain.UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.unlinked = append(f.unlinked, p)
	if f.unlinkErr != nil {
		return nil, f.unlinkErr
	}
	return f.user, nil
}

func (f *fakeBackend) ResolveConflict(ctx context.Context, res domain.Resolution, cc *domain.ConflictCase) (*domain.ConflictOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resolveCalls = append(f.resolveCalls, res)
	f.resolveCases = append(f.resolveCases, cc)
	if len(f.resolveErrs) > 0 {
		err := f.resolveErrs[0]
		f.resolveErrs = f.resolveErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.resolveOutcome != nil {
		return f.resolveOutcome, nil
	}
	switch res {
	case domain.ResolutionLink:
		return &domain.ConflictOutcome{Action: domain.ActionLinked, User: f.user, Provider: cc.AttemptedProvider}, nil
	case domain.ResolutionSwitch:
		return &domain.ConflictOutcome{Action: domain.ActionSwitch, Provider: cc.AttemptedProvider}, nil
	default:
		return &domain.ConflictOutcome{Action: domain.ActionCancelled, Provider: cc.AttemptedProvider}, nil
	}
}

func (f *fakeBackend) Providers(ctx context.Context) (*domain.ProviderOverview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.providersErr != nil {
		return nil, f.providersErr
	}
	if f.overview != nil {
		return f.overview, nil
	}
	return &domain.ProviderOverview{
		Identities:   f.user.LinkedIdentities,
		LoginMethods: f.user.LoginMethods,
	}, nil
}

func (f *fakeBackend) SetPrimaryAuth(ctx context.Context, p domain.Provider) (*domain.UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.primaries = append(f.primaries, p)
	if f.setPrimaryErr != nil {
		return nil, f.setPrimaryErr
	}
	return f.user, nil
}

func (f *fakeBackend) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeBackend) SessionCookie() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cookie
}

func (f *fakeBackend) RestoreSessionCookie(serialized string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = append(f.restored, serialized)
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls
}

type agentCall struct {
	provider domain.Provider
	method   domain.Method
}

type fakeAgent struct {
	mu sync.Mutex

	cred         *domain.Credential
	authorizeErr error
	errByMethod  map[domain.Method]error

	// blockAuthorize, when set, parks Authorize until the channel closes.
	blockAuthorize chan struct{}

	authCalls []agentCall

	signOutErr error
	signedOut  []domain.Provider
}

func (f *fakeAgent) Authorize(ctx context.Context, provider domain.Provider, method domain.Method) (*domain.Credential, error) {
	f.mu.Lock()
	f.authCalls = append(f.authCalls, agentCall{provider, method})
	block := f.blockAuthorize
	methodErr := f.errByMethod[method]
	err := f.authorizeErr
	cred := f.cred
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, domain.ErrCancelled()
		}
	}
	if methodErr != nil {
		return nil, methodErr
	}
	if err != nil {
		return nil, err
	}
	if cred != nil {
		return cred, nil
	}
	return &domain.Credential{
		Provider: provider,
		Kind:     domain.CredentialIDToken,
		IDToken:  "idt-" + string(provider),
		Profile:  domain.Profile{Email: "dev@example.com"},
	}, nil
}

func (f *fakeAgent) SignOut(ctx context.Context, provider domain.Provider) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.signedOut = append(f.signedOut, provider)
	return f.signOutErr
}

func (f *fakeAgent) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.authCalls)
}

func (f *fakeAgent) calls() []agentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]agentCall, len(f.authCalls))
	copy(out, f.authCalls)
	return out
}

type fakeNet struct {
	mu sync.Mutex

	online  bool
	waitErr error

	onlineCalls int
	waitCalls   int
}

func newFakeNet() *fakeNet {
	return &fakeNet{online: true}
}

func (f *fakeNet) Online(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onlineCalls++
	return f.online
}

func (f *fakeNet) WaitOnline(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitCalls++
	if f.waitErr != nil {
		return f.waitErr
	}
	f.online = true
	return nil
}

type fakeResolver struct {
	plat  domain.Platform
	caps  domain.Capabilities
	plans map[domain.Provider]domain.DeliveryPlan
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		plat: domain.PlatformLinux,
		caps: domain.Capabilities{
			BrowserRedirectAvailable: true,
			RecommendedStorage:       domain.StorageSQLite,
		},
	}
}

func (f *fakeResolver) Detect() domain.Platform { return f.plat }

func (f *fakeResolver) Capabilities(p domain.Platform) domain.Capabilities { return f.caps }

func (f *fakeResolver) FlowConfig(provider domain.Provider, p domain.Platform) domain.DeliveryPlan {
	if plan, ok := f.plans[provider]; ok {
		return plan
	}
	return domain.DeliveryPlan{Preferred: domain.MethodWeb}
}

type fakePrompt struct {
	mu sync.Mutex

	choice    domain.Resolution
	chooseErr error

	// retryAnswers is consumed one entry per RetryLink call; calls past the
	// end answer false.
	retryAnswers []bool

	cases      []*domain.ConflictCase
	retryAsked int
}

func (f *fakePrompt) Choose(ctx context.Context, cc *domain.ConflictCase) (domain.Resolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cases = append(f.cases, cc)
	if f.chooseErr != nil {
		return "", f.chooseErr
	}
	if f.choice == "" {
		return domain.ResolutionCancel, nil
	}
	return f.choice, nil
}

func (f *fakePrompt) RetryLink(ctx context.Context, cc *domain.ConflictCase, cause error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.retryAsked++
	if len(f.retryAnswers) == 0 {
		return false
	}
	ans := f.retryAnswers[0]
	f.retryAnswers = f.retryAnswers[1:]
	return ans
}

/*
Service factory for tests
*/

func newSvcForTest(t *testing.T) (*Service, *fakeStore, *fakeBackend, *fakeAgent, *fakeNet, *fakeResolver, *fakePrompt, *[]auditEntry) {
	t.Helper()

	store := &fakeStore{}
	backend := newFakeBackend()
	agent := &fakeAgent{}
	net := newFakeNet()
	resolver := newFakeResolver()
	prompt := &fakePrompt{}

	audits := &[]auditEntry{}
	cfg := Config{
		ClientIDs: map[domain.Provider]string{
			domain.ProviderGoogle: "google-client-id",
			domain.ProviderGitHub: "github-client-id",
		},
		MaxAttempts:    3,
		RetryBaseDelay: 5 * time.Millisecond,
	}

	svc := NewService(store, backend, agent, net, resolver, prompt, cfg, zerolog.Nop()).
		WithAudit(func(action string, fields map[string]string) {
			cp := map[string]string{}
			for k, v := range fields {
				cp[k] = v
			}
			*audits = append(*audits, auditEntry{action: action, fields: cp})
		})

	// Tests that care about backoff timing override sleep themselves.
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	if svc == nil {
		t.Fatalf("svc is nil")
	}
	return svc, store, backend, agent, net, resolver, prompt, audits
}

/*
Small assertions
*/

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached in time")
}

func lastAudit(audits *[]auditEntry) (auditEntry, bool) {
	if audits == nil || len(*audits) == 0 {
		return auditEntry{}, false
	}
	return (*audits)[len(*audits)-1], true
}

func findAudit(audits *[]auditEntry, action string) (auditEntry, bool) {
	for _, e := range *audits {
		if e.action == action {
			return e, true
		}
	}
	return auditEntry{}, false
}

func requireAuditAction(t *testing.T, audits *[]auditEntry, wantAction string) auditEntry {
	t.Helper()
	e, ok := lastAudit(audits)
	if !ok {
		t.Fatalf("expected audit entry, got none")
	}
	if e.action != wantAction {
		t.Fatalf("expected audit action %q, got %q", wantAction, e.action)
	}
	return e
}

func requireAuditField(t *testing.T, e auditEntry, k, want string) {
	t.Helper()
	if got := e.fields[k]; got != want {
		t.Fatalf("expected audit field %q=%q, got %q (all=%v)", k, want, got, e.fields)
	}
}
