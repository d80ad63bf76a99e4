package agent

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/careermate/authflow/internal/config"
	"github.com/careermate/authflow/internal/domain"
	"github.com/careermate/authflow/internal/infrastructure/memory"
	"github.com/careermate/authflow/internal/infrastructure/security"
	"github.com/careermate/authflow/internal/transport/loopback"
)

const exchangeTimeout = 10 * time.Second

// defaultEndpoints pins the provider authorization and token endpoints.
// GitHub carries no token URL: its code is exchanged by the backend, which
// holds the client secret.
func defaultEndpoints() map[domain.Provider]oauth2.Endpoint {
	return map[domain.Provider]oauth2.Endpoint{
		domain.ProviderGoogle: {
			AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:  "https://oauth2.googleapis.com/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		domain.ProviderGitHub: {
			AuthURL: "https://github.com/login/oauth/authorize",
		},
	}
}

var providerScopes = map[domain.Provider][]string{
	domain.ProviderGoogle: {"openid", "email", "profile"},
	domain.ProviderGitHub: {"user:email", "read:user"},
}

// BrowserAgent runs the web delivery path: it opens the provider's
// authorization page in the system browser and catches the redirect on a
// loopback listener. Google authorizations carry a PKCE challenge and the
// code is exchanged client-side for an ID token; GitHub codes are handed
// through untouched.
type BrowserAgent struct {
	cfg    *config.Config
	states *memory.PendingAuthStore
	opener Opener
	lg     zerolog.Logger

	endpoints map[domain.Provider]oauth2.Endpoint
	httpc     *http.Client
}

func NewBrowserAgent(cfg *config.Config, states *memory.PendingAuthStore, opener Opener, lg zerolog.Logger) *BrowserAgent {
	return &BrowserAgent{
		cfg:       cfg,
		states:    states,
		opener:    opener,
		lg:        lg,
		endpoints: defaultEndpoints(),
		httpc:     &http.Client{Timeout: exchangeTimeout},
	}
}

// Authorize runs one browser round trip. It blocks until the redirect comes
// back or ctx ends; there is no deadline on the user.
func (a *BrowserAgent) Authorize(ctx context.Context, provider domain.Provider) (*domain.Credential, error) {
	clientID := a.cfg.ClientID(string(provider))
	if clientID == "" {
		return nil, domain.ErrMissingClientID(provider)
	}
	endpoint, ok := a.endpoints[provider]
	if !ok {
		return nil, domain.ErrUnknownProvider(string(provider))
	}

	var verifier, challenge string
	if provider == domain.ProviderGoogle {
		var err error
		verifier, challenge, err = security.GeneratePKCE()
		if err != nil {
			return nil, err
		}
	}

	state, err := a.states.Begin(memory.PendingAuth{Provider: provider, Verifier: verifier})
	if err != nil {
		return nil, err
	}

	srv, err := loopback.Start(a.states, a.cfg.CallbackPorts, a.lg)
	if err != nil {
		return nil, err
	}
	defer srv.Stop(context.Background())

	conf := &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: srv.RedirectURI(),
		Scopes:      providerScopes[provider],
		Endpoint:    endpoint,
	}

	var opts []oauth2.AuthCodeOption
	if provider == domain.ProviderGoogle {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", challenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
			oauth2.SetAuthURLParam("prompt", "select_account"),
		)
	}

	authURL := conf.AuthCodeURL(state, opts...)
	a.lg.Info().Str("provider", string(provider)).Str("redirect_uri", srv.RedirectURI()).Msg("opening browser for authorization")
	if err := a.opener.Open(ctx, authURL); err != nil {
		return nil, domain.Wrap(domain.KindInternal, "browser_open_failed", "could not open the authorization page", err)
	}

	res, err := srv.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if res.Auth.Provider != provider {
		return nil, domain.New(domain.KindInternal, "callback_mismatch", "callback does not belong to this sign-in attempt")
	}

	if provider == domain.ProviderGitHub {
		return &domain.Credential{
			Provider: provider,
			Kind:     domain.CredentialAuthCode,
			Code:     res.Code,
			State:    res.State,
		}, nil
	}
	return a.exchangeGoogle(ctx, conf, res)
}

// exchangeGoogle trades the authorization code for tokens at Google's token
// endpoint. Public client: the PKCE verifier stands in for a secret.
func (a *BrowserAgent) exchangeGoogle(ctx context.Context, conf *oauth2.Config, res loopback.Result) (*domain.Credential, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpc)
	tok, err := conf.Exchange(ctx, res.Code, oauth2.VerifierOption(res.Auth.Verifier))
	if err != nil {
		return nil, exchangeError(err)
	}

	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return nil, domain.ErrInvalidToken(errors.New("token response carried no id_token"))
	}

	profile, err := security.ProfileFromIDToken(raw)
	if err != nil {
		return nil, err
	}

	return &domain.Credential{
		Provider: domain.ProviderGoogle,
		Kind:     domain.CredentialIDToken,
		IDToken:  raw,
		Profile:  profile,
	}, nil
}

// exchangeError classifies a token-endpoint failure. A rejection of the code
// is final; a 5xx or transport failure is the retryable family.
func exchangeError(err error) error {
	var rerr *oauth2.RetrieveError
	switch {
	case errors.As(err, &rerr):
		if rerr.Response != nil && rerr.Response.StatusCode >= http.StatusInternalServerError {
			return domain.ErrProviderUnavailable(domain.ProviderGoogle, err)
		}
		return domain.ErrProviderError("authorization code was rejected", err)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrTimeout(err)
	case errors.Is(err, context.Canceled):
		return domain.ErrCancelled()
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return domain.ErrTimeout(err)
	}
	return domain.ErrNetwork(err)
}
