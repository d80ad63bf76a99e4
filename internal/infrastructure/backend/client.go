// Package backend is the HTTP client for the careermate API. It owns the
// wire contract: request/response shapes, the error_type vocabulary, and the
// cookie-based session. Callers see domain types and domain errors only.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/careermate/authflow/internal/domain"
	pkgctx "github.com/careermate/authflow/internal/pkg/context"
)

const defaultTimeout = 8 * time.Second

// Client talks to the careermate API on behalf of one device session.
type Client struct {
	base    *url.URL
	httpc   *http.Client
	jar     *cookiejar.Jar
	timeout time.Duration
}

// NewClient builds a client for the given API base URL, e.g.
// "https://api.careermate.dev/api". The timeout bounds each individual call;
// zero selects the default.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, domain.ErrConfigInvalid("API base URL must be absolute")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, domain.ErrInternal(err)
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base:    base,
		jar:     jar,
		httpc:   &http.Client{Jar: jar},
		timeout: timeout,
	}, nil
}

// ---------- session cookie ----------

// SessionCookie serializes the API session cookies for persistence.
func (c *Client) SessionCookie() string {
	cookies := c.jar.Cookies(c.base)
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}

// RestoreSessionCookie primes the cookie jar from a persisted session record.
func (c *Client) RestoreSessionCookie(serialized string) {
	if serialized == "" {
		return
	}
	var cookies []*http.Cookie
	for _, pair := range strings.Split(serialized, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	c.jar.SetCookies(c.base, cookies)
}

// ---------- operations ----------

// ExchangeGoogle posts a verified Google ID token and signs the session in.
func (c *Client) ExchangeGoogle(ctx context.Context, idToken string) (*domain.UserAccount, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/oauth/google", googleExchangeRequest{Token: idToken}, &resp); err != nil {
		return nil, err
	}
	return resp.User.toDomain(), nil
}

// ExchangeGitHub posts a GitHub authorization code; the server holds the
// client secret and completes the code exchange itself.
func (c *Client) ExchangeGitHub(ctx context.Context, code, state string) (*domain.UserAccount, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/oauth/github", githubExchangeRequest{Code: code, State: state}, &resp); err != nil {
		return nil, err
	}
	return resp.User.toDomain(), nil
}

// Link attaches the credential's provider to the signed-in account.
func (c *Client) Link(ctx context.Context, cred *domain.Credential) (*domain.UserAccount, error) {
	req := linkRequest{Provider: string(cred.Provider)}
	switch cred.Kind {
	case domain.CredentialIDToken:
		req.Token = cred.IDToken
	case domain.CredentialAuthCode:
		req.Code = cred.Code
	}

	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/oauth/link", req, &resp); err != nil {
		return nil, err
	}
	return resp.User.toDomain(), nil
}

// Unlink detaches a provider from the signed-in account.
func (c *Client) Unlink(ctx context.Context, p domain.Provider) (*domain.UserAccount, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/oauth/unlink", unlinkRequest{Provider: string(p)}, &resp); err != nil {
		return nil, err
	}
	return resp.User.toDomain(), nil
}

// ResolveConflict reports the user's choice for a pending conflict case. The
// conflict payload is echoed back exactly as received.
func (c *Client) ResolveConflict(ctx context.Context, res domain.Resolution, cc *domain.ConflictCase) (*domain.ConflictOutcome, error) {
	req := resolveRequest{
		Resolution:   string(res),
		ConflictData: conflictPayload(cc),
		OAuthData:    oauthDataFrom(cc.Pending),
	}

	var resp resolveResponse
	if err := c.do(ctx, http.MethodPost, "/oauth/resolve-conflict", req, &resp); err != nil {
		return nil, err
	}

	out := &domain.ConflictOutcome{
		Action:   domain.ConflictAction(resp.Action),
		Provider: domain.Provider(resp.Provider),
	}
	if resp.User != nil {
		out.User = resp.User.toDomain()
	}
	return out, nil
}

// Providers lists the linked providers and usable login methods.
func (c *Client) Providers(ctx context.Context) (*domain.ProviderOverview, error) {
	var resp providersResponse
	if err := c.do(ctx, http.MethodGet, "/oauth/providers", nil, &resp); err != nil {
		return nil, err
	}

	ov := &domain.ProviderOverview{HasPassword: resp.HasPassword}
	names := make([]string, 0, len(resp.OAuthProviders))
	for name := range resp.OAuthProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rec := resp.OAuthProviders[name]
		avatar := rec.AvatarURL
		if avatar == "" {
			avatar = rec.Picture
		}
		ov.Identities = append(ov.Identities, domain.AuthIdentity{
			Provider:    domain.Provider(name),
			ExternalID:  string(rec.ID),
			Email:       rec.Email,
			DisplayName: rec.Name,
			Username:    rec.Username,
			AvatarURL:   avatar,
			LinkedAt:    parseLinkedAt(rec.LinkedAt),
		})
	}
	for _, m := range resp.LoginMethods {
		ov.LoginMethods = append(ov.LoginMethods, domain.Provider(m))
	}
	return ov, nil
}

// SetPrimaryAuth changes the account's primary sign-in method.
func (c *Client) SetPrimaryAuth(ctx context.Context, p domain.Provider) (*domain.UserAccount, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/oauth/primary-auth", primaryAuthRequest{PrimaryAuthMethod: string(p)}, &resp); err != nil {
		return nil, err
	}
	return resp.User.toDomain(), nil
}

// Logout terminates the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	var resp messageResponse
	return c.do(ctx, http.MethodPost, "/logout", nil, &resp)
}

// ---------- helpers ----------

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return domain.ErrInternal(err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return domain.ErrInternal(err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if id := pkgctx.GetAttemptID(ctx); id != "" {
		req.Header.Set("X-Attempt-ID", id)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ErrNetwork(err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return domain.Wrap(domain.KindInternal, "bad_response", "malformed server response", err)
		}
	}
	return nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTimeout(err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.ErrCancelled()
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.ErrTimeout(err)
	}
	return domain.ErrNetwork(err)
}

// conflictPayload prefers the raw payload the server sent; a case built
// locally is serialized from its fields.
func conflictPayload(cc *domain.ConflictCase) json.RawMessage {
	if len(cc.Details) > 0 {
		return json.RawMessage(cc.Details)
	}
	providers := make([]string, 0, len(cc.ExistingProviders))
	for _, p := range cc.ExistingProviders {
		providers = append(providers, string(p))
	}
	b, _ := json.Marshal(conflictDetails{
		Email:             cc.Email,
		ExistingProviders: providers,
		AttemptedProvider: string(cc.AttemptedProvider),
		SuggestedAction:   cc.SuggestedAction,
	})
	return b
}

func oauthDataFrom(cred *domain.Credential) *oauthData {
	if cred == nil {
		return nil
	}
	od := &oauthData{}
	switch cred.Kind {
	case domain.CredentialIDToken:
		od.Token = cred.IDToken
		od.ID = cred.Profile.Subject
		od.Email = cred.Profile.Email
		od.Name = cred.Profile.Name
		od.Picture = cred.Profile.AvatarURL
	case domain.CredentialAuthCode:
		od.Code = cred.Code
	}
	return od
}
