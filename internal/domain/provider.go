package domain

// Provider represents supported authentication providers
type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// OAuthProviders are the providers delivered through an OAuth flow.
// Email stands for password login and never goes through the orchestrator.
var OAuthProviders = []Provider{ProviderGoogle, ProviderGitHub}

// IsValidProvider checks if the provider is supported
func IsValidProvider(p string) bool {
	switch Provider(p) {
	case ProviderEmail, ProviderGoogle, ProviderGitHub:
		return true
	default:
		return false
	}
}

// IsOAuthProvider checks if the provider is delivered through OAuth
func IsOAuthProvider(p Provider) bool {
	return p == ProviderGoogle || p == ProviderGitHub
}

// Method is the OAuth delivery mechanism for one attempt.
type Method string

const (
	// MethodNative delivers through a signed-in platform helper; the
	// provider hands back an ID token directly, no code exchange.
	MethodNative Method = "native"
	// MethodWeb delivers through the system browser and a loopback
	// redirect carrying an authorization code.
	MethodWeb Method = "web"
)

// CredentialKind distinguishes the two shapes an external agent can return.
type CredentialKind string

const (
	CredentialIDToken  CredentialKind = "id_token"
	CredentialAuthCode CredentialKind = "auth_code"
)

// Credential is the normalized payload of a completed external authorization.
// Both delivery paths collapse into this shape before the backend call.
type Credential struct {
	Provider Provider
	Kind     CredentialKind
	IDToken  string // set when Kind == CredentialIDToken
	Code     string // set when Kind == CredentialAuthCode
	State    string // anti-forgery state echoed by the redirect, web path only

	// Profile carries display hints parsed client-side from the credential
	// (name, email). Informational only; the backend does the validation.
	Profile Profile
}

// Profile is the client-side view of who just authorized. Never trusted for
// authorization decisions.
type Profile struct {
	Subject   string
	Email     string
	Name      string
	Username  string
	AvatarURL string
}
