package backend

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/careermate/authflow/internal/domain"
)

// ---------- request bodies ----------

type googleExchangeRequest struct {
	Token string `json:"token"`
}

type githubExchangeRequest struct {
	Code  string `json:"code"`
	State string `json:"state,omitempty"`
}

type linkRequest struct {
	Provider string `json:"provider"`
	Token    string `json:"token,omitempty"`
	Code     string `json:"code,omitempty"`
}

type unlinkRequest struct {
	Provider string `json:"provider"`
}

type resolveRequest struct {
	Resolution   string          `json:"resolution"`
	ConflictData json.RawMessage `json:"conflict_data"`
	OAuthData    *oauthData      `json:"oauth_data,omitempty"`
}

// oauthData carries the credential of the attempt that raised the conflict so
// a link resolution can complete it server-side.
type oauthData struct {
	ID      string `json:"id,omitempty"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	Token   string `json:"token,omitempty"`
	Code    string `json:"code,omitempty"`
}

type primaryAuthRequest struct {
	PrimaryAuthMethod string `json:"primary_auth_method"`
}

// ---------- response bodies ----------

type authResponse struct {
	Message string      `json:"message"`
	User    userPayload `json:"user"`
}

type resolveResponse struct {
	Action   string       `json:"action"`
	User     *userPayload `json:"user,omitempty"`
	Provider string       `json:"provider,omitempty"`
	Message  string       `json:"message,omitempty"`
}

type providersResponse struct {
	OAuthProviders map[string]providerRecord `json:"oauth_providers"`
	LoginMethods   []string                  `json:"login_methods"`
	HasPassword    bool                      `json:"has_password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type userPayload struct {
	Name              string                    `json:"name"`
	Username          string                    `json:"username"`
	Email             string                    `json:"email"`
	OAuthProviders    map[string]providerRecord `json:"oauth_providers"`
	PrimaryAuthMethod string                    `json:"primary_auth_method"`
	LoginMethods      []string                  `json:"login_methods"`
	HasPassword       bool                      `json:"has_password"`
}

type providerRecord struct {
	ID        flexID `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Picture   string `json:"picture"`
	AvatarURL string `json:"avatar_url"`
	LinkedAt  string `json:"linked_at"`
}

// flexID tolerates both string and numeric provider ids on the wire.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// ---------- mapping ----------

var linkedAtLayouts = []string{
	time.RFC3339,
	http.TimeFormat,
	time.RFC1123,
}

// parseLinkedAt parses the link timestamp in the formats the backend has been
// seen emitting. An unparseable value degrades to the zero time.
func parseLinkedAt(s string) time.Time {
	for _, layout := range linkedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (p *userPayload) toDomain() *domain.UserAccount {
	u := &domain.UserAccount{
		Email:             p.Email,
		Username:          p.Username,
		Name:              p.Name,
		PrimaryAuthMethod: domain.Provider(p.PrimaryAuthMethod),
		HasPassword:       p.HasPassword,
	}

	names := make([]string, 0, len(p.OAuthProviders))
	for name := range p.OAuthProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rec := p.OAuthProviders[name]
		avatar := rec.AvatarURL
		if avatar == "" {
			avatar = rec.Picture
		}
		u.LinkedIdentities = append(u.LinkedIdentities, domain.AuthIdentity{
			Provider:    domain.Provider(name),
			ExternalID:  string(rec.ID),
			Email:       rec.Email,
			DisplayName: rec.Name,
			Username:    rec.Username,
			AvatarURL:   avatar,
			LinkedAt:    parseLinkedAt(rec.LinkedAt),
		})
	}

	for _, m := range p.LoginMethods {
		u.LoginMethods = append(u.LoginMethods, domain.Provider(m))
	}
	// Exchange responses omit login_methods; derive them so the account is
	// usable either way. The primary method stays usable even when it is not
	// derivable from the payload (password login is invisible here).
	if len(u.LoginMethods) == 0 {
		if p.HasPassword {
			u.LoginMethods = append(u.LoginMethods, domain.ProviderEmail)
		}
		for _, id := range u.LinkedIdentities {
			if !u.HasLoginMethod(id.Provider) {
				u.LoginMethods = append(u.LoginMethods, id.Provider)
			}
		}
		if u.PrimaryAuthMethod != "" && !u.HasLoginMethod(u.PrimaryAuthMethod) {
			u.LoginMethods = append([]domain.Provider{u.PrimaryAuthMethod}, u.LoginMethods...)
		}
	}
	return u
}
