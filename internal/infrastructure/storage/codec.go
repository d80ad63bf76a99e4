// Package storage defines the serialized session records shared by the
// sqlite, file and memory backends. Backends store opaque bytes under the two
// well-known keys; this package owns the byte format.
package storage

import (
	"encoding/json"
	"time"

	"github.com/careermate/authflow/internal/domain"
)

const (
	KeyUserAccount  = "careermate.user"
	KeyOAuthSession = "careermate.oauth_session"
)

type identityRecord struct {
	Provider    string    `json:"provider"`
	ExternalID  string    `json:"external_id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Username    string    `json:"username,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	LinkedAt    time.Time `json:"linked_at"`
}

type accountRecord struct {
	Email             string           `json:"email"`
	Username          string           `json:"username"`
	Name              string           `json:"name"`
	PrimaryAuthMethod string           `json:"primary_auth_method"`
	LinkedIdentities  []identityRecord `json:"linked_identities"`
	LoginMethods      []string         `json:"login_methods"`
	HasPassword       bool             `json:"has_password"`
}

type sessionRecord struct {
	Provider      string    `json:"provider"`
	SessionCookie string    `json:"session_cookie,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func EncodeAccount(u *domain.UserAccount) ([]byte, error) {
	rec := accountRecord{
		Email:             u.Email,
		Username:          u.Username,
		Name:              u.Name,
		PrimaryAuthMethod: string(u.PrimaryAuthMethod),
		LoginMethods:      make([]string, 0, len(u.LoginMethods)),
		HasPassword:       u.HasPassword,
	}
	for _, id := range u.LinkedIdentities {
		rec.LinkedIdentities = append(rec.LinkedIdentities, identityRecord{
			Provider:    string(id.Provider),
			ExternalID:  id.ExternalID,
			Email:       id.Email,
			DisplayName: id.DisplayName,
			Username:    id.Username,
			AvatarURL:   id.AvatarURL,
			LinkedAt:    id.LinkedAt,
		})
	}
	for _, m := range u.LoginMethods {
		rec.LoginMethods = append(rec.LoginMethods, string(m))
	}
	return json.Marshal(rec)
}

func DecodeAccount(b []byte) (*domain.UserAccount, error) {
	var rec accountRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, domain.ErrStorage("decode_account", err)
	}

	u := &domain.UserAccount{
		Email:             rec.Email,
		Username:          rec.Username,
		Name:              rec.Name,
		PrimaryAuthMethod: domain.Provider(rec.PrimaryAuthMethod),
		HasPassword:       rec.HasPassword,
	}
	for _, id := range rec.LinkedIdentities {
		u.LinkedIdentities = append(u.LinkedIdentities, domain.AuthIdentity{
			Provider:    domain.Provider(id.Provider),
			ExternalID:  id.ExternalID,
			Email:       id.Email,
			DisplayName: id.DisplayName,
			Username:    id.Username,
			AvatarURL:   id.AvatarURL,
			LinkedAt:    id.LinkedAt,
		})
	}
	for _, m := range rec.LoginMethods {
		u.LoginMethods = append(u.LoginMethods, domain.Provider(m))
	}
	if err := u.Validate(); err != nil {
		return nil, domain.ErrStorage("decode_account", err)
	}
	return u, nil
}

func EncodeSession(s *domain.OAuthSession) ([]byte, error) {
	return json.Marshal(sessionRecord{
		Provider:      string(s.Provider),
		SessionCookie: s.SessionCookie,
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
	})
}

func DecodeSession(b []byte) (*domain.OAuthSession, error) {
	var rec sessionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, domain.ErrStorage("decode_session", err)
	}
	return &domain.OAuthSession{
		Provider:      domain.Provider(rec.Provider),
		SessionCookie: rec.SessionCookie,
		CreatedAt:     rec.CreatedAt,
		ExpiresAt:     rec.ExpiresAt,
	}, nil
}
