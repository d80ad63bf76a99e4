package domain

import "time"

// OAuthSession is the auxiliary persisted record next to the account: which
// provider signed in, the backend session cookie, and when it lapses. Cleared
// together with the account on logout.
type OAuthSession struct {
	Provider Provider
	// SessionCookie holds the backend session cookie (name=value); the
	// backend authenticates management calls through it.
	SessionCookie string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the session has lapsed at now.
func (s *OAuthSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// SessionTTL is the provider-specific session lifetime the backend applies
// when it does not state one (google 1h, github 8h).
func SessionTTL(p Provider) time.Duration {
	switch p {
	case ProviderGitHub:
		return 8 * time.Hour
	default:
		return time.Hour
	}
}
