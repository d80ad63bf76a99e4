package security

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/careermate/authflow/internal/domain"
)

// ProfileFromIDToken extracts display claims from a provider ID token without
// verifying the signature. The backend is the verifier of record; the client
// only needs name/email hints for prompts and the conflict dialog.
func ProfileFromIDToken(raw string) (domain.Profile, error) {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return domain.Profile{}, domain.ErrInvalidToken(err)
	}

	return domain.Profile{
		Subject:   claimString(claims, "sub"),
		Email:     claimString(claims, "email"),
		Name:      claimString(claims, "name"),
		AvatarURL: claimString(claims, "picture"),
	}, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
