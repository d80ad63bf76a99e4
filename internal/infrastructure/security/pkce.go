package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/careermate/authflow/internal/domain"
)

// GeneratePKCE generates a code_verifier and code_challenge for PKCE
func GeneratePKCE() (verifier, challenge string, err error) {
	// Generate 32 bytes of random data for verifier
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", domain.ErrRandomFailed(err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(b)

	// Generate challenge = base64url(sha256(verifier))
	h := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(h[:])

	return verifier, challenge, nil
}

// GenerateState generates the anti-forgery state parameter for the redirect
// round trip.
func GenerateState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", domain.ErrRandomFailed(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
