package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/careermate/authflow/internal/domain"
)

// Sealer seals and opens the session vault payload using XChaCha20-Poly1305.
type Sealer struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// NewSealer builds a sealer from the configured vault key, a 64-character hex
// string (32 bytes decoded).
func NewSealer(hexKey string) (*Sealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, domain.ErrVaultKey()
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, domain.ErrVaultKey()
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts one plaintext payload. The result is nonce || ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	// The nonce must be unique per encryption under the same key.
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, domain.ErrRandomFailed(err)
	}

	ciphertext := s.aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ciphertext...), nil
}

// Open decrypts a previously sealed payload.
func (s *Sealer) Open(payload []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(payload) < nonceSize {
		return nil, fmt.Errorf("sealed payload is too short")
	}
	// Payload format is nonce || ciphertext.
	nonce := payload[:nonceSize]
	ciphertext := payload[nonceSize:]

	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt sealed payload: %w", err)
	}
	return plaintext, nil
}
