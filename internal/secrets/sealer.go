// Package secrets seals OAuth tokens at rest and keeps IMAP passwords in the OS keychain.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptionKeyEnv names the environment variable holding the base64 sealing key.
const EncryptionKeyEnv = "TOKEN_ENCRYPTION_KEY"

// ErrInvalidCiphertext is returned when sealed data is truncated or was not produced by this key.
var ErrInvalidCiphertext = errors.New("invalid sealed data")

// Sealer encrypts small secrets with XChaCha20-Poly1305. The nonce is prepended to the ciphertext.
type Sealer struct {
	key []byte
}

// NewSealer creates a sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("sealing key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Sealer{key: k}, nil
}

// NewSealerFromEnv creates a sealer from TOKEN_ENCRYPTION_KEY (standard base64).
func NewSealerFromEnv() (*Sealer, error) {
	encoded := strings.TrimSpace(os.Getenv(EncryptionKeyEnv))
	if encoded == "" {
		return nil, fmt.Errorf("%s environment variable is required", EncryptionKeyEnv)
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EncryptionKeyEnv, err)
	}
	return NewSealer(key)
}

// Seal encrypts plaintext. additionalData (e.g. the user id) binds the ciphertext to its owner.
func (s *Sealer) Seal(plaintext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Open decrypts data produced by Seal with the same additional data.
func (s *Sealer) Open(sealed, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrInvalidCiphertext
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	return plaintext, nil
}
