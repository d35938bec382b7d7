// Package vault encrypts provider tokens before they are written to the
// document store. XChaCha20-Poly1305 authenticates the ciphertext, so a
// tampered or truncated record fails decryption instead of yielding
// corrupted plaintext.
package vault

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrIntegrity is returned when stored ciphertext fails authentication.
// Callers must treat it as a hard failure, never as empty plaintext.
var ErrIntegrity = errors.New("ciphertext failed authentication")

// Vault performs authenticated encryption with a fixed 256-bit key.
type Vault struct {
	key []byte
}

// New builds a vault from a 64-hex-char (32-byte) key.
func New(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid hex: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Vault{key: key}, nil
}

// Encrypt seals the plaintext under a fresh random nonce and returns
// hex(nonce || ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	cipher, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	nonce := make([]byte, cipher.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := cipher.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt opens hex(nonce || ciphertext). Any modification of the stored
// value surfaces as ErrIntegrity.
func (v *Vault) Decrypt(encoded string) (string, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: not valid hex", ErrIntegrity)
	}

	cipher, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	if len(raw) < cipher.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrIntegrity)
	}

	nonce, ciphertext := raw[:cipher.NonceSize()], raw[cipher.NonceSize():]
	plaintext, err := cipher.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plaintext), nil
}

// GenerateKey returns a fresh random key in the format New expects.
// Intended for initial setup.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}
