package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()

	key, err := GenerateKey()
	require.NoError(t, err)

	v, err := New(key)
	require.NoError(t, err)
	return v
}

func TestNewKeyValidation(t *testing.T) {
	_, err := New("not-hex")
	assert.Error(t, err)

	_, err = New("abcd") // valid hex, wrong length
	assert.Error(t, err)

	key, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, key, 64)

	_, err = New(key)
	assert.NoError(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := newTestVault(t)

	plaintext := "provider-access-token-xyz"
	sealed, err := v.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, sealed, plaintext)

	got, err := v.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptNonceUniqueness(t *testing.T) {
	v := newTestVault(t)

	a, err := v.Encrypt("same input")
	require.NoError(t, err)
	b, err := v.Encrypt("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptTamperDetection(t *testing.T) {
	v := newTestVault(t)

	sealed, err := v.Encrypt("secret")
	require.NoError(t, err)

	// Flip one ciphertext nibble.
	last := sealed[len(sealed)-1]
	replacement := "0"
	if last == '0' {
		replacement = "1"
	}
	tampered := sealed[:len(sealed)-1] + replacement

	_, err = v.Decrypt(tampered)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestDecryptMalformedInput(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Decrypt("zz-not-hex")
	assert.ErrorIs(t, err, ErrIntegrity)

	_, err = v.Decrypt(strings.Repeat("ab", 4)) // shorter than a nonce
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestDecryptWrongKey(t *testing.T) {
	a := newTestVault(t)
	b := newTestVault(t)

	sealed, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrIntegrity)
}
