package encryption_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/community-gateway/internal/pkg/encryption"
)

func newEncryptor(t *testing.T) *encryption.AESEncryptor {
	t.Helper()
	key, err := encryption.GenerateKey()
	require.NoError(t, err)
	enc, err := encryption.NewAESEncryptor(key)
	require.NoError(t, err)
	return enc
}

func TestNewAESEncryptor_EmptyKey(t *testing.T) {
	enc, err := encryption.NewAESEncryptor("")
	assert.ErrorIs(t, err, encryption.ErrEmptyKey)
	assert.Nil(t, enc)
}

// TestNewAESEncryptor_Passphrase tests that arbitrary secrets are stretched to a usable key.
func TestNewAESEncryptor_Passphrase(t *testing.T) {
	a, err := encryption.NewAESEncryptor("not a base64 key")
	require.NoError(t, err)
	b, err := encryption.NewAESEncryptor("not a base64 key")
	require.NoError(t, err)

	sealed, err := a.Encrypt([]byte("user"))
	require.NoError(t, err)

	opened, err := b.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("user"), opened)
}

func TestAESEncryptor_RoundTrip(t *testing.T) {
	enc := newEncryptor(t)
	plaintext := []byte(`{"id":"user-1"}`)

	sealed, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "user-1")

	opened, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestAESEncryptor_FreshNonces(t *testing.T) {
	enc := newEncryptor(t)

	first, err := enc.Encrypt([]byte("same"))
	require.NoError(t, err)
	second, err := enc.Encrypt([]byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestAESEncryptor_WrongKey(t *testing.T) {
	sealed, err := newEncryptor(t).Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = newEncryptor(t).Decrypt(sealed)
	assert.Error(t, err)
}

func TestAESEncryptor_Decrypt_Invalid(t *testing.T) {
	enc := newEncryptor(t)

	_, err := enc.Decrypt("not-valid-base64!!!")
	assert.Error(t, err)

	_, err = enc.Decrypt("c2hvcnQ=")
	assert.ErrorContains(t, err, "too short")
}

func TestPlainEncryptor(t *testing.T) {
	var enc encryption.Encryptor = encryption.PlainEncryptor{}

	sealed, err := enc.Encrypt([]byte("message"))
	require.NoError(t, err)

	opened, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("message"), opened)
}
