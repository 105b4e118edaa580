package cryptoutils

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := testKey(t)

	sealed, err := Encrypt("db-secret-value", key)
	require.NoError(t, err)
	assert.NotEqual(t, "db-secret-value", sealed)

	plain, err := Decrypt(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "db-secret-value", plain)
}

func TestEncrypt_EmptyPassthrough(t *testing.T) {
	key := testKey(t)

	sealed, err := Encrypt("", key)
	require.NoError(t, err)
	assert.Empty(t, sealed)

	plain, err := Decrypt("", key)
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestDecrypt_WrongKey(t *testing.T) {
	sealed, err := Encrypt("db-secret-value", testKey(t))
	require.NoError(t, err)

	_, err = Decrypt(sealed, testKey(t))
	assert.Error(t, err)
}

func TestEncrypt_BadKeyLength(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("too-short"))
	_, err := Encrypt("x", short)
	assert.Error(t, err)
}
