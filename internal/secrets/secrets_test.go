package secrets

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func testKey() []byte {
	return bytes.Repeat([]byte{7}, 32)
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer(testKey())
	require.NoError(t, err)

	userID := []byte("user-1")
	sealed, err := s.Seal([]byte(`{"access_token":"abc"}`), userID)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "access_token")

	plain, err := s.Open(sealed, userID)
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"abc"}`, string(plain))
}

func TestSealer_NonceIsRandom(t *testing.T) {
	s, err := NewSealer(testKey())
	require.NoError(t, err)

	a, err := s.Seal([]byte("same"), nil)
	require.NoError(t, err)
	b, err := s.Seal([]byte("same"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealer_RejectsTampering(t *testing.T) {
	s, err := NewSealer(testKey())
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("secret"), []byte("user-1"))
	require.NoError(t, err)

	_, err = s.Open(sealed, []byte("user-2"))
	assert.ErrorIs(t, err, ErrInvalidCiphertext, "bound to the original owner")

	sealed[len(sealed)-1] ^= 0xff
	_, err = s.Open(sealed, []byte("user-1"))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = s.Open([]byte("short"), nil)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewSealer_KeyLength(t *testing.T) {
	_, err := NewSealer([]byte("too short"))
	assert.Error(t, err)
}

func TestNewSealerFromEnv(t *testing.T) {
	t.Setenv(EncryptionKeyEnv, "")
	_, err := NewSealerFromEnv()
	assert.Error(t, err)

	t.Setenv(EncryptionKeyEnv, "not base64!")
	_, err = NewSealerFromEnv()
	assert.Error(t, err)

	t.Setenv(EncryptionKeyEnv, base64.StdEncoding.EncodeToString(testKey()))
	s, err := NewSealerFromEnv()
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestIMAPPassword_Keyring(t *testing.T) {
	keyring.MockInit()

	account := IMAPKeyringAccount(uuid.MustParse("11111111-1111-1111-1111-111111111111"), " Me@Example.com ")
	assert.Equal(t, "11111111-1111-1111-1111-111111111111/me@example.com", account)

	_, err := GetIMAPPassword(account)
	assert.ErrorIs(t, err, ErrPasswordNotFound)

	require.NoError(t, SetIMAPPassword(account, "hunter2"))
	pw, err := GetIMAPPassword(account)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)

	require.NoError(t, DeleteIMAPPassword(account))
	require.NoError(t, DeleteIMAPPassword(account))
	_, err = GetIMAPPassword(account)
	assert.ErrorIs(t, err, ErrPasswordNotFound)

	assert.Error(t, SetIMAPPassword(account, " "))
	assert.Error(t, SetIMAPPassword("", "pw"))
}
