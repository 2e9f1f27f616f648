package auth

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "707172737475767778797a7b7c7d7e7f808182838485868788898a8b8c8d8e8f"

func newTestService(t *testing.T) *TokenService {
	t.Helper()
	s, err := NewTokenService(testKey, time.Hour)
	require.NoError(t, err)
	return s
}

func TestNewTokenService_RejectsBadKeys(t *testing.T) {
	tests := map[string]string{
		"too short": "abcd",
		"not hex":   strings.Repeat("zz", 32),
	}
	for name, key := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewTokenService(key, time.Hour)
			assert.Error(t, err)
		})
	}
}

func TestGenerateAndVerify(t *testing.T) {
	s := newTestService(t)

	token, err := s.GenerateAccessToken("acct-42", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := s.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acct-42", claims.AccountID)
	assert.Equal(t, "acct-42", claims.Subject)
	assert.WithinDuration(t, claims.IssuedAt.Add(time.Hour), claims.ExpiresAt, time.Second)
	assert.Equal(t, time.Hour, claims.Remaining(claims.IssuedAt))
	assert.Zero(t, claims.Remaining(claims.ExpiresAt.Add(time.Minute)))
	assert.True(t, strings.HasPrefix(claims.TokenID, "token-"))

	_, err = s.GenerateAccessToken("", 0)
	assert.Error(t, err)
}

func TestVerify_Expired(t *testing.T) {
	s := newTestService(t)
	issued := time.Now().Add(-2 * time.Hour)
	s.now = func() time.Time { return issued }

	token, err := s.GenerateAccessToken("acct-1", time.Hour)
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongKeyOrGarbage(t *testing.T) {
	s := newTestService(t)
	token, err := s.GenerateAccessToken("acct-1", 0)
	require.NoError(t, err)

	other, err := NewTokenService(strings.Repeat("ab", 32), time.Hour)
	require.NoError(t, err)
	_, err = other.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.VerifyAccessToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, first, keyHexLength)
	_, err = hex.DecodeString(first)
	require.NoError(t, err)

	second, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second, "key is persisted")

	info, err := os.Stat(filepath.Join(dir, "auth.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.key"), []byte("short"), 0o600))
	_, err = LoadOrGenerateKey(dir)
	assert.Error(t, err)

	_, err = NewTokenService(first, time.Hour)
	assert.NoError(t, err)
}
