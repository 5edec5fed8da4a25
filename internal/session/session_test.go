package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestAccessToken_ValidUntilExpiry(t *testing.T) {
	t.Parallel()
	s := New()
	tok := signedToken(t, time.Now().Add(time.Hour))

	s.SetTokens(tok, "refresh-1")
	require.Equal(t, tok, s.AccessToken())
	require.Equal(t, "refresh-1", s.RefreshToken())
}

func TestAccessToken_ExpiredYieldsEmpty(t *testing.T) {
	t.Parallel()
	s := New()
	s.SetTokens(signedToken(t, time.Now().Add(-time.Minute)), "")
	require.Empty(t, s.AccessToken())
}

func TestAccessToken_NoExpClaim(t *testing.T) {
	t.Parallel()
	s := New()
	tok := signedToken(t, time.Time{})
	s.SetTokens(tok, "")
	require.Equal(t, tok, s.AccessToken())
}

func TestAccessToken_OpaqueTokenPassesThrough(t *testing.T) {
	t.Parallel()
	// Not a JWT at all: treated as opaque and returned as-is.
	s := New()
	s.SetTokens("opaque-token", "")
	require.Equal(t, "opaque-token", s.AccessToken())
}

func TestClear(t *testing.T) {
	t.Parallel()
	s := New()
	s.SetTokens(signedToken(t, time.Now().Add(time.Hour)), "refresh-1")
	s.Clear()
	require.Empty(t, s.AccessToken())
	require.Empty(t, s.RefreshToken())
}

func TestTokenExpiry(t *testing.T) {
	t.Parallel()
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	got, err := TokenExpiry(signedToken(t, exp))
	require.NoError(t, err)
	require.WithinDuration(t, exp, got, time.Second)

	_, err = TokenExpiry("not-a-jwt")
	require.Error(t, err)
}
