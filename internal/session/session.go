// Package session stores the bearer tokens for the current board-viewing
// session. Tokens are held in memory only; issuing and refreshing them is the
// auth server's business.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is a process-wide token holder, cleared on logout or when the
// server answers unauthorized.
type Session struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// New returns an empty session.
func New() *Session {
	return &Session{}
}

// SetTokens installs a freshly issued token pair. refreshToken may be empty.
func (s *Session) SetTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
	if refreshToken != "" {
		s.refreshToken = refreshToken
	}
}

// AccessToken returns the current access token, or "" when none is set or the
// token is already expired.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken == "" {
		return ""
	}
	if exp, err := TokenExpiry(s.accessToken); err == nil && !exp.IsZero() && time.Now().After(exp) {
		return ""
	}
	return s.accessToken
}

// RefreshToken returns the stored refresh token, possibly empty.
func (s *Session) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// Clear drops both tokens.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.refreshToken = ""
}

// TokenExpiry extracts the exp claim without verifying the signature;
// verification is the server's job, the client only needs to know whether a
// login is required. A token without exp yields a zero time.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
