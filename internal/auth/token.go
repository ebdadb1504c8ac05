// Package auth provides JWT issuance and verification, the token blacklist,
// and the password-reset token store. The blacklist and reset store ride on
// the shared volatile cache handle and degrade per their documented
// availability trade-offs when it is unreachable.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens that fail parsing or verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims carried in access tokens. The jti (ID) is the
// revocation key checked against the blacklist on every request.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID returns the subject as a UUID.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// RemainingTTL returns how long the token is still valid. Blacklist entries
// use this as their TTL so they expire with the credential they revoke.
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// TokenManager issues and parses signed access tokens.
type TokenManager struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	now      func() time.Time
}

// TokenManagerConfig holds configuration for the token manager.
type TokenManagerConfig struct {
	Secret   string
	Lifetime time.Duration // default 1h
	Issuer   string
	Now      func() time.Time // test hook
}

// NewTokenManager creates a TokenManager.
func NewTokenManager(cfg TokenManagerConfig) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret cannot be empty")
	}

	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenManager{
		secret:   []byte(cfg.Secret),
		lifetime: lifetime,
		issuer:   cfg.Issuer,
		now:      now,
	}, nil
}

// Issue creates a signed access token for userID with a fresh jti.
func (m *TokenManager) Issue(userID uuid.UUID) (string, error) {
	now := m.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and standard claims of an access token.
func (m *TokenManager) Parse(raw string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
