package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/cinbrain/shortlinks/internal/cache"
)

const resetKeyPrefix = "reset:"

// ResetTokens maps opaque password-reset tokens to user IDs with a TTL.
// Single-use semantics are the caller's responsibility: redemption must call
// Resolve and then Invalidate; skipping Invalidate leaves the token reusable
// until its TTL elapses.
type ResetTokens struct {
	store cache.Store
	ttl   time.Duration
}

// NewResetTokens creates a ResetTokens store with the given default TTL.
func NewResetTokens(store cache.Store, ttl time.Duration) *ResetTokens {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResetTokens{store: store, ttl: ttl}
}

// GenerateToken returns a new opaque URL-safe token. The store never
// persists anything derived from it besides the token→user mapping.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Store persists the token→userID mapping for the configured TTL.
func (r *ResetTokens) Store(ctx context.Context, token, userID string) error {
	if err := r.store.Set(ctx, resetKeyPrefix+token, userID, r.ttl); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	return nil
}

// Resolve returns the user ID for token. The second result is false when the
// token is unknown, already redeemed, expired, or the store is unreachable.
func (r *ResetTokens) Resolve(ctx context.Context, token string) (string, bool) {
	userID, err := r.store.Get(ctx, resetKeyPrefix+token)
	if err != nil {
		return "", false
	}
	return userID, true
}

// Invalidate removes the token. Must follow every successful Resolve during
// redemption to enforce single use.
func (r *ResetTokens) Invalidate(ctx context.Context, token string) error {
	if err := r.store.Delete(ctx, resetKeyPrefix+token); err != nil {
		return fmt.Errorf("invalidate reset token: %w", err)
	}
	return nil
}
