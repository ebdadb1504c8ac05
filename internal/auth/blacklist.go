package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/cinbrain/shortlinks/internal/cache"
)

const blacklistKeyPrefix = "blacklist:"

// Blacklist records revoked token IDs on the shared volatile store. Entries
// carry the remaining lifetime of the credential they revoke, so they expire
// with it and never need a cleanup job.
//
// Availability trade-off, deliberate: when the store is unreachable, Revoke
// is a logged no-op and IsRevoked reports false. A cache outage therefore
// re-admits logged-out tokens until their natural expiry instead of locking
// out every authenticated user.
type Blacklist struct {
	store      cache.Store
	defaultTTL time.Duration
	logger     *slog.Logger
}

// NewBlacklist creates a Blacklist. defaultTTL is used when a caller passes
// a non-positive TTL; it should cover the longest-lived credential.
func NewBlacklist(store cache.Store, defaultTTL time.Duration, logger *slog.Logger) *Blacklist {
	if defaultTTL <= 0 {
		defaultTTL = 31 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Blacklist{
		store:      store,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// Revoke marks jti as revoked for ttl. Pass the credential's remaining
// lifetime so the entry cannot outlive it.
func (b *Blacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = b.defaultTTL
	}

	if err := b.store.Set(ctx, blacklistKeyPrefix+jti, "1", ttl); err != nil {
		b.logger.Warn("token revocation not recorded, cache unavailable",
			"jti", jti, "error", err)
	}
}

// IsRevoked reports whether jti has been revoked. Fails open: an unreachable
// store reads as not revoked.
func (b *Blacklist) IsRevoked(ctx context.Context, jti string) bool {
	revoked, err := b.store.Exists(ctx, blacklistKeyPrefix+jti)
	if err != nil {
		b.logger.Debug("blacklist check failed open", "jti", jti, "error", err)
		return false
	}
	return revoked
}
