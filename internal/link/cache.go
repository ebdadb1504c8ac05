package link

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cinbrain/shortlinks/internal/cache"
)

const linkKeyPrefix = "link:"

// CachedEntry is the volatile projection of a Link kept for fast resolution.
// It is a snapshot, not a source of truth: it can be stale by up to its TTL,
// so readers must revalidate IsActive and ExpiresAt before trusting it.
type CachedEntry struct {
	OriginalURL string     `json:"original_url"`
	IsActive    bool       `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// Expired reports whether the snapshot's semantic expiry has passed.
func (e CachedEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// Cache stores CachedEntry snapshots keyed by slug on the shared volatile
// store. All methods treat transport failures per the caller's contract:
// Get reports them as misses, Put and Invalidate surface them so callers can
// log best-effort failures.
type Cache struct {
	store cache.Store
	ttl   time.Duration
}

// NewCache creates a link cache writing entries with the given TTL.
func NewCache(store cache.Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{store: store, ttl: ttl}
}

func linkKey(slug string) string {
	return linkKeyPrefix + slug
}

// Get returns the cached entry for slug. The second result is false on miss;
// transport failures are folded into a miss so resolution can proceed against
// the durable store.
func (c *Cache) Get(ctx context.Context, slug string) (CachedEntry, bool) {
	raw, err := c.store.Get(ctx, linkKey(slug))
	if err != nil {
		return CachedEntry{}, false
	}

	var entry CachedEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// Corrupt entry: drop it and report a miss.
		_ = c.store.Delete(ctx, linkKey(slug))
		return CachedEntry{}, false
	}
	return entry, true
}

// Put writes the snapshot for l under its slug. Rewrites for an unchanged
// record are idempotent; concurrent writers for the same hot slug are
// harmless by design.
func (c *Cache) Put(ctx context.Context, l Link) error {
	entry := CachedEntry{
		OriginalURL: l.OriginalURL,
		IsActive:    l.IsActive,
		ExpiresAt:   l.ExpiresAt,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cached link %q: %w", l.Slug, err)
	}

	if err := c.store.Set(ctx, linkKey(l.Slug), string(data), c.ttl); err != nil {
		return fmt.Errorf("cache link %q: %w", l.Slug, err)
	}
	return nil
}

// Invalidate removes the entry for slug. Called on link update/delete and on
// delete-on-read when a cached entry's semantic expiry has passed.
func (c *Cache) Invalidate(ctx context.Context, slug string) error {
	if err := c.store.Delete(ctx, linkKey(slug)); err != nil {
		return fmt.Errorf("invalidate link %q: %w", slug, err)
	}
	return nil
}
