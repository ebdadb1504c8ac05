package link

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Link is the durable record for a shortened URL. The resolver reads it and
// mutates only Clicks; everything else belongs to the owning CRUD flow.
type Link struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Slug        string
	OriginalURL string
	Title       string
	Description string
	Clicks      int64
	IsActive    bool
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether the link's expiry has passed at the given instant.
// Links without an expiry never expire.
func (l Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// Accessible reports whether the link may be served: active and not expired.
func (l Link) Accessible(now time.Time) bool {
	return l.IsActive && !l.Expired(now)
}

// NormalizeSlug lowercases and trims a raw slug. Every path that touches a
// slug (resolve, create, cache keys) must go through this first.
func NormalizeSlug(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
