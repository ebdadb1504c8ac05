package link

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cinbrain/shortlinks/internal/errx"
)

var (
	// ErrDisabled marks a link whose owner turned it off.
	ErrDisabled = errors.New("link has been disabled")

	// ErrExpired marks a link whose expiry has passed.
	ErrExpired = errors.New("link has expired")
)

// ClickRecorder receives the slug of every successful resolution. It must
// return immediately; the actual counting happens outside the request path.
type ClickRecorder interface {
	Record(ctx context.Context, slug string)
}

// noopRecorder is used when no recorder is configured.
type noopRecorder struct{}

func (noopRecorder) Record(context.Context, string) {}

// Resolver implements the cache-aside read path: normalized slug in,
// destination URL out, with the shared link cache consulted before the
// durable store. Cache transport failures are never propagated; the durable
// store is the only component whose failure fails a resolution.
type Resolver struct {
	repo     Repository
	cache    *Cache
	clicks   ClickRecorder
	reserved map[string]struct{}
	logger   *slog.Logger
	now      func() time.Time
}

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	Clicks        ClickRecorder
	ReservedSlugs []string
	Logger        *slog.Logger
	Now           func() time.Time // test hook
}

// NewResolver creates a Resolver. Cache may be backed by a degraded client;
// every lookup then falls through to the repository.
func NewResolver(repo Repository, cache *Cache, config *ResolverConfig) *Resolver {
	if config == nil {
		config = &ResolverConfig{}
	}

	clicks := config.Clicks
	if clicks == nil {
		clicks = noopRecorder{}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	reserved := make(map[string]struct{}, len(config.ReservedSlugs))
	for _, s := range config.ReservedSlugs {
		reserved[NormalizeSlug(s)] = struct{}{}
	}

	return &Resolver{
		repo:     repo,
		cache:    cache,
		clicks:   clicks,
		reserved: reserved,
		logger:   logger,
		now:      now,
	}
}

// Resolve maps a raw slug to its destination URL.
//
// Outcomes map to errx kinds: NotFound for unknown or reserved slugs, Gone
// (wrapping ErrDisabled or ErrExpired) for inaccessible links, Unavailable
// when the durable store cannot answer a cache miss.
func (r *Resolver) Resolve(ctx context.Context, rawSlug string) (string, error) {
	const op = "link.resolver.Resolve"

	slug := NormalizeSlug(rawSlug)
	if slug == "" {
		return "", errx.E(op, errx.Invalid, errors.New("slug cannot be empty"))
	}

	// Reserved words never occupy cache slots or touch the store.
	if _, ok := r.reserved[slug]; ok {
		return "", errx.E(op, errx.NotFound, errors.New("reserved slug"))
	}

	if entry, ok := r.cache.Get(ctx, slug); ok {
		return r.resolveFromCache(ctx, op, slug, entry)
	}

	return r.resolveFromStore(ctx, op, slug)
}

// resolveFromCache revalidates a snapshot before trusting it. The entry was
// correct when written but the link may have been disabled, or its semantic
// expiry may have passed, while the cache TTL is still running.
func (r *Resolver) resolveFromCache(ctx context.Context, op, slug string, entry CachedEntry) (string, error) {
	if !entry.IsActive {
		return "", errx.E(op, errx.Gone, ErrDisabled)
	}

	if entry.Expired(r.now()) {
		// Delete-on-read: the snapshot is semantically dead, so the next
		// request must consult the durable store.
		if err := r.cache.Invalidate(ctx, slug); err != nil {
			r.logger.Warn("failed to invalidate expired cache entry",
				"slug", slug, "error", err)
		}
		return "", errx.E(op, errx.Gone, ErrExpired)
	}

	r.clicks.Record(ctx, slug)
	return entry.OriginalURL, nil
}

// resolveFromStore is the cache-miss path: durable lookup, accessibility
// checks, best-effort write-back. Concurrent misses for a hot slug can each
// run this and rewrite the cache; the rewritten value is identical, so no
// coalescing lock guards it.
func (r *Resolver) resolveFromStore(ctx context.Context, op, slug string) (string, error) {
	l, err := r.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errx.KindOf(err) == errx.NotFound {
			return "", errx.E(op, errx.NotFound, err)
		}
		return "", errx.E(op, errx.Unavailable, err)
	}

	if !l.IsActive {
		return "", errx.E(op, errx.Gone, ErrDisabled)
	}
	if l.Expired(r.now()) {
		return "", errx.E(op, errx.Gone, ErrExpired)
	}

	if err := r.cache.Put(ctx, l); err != nil {
		r.logger.Warn("failed to write back link cache", "slug", slug, "error", err)
	}

	r.clicks.Record(ctx, slug)
	return l.OriginalURL, nil
}
