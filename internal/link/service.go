package link

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cinbrain/shortlinks/internal/errx"
	"github.com/cinbrain/shortlinks/sluggen"
)

const (
	DefaultSlugLength     = 7
	MaxSlugLength         = 32
	MinSlugLength         = 3
	MaxURLLength          = 2048
	DefaultSlugMaxRetries = 3
)

// CreateLinkRequest represents the parameters for creating a new link.
type CreateLinkRequest struct {
	UserID      uuid.UUID
	OriginalURL string
	CustomSlug  string // Optional: if empty, a slug will be generated
	Title       string
	Description string
	ExpiresAt   *time.Time
}

// UpdateLinkRequest represents the mutable fields of an existing link.
type UpdateLinkRequest struct {
	UserID      uuid.UUID
	Slug        string
	OriginalURL string
	Title       string
	Description string
	IsActive    bool
	ExpiresAt   *time.Time
}

// Service defines the owning CRUD operations for links. Every mutation keeps
// the volatile cache coherent: create and update refresh the slug's entry,
// delete invalidates it.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	GetBySlug(ctx context.Context, slug string) (Link, error)
	Update(ctx context.Context, req UpdateLinkRequest) (Link, error)
	Delete(ctx context.Context, slug string, userID uuid.UUID) error
}

type service struct {
	repo           Repository
	cache          *Cache
	slugGenerator  sluggen.Generator
	slugLength     int
	slugMaxRetries int
	reserved       map[string]struct{}
	logger         *slog.Logger
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	SlugGenerator  sluggen.Generator
	SlugLength     int
	SlugMaxRetries int // attempts when generating a unique slug (default: 3)
	ReservedSlugs  []string
	Logger         *slog.Logger
}

// NewService creates a new service instance.
func NewService(repo Repository, cache *Cache, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	slugGen := config.SlugGenerator
	if slugGen == nil {
		slugGen = sluggen.NewRandom()
	}

	slugLength := config.SlugLength
	if slugLength < MinSlugLength || slugLength > MaxSlugLength {
		slugLength = DefaultSlugLength
	}

	retries := config.SlugMaxRetries
	if retries <= 0 {
		retries = DefaultSlugMaxRetries
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reserved := make(map[string]struct{}, len(config.ReservedSlugs))
	for _, s := range config.ReservedSlugs {
		reserved[NormalizeSlug(s)] = struct{}{}
	}

	return &service{
		repo:           repo,
		cache:          cache,
		slugGenerator:  slugGen,
		slugLength:     slugLength,
		slugMaxRetries: retries,
		reserved:       reserved,
		logger:         logger,
	}
}

// Create creates a new short link with optional custom slug.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	const op = "link.service.Create"

	if err := validateURL(req.OriginalURL); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return Link{}, errx.E(op, errx.Invalid, errors.New("expiry must be in the future"))
	}

	// Custom slug path: validate and create once.
	if req.CustomSlug != "" {
		slug := NormalizeSlug(req.CustomSlug)
		if err := validateSlug(slug); err != nil {
			return Link{}, errx.E(op, errx.Invalid, err)
		}
		if _, ok := s.reserved[slug]; ok {
			return Link{}, errx.E(op, errx.Conflict, errors.New("slug is reserved"))
		}

		created, err := s.repo.Create(ctx, s.newLink(req, slug))
		if err != nil {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}

		s.refreshCache(ctx, created)
		return created, nil
	}

	// Generated slug path: retry on conflicts.
	for range s.slugMaxRetries {
		slug, err := s.slugGenerator.Generate(s.slugLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		if _, ok := s.reserved[slug]; ok {
			continue
		}

		created, err := s.repo.Create(ctx, s.newLink(req, slug))
		if err == nil {
			s.refreshCache(ctx, created)
			return created, nil
		}

		// Retry on conflict, fail on other errors.
		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
	}

	return Link{}, errx.E(op, errx.Unavailable,
		errors.New("could not generate unique slug after retries"))
}

func (s *service) GetBySlug(ctx context.Context, slug string) (Link, error) {
	const op = "link.service.GetBySlug"

	slug = NormalizeSlug(slug)
	if slug == "" {
		return Link{}, errx.E(op, errx.Invalid, errors.New("slug cannot be empty"))
	}

	l, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return l, nil
}

// Update mutates a link and refreshes its cache entry, so resolutions pick
// up changed URLs, toggled is_active, and moved expiries within one write.
func (s *service) Update(ctx context.Context, req UpdateLinkRequest) (Link, error) {
	const op = "link.service.Update"

	slug := NormalizeSlug(req.Slug)
	if slug == "" {
		return Link{}, errx.E(op, errx.Invalid, errors.New("slug cannot be empty"))
	}
	if err := validateURL(req.OriginalURL); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	updated, err := s.repo.Update(ctx, Link{
		UserID:      req.UserID,
		Slug:        slug,
		OriginalURL: strings.TrimSpace(req.OriginalURL),
		Title:       req.Title,
		Description: req.Description,
		IsActive:    req.IsActive,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	s.refreshCache(ctx, updated)
	return updated, nil
}

func (s *service) Delete(ctx context.Context, slug string, userID uuid.UUID) error {
	const op = "link.service.Delete"

	slug = NormalizeSlug(slug)
	if slug == "" {
		return errx.E(op, errx.Invalid, errors.New("slug cannot be empty"))
	}

	if err := s.repo.Delete(ctx, slug, userID); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}

	if err := s.cache.Invalidate(ctx, slug); err != nil {
		s.logger.Warn("failed to invalidate cache for deleted link",
			"slug", slug, "error", err)
	}
	return nil
}

func (s *service) newLink(req CreateLinkRequest, slug string) Link {
	return Link{
		UserID:      req.UserID,
		Slug:        slug,
		OriginalURL: strings.TrimSpace(req.OriginalURL),
		Title:       req.Title,
		Description: req.Description,
		ExpiresAt:   req.ExpiresAt,
	}
}

// refreshCache is the write-through hook: best effort, logged on failure.
func (s *service) refreshCache(ctx context.Context, l Link) {
	if err := s.cache.Put(ctx, l); err != nil {
		s.logger.Warn("failed to refresh link cache", "slug", l.Slug, "error", err)
	}
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must include scheme (http or https)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}

func validateSlug(slug string) error {
	if slug == "" {
		return errors.New("slug cannot be empty")
	}
	if len(slug) < MinSlugLength {
		return errors.New("slug too short (minimum 3 characters)")
	}
	if len(slug) > MaxSlugLength {
		return errors.New("slug too long (maximum 32 characters)")
	}

	if strings.HasPrefix(slug, "-") || strings.HasPrefix(slug, "_") ||
		strings.HasSuffix(slug, "-") || strings.HasSuffix(slug, "_") {
		return errors.New("slug cannot start or end with dash or underscore")
	}

	for _, char := range slug {
		if !isValidSlugChar(char) {
			return errors.New("slug contains invalid characters (only alphanumeric, dash, and underscore allowed)")
		}
	}
	return nil
}

func isValidSlugChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	default:
		return false
	}
}
