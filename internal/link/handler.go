package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cinbrain/shortlinks/internal/auth"
	"github.com/cinbrain/shortlinks/internal/errx"
	"github.com/cinbrain/shortlinks/internal/httpx"
)

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
type HTTPCreateLinkRequest struct {
	URL         string     `json:"url"`
	CustomSlug  string     `json:"custom_slug,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// HTTPUpdateLinkRequest represents the JSON request body for updating a link.
type HTTPUpdateLinkRequest struct {
	URL         string     `json:"url"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	IsActive    bool       `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// LinkResponse represents the JSON response for a link.
type LinkResponse struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	OriginalURL string     `json:"original_url"`
	ShortURL    string     `json:"short_url"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Clicks      int64      `json:"clicks"`
	IsActive    bool       `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   string     `json:"created_at"`
}

// Handler provides HTTP handlers for link management and resolution.
type Handler struct {
	service  Service
	resolver *Resolver
	logger   *slog.Logger
	baseURL  string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service  Service
	Resolver *Resolver
	Logger   *slog.Logger
	BaseURL  string // Base URL for constructing short URLs (e.g., "https://short.ly")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service:  cfg.Service,
		resolver: cfg.Resolver,
		logger:   logger,
		baseURL:  cfg.BaseURL,
	}
}

func (h *Handler) linkResponse(l Link) LinkResponse {
	return LinkResponse{
		ID:          l.ID.String(),
		Slug:        l.Slug,
		OriginalURL: l.OriginalURL,
		ShortURL:    fmt.Sprintf("%s/%s", h.baseURL, l.Slug),
		Title:       l.Title,
		Description: l.Description,
		Clicks:      l.Clicks,
		IsActive:    l.IsActive,
		ExpiresAt:   l.ExpiresAt,
		CreatedAt:   l.CreatedAt.Format(time.RFC3339),
	}
}

// CreateLink handles POST requests to create a new short link.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger := h.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	if req.URL == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "url is required", nil)
		return
	}

	created, err := h.service.Create(ctx, CreateLinkRequest{
		UserID:      userID,
		OriginalURL: req.URL,
		CustomSlug:  req.CustomSlug,
		Title:       req.Title,
		Description: req.Description,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		h.writeServiceError(ctx, w, err, "creating link")
		return
	}

	logger.InfoContext(ctx, "link created",
		"link_id", created.ID.String(),
		"slug", created.Slug,
		"custom_slug", req.CustomSlug != "",
	)

	httpx.WriteJSON(w, http.StatusCreated, h.linkResponse(created))
}

// UpdateLink handles PATCH requests to mutate a link. The service refreshes
// the cache entry so resolutions observe the change immediately.
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	slug := r.PathValue("slug")

	req, err := httpx.DecodeJSON[HTTPUpdateLinkRequest](r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	updated, err := h.service.Update(ctx, UpdateLinkRequest{
		UserID:      userID,
		Slug:        slug,
		OriginalURL: req.URL,
		Title:       req.Title,
		Description: req.Description,
		IsActive:    req.IsActive,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		h.writeServiceError(ctx, w, err, "updating link")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, h.linkResponse(updated))
}

// DeleteLink handles DELETE requests. The service invalidates the cache
// entry alongside the durable delete.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	slug := r.PathValue("slug")

	if err := h.service.Delete(ctx, slug, userID); err != nil {
		h.writeServiceError(ctx, w, err, "deleting link")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResolveLink handles GET requests to resolve a slug and redirect to the
// original URL. Successful resolutions enqueue a click.
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger := h.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)

	slug := r.PathValue("slug")

	originalURL, err := h.resolver.Resolve(ctx, slug)
	if err != nil {
		h.writeResolveError(ctx, w, err, slug)
		return
	}

	logger.InfoContext(ctx, "slug resolved",
		"slug", slug,
		"original_url", originalURL,
		"referer", r.Referer(),
	)

	http.Redirect(w, r, originalURL, http.StatusFound)
}

// PreviewLink handles GET requests for link metadata without redirecting.
// Previews do not count as clicks.
func (h *Handler) PreviewLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slug := r.PathValue("slug")

	l, err := h.service.GetBySlug(ctx, slug)
	if err != nil {
		h.writeServiceError(ctx, w, err, "previewing link")
		return
	}

	if !l.IsActive {
		httpx.WriteError(w, http.StatusGone, "gone", "This link has been disabled", nil)
		return
	}
	if l.Expired(time.Now()) {
		httpx.WriteError(w, http.StatusGone, "gone", "This link has expired", nil)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"preview": h.linkResponse(l),
	})
}

// writeResolveError maps resolution errors onto the redirect surface:
// NotFound for unknown slugs, Gone with a reason-specific message for
// inaccessible links, 500 only for durable-store failures.
func (h *Handler) writeResolveError(ctx context.Context, w http.ResponseWriter, err error, slug string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"slug", slug,
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "slug not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"short link doesn't exist", nil)

	case errx.Gone:
		h.logger.WarnContext(ctx, "link gone", logAttrs...)
		msg := "This link is no longer available"
		switch {
		case errors.Is(err, ErrDisabled):
			msg = "This link has been disabled"
		case errors.Is(err, ErrExpired):
			msg = "This link has expired"
		}
		httpx.WriteError(w, http.StatusGone, "gone", msg, nil)

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid slug", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_slug", err.Error(), nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error resolving link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to resolve this link at this time", nil)
	}
}

// writeServiceError maps CRUD service errors to HTTP responses.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, action string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "link not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"short link doesn't exist", nil)

	case errx.Conflict:
		h.logger.WarnContext(ctx, "slug conflict", logAttrs...)
		httpx.WriteError(w, http.StatusConflict, "conflict",
			"This slug is already taken",
			map[string]string{
				"hint": "Try a different custom slug or let us generate one for you",
			})

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid link request", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, "service unavailable "+action, logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to complete this request at this time. Please try again.", nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error "+action, logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to complete this request at this time. Please try again.", nil)
	}
}
