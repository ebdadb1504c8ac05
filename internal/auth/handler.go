package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cinbrain/shortlinks/internal/errx"
	"github.com/cinbrain/shortlinks/internal/httpx"
)

const minPasswordLength = 8

// HTTPResetRequest is the JSON body for requesting a password reset.
type HTTPResetRequest struct {
	Email string `json:"email"`
}

// HTTPResetConfirm is the JSON body for redeeming a reset token.
type HTTPResetConfirm struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// Handler provides HTTP handlers for logout and password reset.
// Login/registration and email delivery live outside this service; the reset
// request returns its token directly in non-production environments so the
// flow stays testable without a mail provider.
type Handler struct {
	blacklist   *Blacklist
	resetTokens *ResetTokens
	users       UserStore
	logger      *slog.Logger
	exposeToken bool
}

// HandlerConfig holds configuration for the auth handler.
type HandlerConfig struct {
	Blacklist        *Blacklist
	ResetTokens      *ResetTokens
	Users            UserStore
	Logger           *slog.Logger
	ExposeResetToken bool // true outside production
}

// NewHandler creates a new auth Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		blacklist:   cfg.Blacklist,
		resetTokens: cfg.ResetTokens,
		users:       cfg.Users,
		logger:      logger,
		exposeToken: cfg.ExposeResetToken,
	}
}

// Logout revokes the calling token's jti for its remaining lifetime.
// Requires RequireAuth upstream.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
			"authentication required", nil)
		return
	}

	h.blacklist.Revoke(ctx, claims.ID, claims.RemainingTTL(time.Now()))

	h.logger.InfoContext(ctx, "token revoked",
		"request_id", httpx.GetRequestID(ctx),
		"jti", claims.ID,
	)

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// RequestPasswordReset issues a reset token for the account, if it exists.
// The response is identical for unknown accounts so the endpoint cannot be
// used to probe for registered emails.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httpx.DecodeJSON[HTTPResetRequest](r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	if req.Email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "email is required", nil)
		return
	}

	resp := map[string]string{
		"status": "if the account exists, a reset link has been sent",
	}

	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errx.KindOf(err) != errx.NotFound {
			h.logger.ErrorContext(ctx, "reset request user lookup failed", "error", err)
			httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
				"Unable to process this request at this time", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
		return
	}

	token, err := GenerateToken()
	if err != nil {
		h.logger.ErrorContext(ctx, "reset token generation failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to process this request at this time", nil)
		return
	}

	if err := h.resetTokens.Store(ctx, token, user.ID.String()); err != nil {
		h.logger.ErrorContext(ctx, "reset token not stored", "error", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to process this request at this time", nil)
		return
	}

	h.logger.InfoContext(ctx, "password reset requested",
		"request_id", httpx.GetRequestID(ctx),
		"user_id", user.ID.String(),
	)

	if h.exposeToken {
		resp["reset_token"] = token
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// ConfirmPasswordReset redeems a reset token: resolve, rehash the password,
// then invalidate. The invalidate call is what makes the token single-use;
// it runs even though the token would expire on its own.
func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httpx.DecodeJSON[HTTPResetConfirm](r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	if req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "token is required", nil)
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed",
			"password must be at least 8 characters", nil)
		return
	}

	userID, ok := h.resetTokens.Resolve(ctx, req.Token)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_token",
			"reset token is invalid or has expired", nil)
		return
	}

	user, err := h.userByID(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "reset confirm user lookup failed", "error", err)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_token",
			"reset token is invalid or has expired", nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.logger.ErrorContext(ctx, "password hashing failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to process this request at this time", nil)
		return
	}

	if err := h.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		h.logger.ErrorContext(ctx, "password update failed", "error", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to process this request at this time", nil)
		return
	}

	if err := h.resetTokens.Invalidate(ctx, req.Token); err != nil {
		// The password already changed; a dangling token is a reuse window,
		// so log loudly.
		h.logger.ErrorContext(ctx, "reset token not invalidated after use",
			"user_id", user.ID.String(), "error", err)
	}

	h.logger.InfoContext(ctx, "password reset completed",
		"request_id", httpx.GetRequestID(ctx),
		"user_id", user.ID.String(),
	)

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

func (h *Handler) userByID(ctx context.Context, userID string) (User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return User{}, fmt.Errorf("malformed user id in reset token: %w", err)
	}
	return h.users.GetByID(ctx, id)
}
