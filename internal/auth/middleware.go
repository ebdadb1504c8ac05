package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/cinbrain/shortlinks/internal/httpx"
)

type contextKey string

const (
	userIDContextKey contextKey = "auth_user_id"
	claimsContextKey contextKey = "auth_claims"
)

// UserIDFromContext extracts the authenticated user ID set by RequireAuth.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDContextKey).(uuid.UUID)
	return id, ok
}

// ClaimsFromContext extracts the verified claims set by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

// WithUser seeds a context with an authenticated identity. Test helper.
func WithUser(ctx context.Context, userID uuid.UUID, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, userID)
	return context.WithValue(ctx, claimsContextKey, claims)
}

// RequireAuth is a middleware that verifies the bearer token and checks its
// jti against the blacklist before trusting it. The blacklist check runs on
// every authenticated request.
func RequireAuth(tm *TokenManager, blacklist *Blacklist, logger *slog.Logger) httpx.Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
					"missing bearer token", nil)
				return
			}

			claims, err := tm.Parse(raw)
			if err != nil {
				logger.WarnContext(r.Context(), "rejected invalid token", "error", err)
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
					"invalid or expired token", nil)
				return
			}

			if blacklist.IsRevoked(r.Context(), claims.ID) {
				logger.WarnContext(r.Context(), "rejected revoked token", "jti", claims.ID)
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
					"token has been revoked", nil)
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				logger.WarnContext(r.Context(), "token subject is not a user id", "error", err)
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
					"invalid or expired token", nil)
				return
			}

			ctx := WithUser(r.Context(), userID, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
