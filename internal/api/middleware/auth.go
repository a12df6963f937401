package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	apiContext "monitorflow/internal/api/context"
	apierrors "monitorflow/internal/pkg/errors"
	"monitorflow/internal/platform/auth"
	"monitorflow/internal/platform/repositories"
)

type AuthMiddleware struct {
	users    *repositories.UserRepository
	tokenSvc *auth.TokenService
}

func NewAuthMiddleware(users *repositories.UserRepository, tokenSvc *auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{users: users, tokenSvc: tokenSvc}
}

// APIKey authenticates ingestion requests by resolving the caller from
// the bearer API key.
func (m *AuthMiddleware) APIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawKey, ok := bearerToken(r)
		if !ok {
			apierrors.WriteError(w, http.StatusUnauthorized, apierrors.ErrCodeUnauthorized,
				"Invalid auth header format. Expected: 'Bearer [API_KEY]'", nil)
			return
		}

		user, err := m.users.GetByAPIKey(rawKey)
		if errors.Is(err, sql.ErrNoRows) {
			apierrors.WriteError(w, http.StatusUnauthorized, apierrors.ErrCodeUnauthorized, "Invalid API key", nil)
			return
		}
		if err != nil {
			apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.User, user)
		next(w, r.WithContext(ctx))
	}
}

// JWT authenticates management API requests using the short-lived token
// issued by the auth handler.
func (m *AuthMiddleware) JWT(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			apierrors.WriteError(w, http.StatusUnauthorized, apierrors.ErrCodeUnauthorized,
				"Missing or malformed authorization header", nil)
			return
		}

		claims, err := m.tokenSvc.ValidateToken(token)
		if err != nil {
			apierrors.WriteError(w, http.StatusUnauthorized, apierrors.ErrCodeUnauthorized, "Invalid or expired token", nil)
			return
		}

		user, err := m.users.GetByID(claims.UserID)
		if err != nil {
			apierrors.WriteError(w, http.StatusUnauthorized, apierrors.ErrCodeUnauthorized, "Unknown user", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		ctx = context.WithValue(ctx, apiContext.User, user)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}
