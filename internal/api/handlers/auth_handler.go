package handlers

import (
	"net/http"

	apiContext "monitorflow/internal/api/context"
	apierrors "monitorflow/internal/pkg/errors"
	"monitorflow/internal/platform/auth"
	"monitorflow/internal/platform/config"
	"monitorflow/internal/platform/models"
)

type AuthHandler struct {
	tokenSvc *auth.TokenService
	jwtCfg   config.JWTConfig
}

func NewAuthHandler(tokenSvc *auth.TokenService, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{tokenSvc: tokenSvc, jwtCfg: jwtCfg}
}

// Token exchanges an API key for a short-lived access token. The API key
// middleware has already resolved the caller; all that is left is minting.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(apiContext.User).(*models.User)

	token, err := h.tokenSvc.GenerateAccessToken(user.ID, user.Plan)
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(h.jwtCfg.AccessTokenTTL.Seconds()),
	})
}
