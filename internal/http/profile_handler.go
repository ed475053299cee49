package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signals-auth/internal/service"
)

// ProfileHandler expone la lectura y el update parcial del perfil propio.
type ProfileHandler struct {
	logger *zap.Logger
	auth   *service.AuthService
}

func NewProfileHandler(logger *zap.Logger, auth *service.AuthService) *ProfileHandler {
	return &ProfileHandler{logger: logger, auth: auth}
}

// GetProfile maneja GET /api/user/profile.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	claims, ok := GetSessionClaims(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	account, err := h.auth.Profile(c.Request.Context(), claims.AccountID)
	if err != nil {
		writeServiceError(c, h.logger, "get profile", err)
		return
	}
	respondAccount(c, http.StatusOK, "", account, "")
}

// UpdateProfile maneja PUT /api/user/profile.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	claims, ok := GetSessionClaims(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req service.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid profile update", zap.Error(err))
		respondFailure(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.auth.UpdateProfile(c.Request.Context(), claims.AccountID, req)
	if err != nil {
		writeServiceError(c, h.logger, "update profile", err)
		return
	}
	respondAccount(c, http.StatusOK, "Profile updated", account, "")
}
