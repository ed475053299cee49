package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signals-auth/internal/domain"
	"signals-auth/internal/service"
)

// envelope es el formato comun de respuesta de los endpoints de auth.
type envelope struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Data    *envelopeData `json:"data,omitempty"`
}

type envelopeData struct {
	User  domain.PublicAccount `json:"user"`
	Token string               `json:"token,omitempty"`
}

func respondAccount(c *gin.Context, status int, message string, account domain.Account, token string) {
	c.JSON(status, envelope{
		Success: true,
		Message: message,
		Data:    &envelopeData{User: account.Public(), Token: token},
	})
}

func respondFailure(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Success: false, Message: message})
}

// classifyError traduce errores de servicio a status y mensaje publico.
// Los detalles de storage y proveedor nunca llegan al cliente.
func classifyError(err error) (int, string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, service.ErrEmailInUse):
		return http.StatusConflict, "Email already in use"
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many login attempts. Please try again later."
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized, "Invalid Telegram auth data"
	case errors.Is(err, service.ErrMissingSecret):
		return http.StatusInternalServerError, "Telegram bot token not configured"
	case errors.Is(err, service.ErrSigningKeyMissing):
		return http.StatusInternalServerError, "Session signing is not configured"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "Invalid or expired token"
	case errors.Is(err, service.ErrAccountNotFound):
		return http.StatusNotFound, "User not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeServiceError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err))
	}
	respondFailure(c, status, message)
}
