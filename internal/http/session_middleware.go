package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"signals-auth/internal/service"
)

const sessionClaimsKey = "session_claims"

type sessionAuthenticator interface {
	Authenticate(token string) (service.SessionClaims, error)
}

// SessionMiddleware valida la credencial de sesion (header o cookie) y guarda
// los claims en el contexto.
func SessionMiddleware(auth sessionAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionTokenFromRequest(c)
		if token == "" {
			respondFailure(c, http.StatusUnauthorized, "Unauthorized")
			c.Abort()
			return
		}
		claims, err := auth.Authenticate(token)
		if errors.Is(err, service.ErrSigningKeyMissing) {
			status, message := classifyError(err)
			respondFailure(c, status, message)
			c.Abort()
			return
		}
		if err != nil {
			respondFailure(c, http.StatusUnauthorized, "Unauthorized")
			c.Abort()
			return
		}
		c.Set(sessionClaimsKey, claims)
		c.Next()
	}
}

// GetSessionClaims obtiene los claims de sesion desde el contexto.
func GetSessionClaims(c *gin.Context) (service.SessionClaims, bool) {
	val, ok := c.Get(sessionClaimsKey)
	if !ok {
		return service.SessionClaims{}, false
	}
	claims, ok := val.(service.SessionClaims)
	return claims, ok
}
