package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"signals-auth/internal/service"
)

const (
	sessionCookieName = "authToken"
	stateCookieName   = "oauth_state"
	stateCookieMaxAge = 10 * 60
)

// cookieJar emite las cookies de sesion y de state segun el entorno.
type cookieJar struct {
	production bool
}

func (j cookieJar) setSession(c *gin.Context, token string, mode http.SameSite) {
	secure := j.production || mode == http.SameSiteNoneMode
	c.SetSameSite(mode)
	c.SetCookie(sessionCookieName, token, int(service.SessionTTL.Seconds()), "/", "", secure, true)
}

func (j cookieJar) clearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(sessionCookieName, "", -1, "/", "", j.production, true)
}

// redirectSameSite es la politica para cookies que deben sobrevivir al
// redirect cross-site del proveedor OAuth.
func (j cookieJar) redirectSameSite() http.SameSite {
	if j.production {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (j cookieJar) setState(c *gin.Context, state string) {
	c.SetSameSite(j.redirectSameSite())
	c.SetCookie(stateCookieName, state, stateCookieMaxAge, "/", "", j.production, true)
}

func (j cookieJar) clearState(c *gin.Context) {
	c.SetSameSite(j.redirectSameSite())
	c.SetCookie(stateCookieName, "", -1, "/", "", j.production, true)
}

// sessionTokenFromRequest prioriza Authorization: Bearer sobre la cookie.
func sessionTokenFromRequest(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		if token := strings.TrimSpace(header[len("bearer "):]); token != "" {
			return token
		}
	}
	if token, err := c.Cookie(sessionCookieName); err == nil {
		return strings.TrimSpace(token)
	}
	return ""
}
