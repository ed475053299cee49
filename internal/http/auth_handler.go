package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signals-auth/internal/domain"
	"signals-auth/internal/service"
)

const maxOAuthErrorLen = 200

// AuthHandlerConfig agrupa lo que depende del despliegue.
type AuthHandlerConfig struct {
	Production        bool
	LoginPath         string
	PostLoginRedirect string
}

// AuthHandler expone los flujos de login sobre HTTP.
type AuthHandler struct {
	logger            *zap.Logger
	auth              *service.AuthService
	cookies           cookieJar
	loginPath         string
	postLoginRedirect string
}

func NewAuthHandler(logger *zap.Logger, auth *service.AuthService, cfg AuthHandlerConfig) *AuthHandler {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.PostLoginRedirect == "" {
		cfg.PostLoginRedirect = "/dashboard"
	}
	return &AuthHandler{
		logger:            logger,
		auth:              auth,
		cookies:           cookieJar{production: cfg.Production},
		loginPath:         cfg.LoginPath,
		postLoginRedirect: cfg.PostLoginRedirect,
	}
}

// Signup maneja POST /api/auth/signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req service.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signup request", zap.Error(err))
		respondFailure(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.auth.Signup(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrEmailInUse) {
			respondFailure(c, http.StatusConflict, "User with this email already exists")
			return
		}
		writeServiceError(c, h.logger, "signup", err)
		return
	}

	h.cookies.setSession(c, res.Token, http.SameSiteStrictMode)
	respondAccount(c, http.StatusCreated, "Account created successfully", res.Account, res.Token)
}

// Login maneja POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		respondFailure(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(c, h.logger, "login", err)
		return
	}

	h.cookies.setSession(c, res.Token, http.SameSiteStrictMode)
	respondAccount(c, http.StatusOK, "Login successful", res.Account, res.Token)
}

// Logout maneja POST /api/auth/logout. No hay estado de servidor que revocar.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.cookies.clearSession(c)
	c.JSON(http.StatusOK, envelope{Success: true, Message: "Logged out"})
}

// Verify maneja GET /api/auth/verify.
func (h *AuthHandler) Verify(c *gin.Context) {
	token := sessionTokenFromRequest(c)
	if token == "" {
		respondFailure(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	account, err := h.auth.Verify(c.Request.Context(), token)
	if err != nil {
		writeServiceError(c, h.logger, "verify session", err)
		return
	}
	respondAccount(c, http.StatusOK, "", account, "")
}

// BeginGoogle maneja GET /api/auth/google.
func (h *AuthHandler) BeginGoogle(c *gin.Context) {
	redirectURL, state, err := h.auth.BeginOAuth()
	if err != nil {
		h.logger.Error("oauth begin failed", zap.Error(err))
		h.redirectWithOAuthError(c, "Internal server error during Google authentication")
		return
	}
	h.cookies.setState(c, state)
	c.Redirect(http.StatusFound, redirectURL)
}

// GoogleCallback maneja GET /api/auth/callback/google. Toda salida es un
// redirect y la cookie de state se borra antes de evaluar nada.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	storedState, _ := c.Cookie(stateCookieName)
	h.cookies.clearState(c)

	res, err := h.auth.CompleteOAuth(c.Request.Context(), service.OAuthCallback{
		Code:             c.Query("code"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
		State:            c.Query("state"),
		StoredState:      storedState,
	})
	if err != nil {
		h.redirectWithOAuthError(c, h.oauthErrorReason(err))
		return
	}

	h.cookies.setSession(c, res.Token, h.cookies.redirectSameSite())
	c.Redirect(http.StatusFound, h.postLoginRedirect)
}

// TelegramCallback maneja POST /api/auth/callback/telegram.
func (h *AuthHandler) TelegramCallback(c *gin.Context) {
	var payload domain.BotLoginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("invalid telegram payload", zap.Error(err))
		respondFailure(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.auth.BotLogin(c.Request.Context(), payload)
	if err != nil {
		writeServiceError(c, h.logger, "telegram login", err)
		return
	}

	h.cookies.setSession(c, res.Token, http.SameSiteLaxMode)
	respondAccount(c, http.StatusOK, "", res.Account, res.Token)
}

func (h *AuthHandler) oauthErrorReason(err error) string {
	var denied *service.ProviderDeniedError
	var perr *service.ProviderError
	switch {
	case errors.As(err, &denied):
		reason := strings.TrimSpace(denied.Description)
		if reason == "" {
			reason = "OAuth error occurred"
		}
		if len(reason) > maxOAuthErrorLen {
			reason = reason[:maxOAuthErrorLen]
		}
		return reason
	case errors.Is(err, service.ErrMissingCode):
		return "Missing authorization code"
	case errors.Is(err, service.ErrStateMismatch):
		return "Invalid OAuth state"
	case errors.As(err, &perr) && perr.Op == "exchange":
		h.logger.Warn("oauth code exchange failed", zap.Int("upstream_status", perr.Status), zap.Error(err))
		return "Failed to authenticate with Google"
	case errors.As(err, &perr) && perr.Op == "userinfo":
		h.logger.Warn("oauth userinfo failed", zap.Int("upstream_status", perr.Status), zap.Error(err))
		return "Failed to get user info from Google"
	default:
		h.logger.Error("oauth callback failed", zap.Error(err))
		return "Internal server error during Google authentication"
	}
}

func (h *AuthHandler) redirectWithOAuthError(c *gin.Context, reason string) {
	target := h.loginPath + "?oauth_error=" + url.QueryEscape(reason)
	c.Redirect(http.StatusFound, target)
}
