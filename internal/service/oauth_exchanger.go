package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"signals-auth/internal/domain"
	"signals-auth/internal/oauth"
)

// OAuthCallback son los parametros del redirect del proveedor mas el state guardado en la cookie.
type OAuthCallback struct {
	Code             string
	Error            string
	ErrorDescription string
	State            string
	StoredState      string
}

// OAuthExchanger valida el state anti-CSRF y canjea el code por un perfil verificado.
type OAuthExchanger struct {
	provider oauth.Provider
	timeout  time.Duration
}

func NewOAuthExchanger(provider oauth.Provider, timeout time.Duration) *OAuthExchanger {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OAuthExchanger{provider: provider, timeout: timeout}
}

// Begin genera un state aleatorio y la URL de autorizacion que lo transporta.
// El llamador debe guardar el state en el navegador antes de redirigir.
func (e *OAuthExchanger) Begin() (string, string, error) {
	if e.provider == nil {
		return "", "", errors.New("oauth provider not configured")
	}
	state, err := newStateToken()
	if err != nil {
		return "", "", err
	}
	return e.provider.AuthCodeURL(state), state, nil
}

// Complete falla antes de cualquier llamada de red si el proveedor reporto error,
// falta el code o el state no coincide.
func (e *OAuthExchanger) Complete(ctx context.Context, cb OAuthCallback) (domain.OAuthProfile, error) {
	if strings.TrimSpace(cb.Error) != "" {
		return domain.OAuthProfile{}, &ProviderDeniedError{Code: cb.Error, Description: cb.ErrorDescription}
	}
	if strings.TrimSpace(cb.Code) == "" {
		return domain.OAuthProfile{}, ErrMissingCode
	}
	if !statesMatch(cb.State, cb.StoredState) {
		return domain.OAuthProfile{}, ErrStateMismatch
	}
	if e.provider == nil {
		return domain.OAuthProfile{}, &ProviderError{Op: "config", Err: errors.New("oauth provider not configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	token, err := e.provider.Exchange(ctx, cb.Code)
	if err != nil {
		return domain.OAuthProfile{}, &ProviderError{Op: "exchange", Status: upstreamStatus(err), Err: err}
	}

	info, err := e.provider.UserInfo(ctx, token.AccessToken)
	if err != nil {
		return domain.OAuthProfile{}, &ProviderError{Op: "userinfo", Status: upstreamStatus(err), Err: err}
	}

	subject := info.Subject()
	emailAddr := normalizeEmail(info.Email)
	if subject == "" || emailAddr == "" {
		return domain.OAuthProfile{}, &ProviderError{Op: "userinfo", Err: errors.New("profile missing id or email")}
	}

	return domain.OAuthProfile{
		Subject:       subject,
		Email:         emailAddr,
		Name:          strings.TrimSpace(info.Name),
		AvatarURL:     strings.TrimSpace(info.Picture),
		EmailVerified: info.Verified(),
		RefreshToken:  token.RefreshToken,
	}, nil
}

func statesMatch(returned, stored string) bool {
	if returned == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(returned), []byte(stored)) == 1
}

func newStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func upstreamStatus(err error) int {
	var httpErr *oauth.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}
