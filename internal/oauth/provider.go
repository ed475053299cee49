package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Provider es la capacidad externa: URL de autorizacion, canje del code y perfil.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (Token, error)
	UserInfo(ctx context.Context, accessToken string) (UserInfo, error)
}

// Token es el resultado del canje del authorization code.
type Token struct {
	AccessToken  string
	RefreshToken string
}

// UserInfo es el perfil crudo del proveedor. Google usa verified_email (v2) o
// email_verified (OIDC); Verified los combina.
type UserInfo struct {
	ID            string       `json:"id"`
	Sub           string       `json:"sub"`
	Email         string       `json:"email"`
	Name          string       `json:"name"`
	Picture       string       `json:"picture"`
	VerifiedEmail flexibleBool `json:"verified_email"`
	EmailVerified flexibleBool `json:"email_verified"`
}

// Subject devuelve el id estable del usuario en el proveedor.
func (u UserInfo) Subject() string {
	if id := strings.TrimSpace(u.ID); id != "" {
		return id
	}
	return strings.TrimSpace(u.Sub)
}

// Verified normaliza los dos flags alternativos a un unico booleano.
func (u UserInfo) Verified() bool {
	return bool(u.VerifiedEmail) || bool(u.EmailVerified)
}

// HTTPError describe un fallo upstream; Status es 0 si no hubo respuesta.
type HTTPError struct {
	Op     string
	Status int
	Err    error
}

func (e *HTTPError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: status=%d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status=%d: %v", e.Op, e.Status, e.Err)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// flexibleBool acepta true/false y tambien "true"/"false" como string.
type flexibleBool bool

func (b *flexibleBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = flexibleBool(t)
	case string:
		*b = flexibleBool(strings.EqualFold(strings.TrimSpace(t), "true"))
	default:
		*b = false
	}
	return nil
}
