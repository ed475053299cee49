package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"signals-auth/internal/domain"
)

// SessionTTL es la vida fija de la credencial de sesion.
const SessionTTL = 7 * 24 * time.Hour

const sessionIssuer = "signals-auth"

// SessionTokenService emite y valida la credencial de sesion firmada.
type SessionTokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// SessionClaims son los claims que transporta el JWT de sesion.
type SessionClaims struct {
	AccountID string      `json:"userId"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

func NewSessionTokenService(secret string) *SessionTokenService {
	return &SessionTokenService{
		secret: []byte(secret),
		ttl:    SessionTTL,
		issuer: sessionIssuer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Configured indica si hay secreto de firma.
func (s *SessionTokenService) Configured() bool {
	return len(s.secret) > 0
}

// Issue firma un token para la cuenta. Un secreto vacio es un error de configuracion.
func (s *SessionTokenService) Issue(accountID, email string, role domain.Role) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrSigningKeyMissing
	}
	if strings.TrimSpace(accountID) == "" {
		return "", errors.New("session subject is required")
	}
	now := s.now()
	claims := SessionClaims{
		AccountID: accountID,
		Email:     email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify devuelve los claims solo si firma, issuer y expiracion son validos.
// Cualquier otro caso es "ausente", nunca una identidad parcial.
func (s *SessionTokenService) Verify(tokenString string) (SessionClaims, bool) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return SessionClaims{}, false
	}
	var claims SessionClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return SessionClaims{}, false
	}
	if strings.TrimSpace(claims.AccountID) == "" || claims.Subject != claims.AccountID || !claims.Role.Valid() {
		return SessionClaims{}, false
	}
	return claims, true
}
