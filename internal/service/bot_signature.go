package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"signals-auth/internal/domain"
)

// botKeyDomain es la constante de separacion con la que se deriva la clave HMAC.
const botKeyDomain = "WebAppData"

const botClockSkew = time.Minute

// BotSignatureVerifier valida el payload del widget de login con doble HMAC.
type BotSignatureVerifier struct {
	secret []byte
	maxAge time.Duration
	guard  ReplayGuard
	now    func() time.Time
}

// NewBotSignatureVerifier crea el verificador. maxAge <= 0 desactiva el control
// de frescura de auth_date; guard nil desactiva la proteccion contra replay.
func NewBotSignatureVerifier(botToken string, maxAge time.Duration, guard ReplayGuard) *BotSignatureVerifier {
	return &BotSignatureVerifier{
		secret: []byte(botToken),
		maxAge: maxAge,
		guard:  guard,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CanonicalBotPayload arma el string de verificacion: pares key=value en orden
// fijo, separados por salto de linea, sin el hash.
func CanonicalBotPayload(p domain.BotLoginPayload) string {
	return strings.Join([]string{
		"auth_date=" + strconv.FormatInt(p.AuthDate, 10),
		"first_name=" + p.FirstName,
		"id=" + strconv.FormatInt(p.ID, 10),
		"last_name=" + p.LastName,
		"photo_url=" + p.PhotoURL,
		"username=" + p.Username,
	}, "\n")
}

// Sign calcula la firma hex esperada para el payload.
func (v *BotSignatureVerifier) Sign(p domain.BotLoginPayload) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrMissingSecret
	}
	keyMac := hmac.New(sha256.New, []byte(botKeyDomain))
	keyMac.Write(v.secret)
	derived := keyMac.Sum(nil)

	mac := hmac.New(sha256.New, derived)
	mac.Write([]byte(CanonicalBotPayload(p)))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func (v *BotSignatureVerifier) Verify(ctx context.Context, p domain.BotLoginPayload) error {
	expected, err := v.Sign(p)
	if err != nil {
		return err
	}
	provided := strings.ToLower(strings.TrimSpace(p.Hash))
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrInvalidSignature
	}

	if v.maxAge > 0 {
		now := v.now()
		issued := time.Unix(p.AuthDate, 0).UTC()
		if issued.After(now.Add(botClockSkew)) || now.Sub(issued) > v.maxAge {
			return ErrInvalidSignature
		}
	}

	if v.guard != nil {
		ttl := v.maxAge
		if ttl <= 0 {
			ttl = SessionTTL
		}
		fresh, err := v.guard.Remember(ctx, replayKey(provided), ttl)
		if err != nil {
			return fmt.Errorf("replay guard: %w", err)
		}
		if !fresh {
			return ErrInvalidSignature
		}
	}
	return nil
}

// Release devuelve al guard un payload ya aceptado por Verify para que pueda
// reintentarse tras un fallo posterior.
func (v *BotSignatureVerifier) Release(ctx context.Context, p domain.BotLoginPayload) error {
	if v.guard == nil {
		return nil
	}
	return v.guard.Forget(ctx, replayKey(strings.ToLower(strings.TrimSpace(p.Hash))))
}

func replayKey(hash string) string {
	return "bot:" + hash
}
