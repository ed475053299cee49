package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"signals-auth/internal/domain"
)

// AuthResult es la cuenta autenticada mas la credencial de sesion emitida.
type AuthResult struct {
	Account domain.Account
	Token   string
}

// SignupInput es el formulario de registro con password.
type SignupInput struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// AuthService coordina los flujos de login: cada uno termina en una cuenta
// resuelta y un token de sesion.
type AuthService struct {
	logger      *zap.Logger
	credentials *CredentialVerifier
	bot         *BotSignatureVerifier
	oauth       *OAuthExchanger
	sessions    *SessionTokenService
	accounts    *AccountResolver
	limiter     LoginRateLimiter
	hash        func(string) (string, error)
}

func NewAuthService(
	logger *zap.Logger,
	credentials *CredentialVerifier,
	bot *BotSignatureVerifier,
	oauth *OAuthExchanger,
	sessions *SessionTokenService,
	accounts *AccountResolver,
	limiter LoginRateLimiter,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		logger:      logger,
		credentials: credentials,
		bot:         bot,
		oauth:       oauth,
		sessions:    sessions,
		accounts:    accounts,
		limiter:     limiter,
		hash:        HashPassword,
	}
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (AuthResult, error) {
	if err := s.requireSigningKey(); err != nil {
		return AuthResult{}, err
	}
	fullName := strings.TrimSpace(in.FullName)
	emailAddr := normalizeEmail(in.Email)
	if fullName == "" || emailAddr == "" || in.Password == "" || in.ConfirmPassword == "" {
		return AuthResult{}, validationErr("All fields are required")
	}
	if in.Password != in.ConfirmPassword {
		return AuthResult{}, validationErr("Passwords do not match")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		return AuthResult{}, validationErr("Password must be at least 6 characters long")
	}
	if !isValidEmail(emailAddr) {
		return AuthResult{}, validationErr("Please provide a valid email address")
	}
	if utf8.RuneCountInString(fullName) > maxFullNameLen {
		return AuthResult{}, validationErr("Full name cannot exceed 100 characters")
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return AuthResult{}, err
	}
	account, err := s.accounts.CreateFromPassword(ctx, emailAddr, fullName, hash)
	if err != nil {
		return AuthResult{}, err
	}
	return s.issue(account)
}

// Login aplica el rate limit por email normalizado antes de tocar el store.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (AuthResult, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return AuthResult{}, validationErr("Email and password are required")
	}
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, emailAddr)
		if err != nil {
			s.logger.Warn("login rate limiter unavailable, allowing attempt", zap.Error(err))
		}
		if !allowed {
			return AuthResult{}, ErrRateLimited
		}
	}

	account, err := s.credentials.Verify(ctx, emailAddr, password)
	if err != nil {
		return AuthResult{}, err
	}
	return s.issue(account)
}

// BeginOAuth devuelve la URL del proveedor y el state a guardar en el navegador.
func (s *AuthService) BeginOAuth() (string, string, error) {
	return s.oauth.Begin()
}

func (s *AuthService) CompleteOAuth(ctx context.Context, cb OAuthCallback) (AuthResult, error) {
	if err := s.requireSigningKey(); err != nil {
		return AuthResult{}, err
	}
	profile, err := s.oauth.Complete(ctx, cb)
	if err != nil {
		return AuthResult{}, err
	}
	account, err := s.accounts.UpsertFromOAuth(ctx, profile)
	if err != nil {
		return AuthResult{}, err
	}
	return s.issue(account)
}

func (s *AuthService) BotLogin(ctx context.Context, payload domain.BotLoginPayload) (AuthResult, error) {
	if err := s.requireSigningKey(); err != nil {
		return AuthResult{}, err
	}
	if err := s.bot.Verify(ctx, payload); err != nil {
		return AuthResult{}, err
	}
	account, err := s.accounts.UpsertFromBotPayload(ctx, payload)
	if err != nil {
		// el payload sigue siendo valido: el reintento no debe verse como replay
		if rerr := s.bot.Release(ctx, payload); rerr != nil {
			s.logger.Warn("replay guard release failed", zap.Int64("bot_user_id", payload.ID), zap.Error(rerr))
		}
		return AuthResult{}, err
	}
	return s.issue(account)
}

// Authenticate valida el token sin tocar el store. Sin secreto de firma el
// error es de configuracion, no de credencial.
func (s *AuthService) Authenticate(token string) (SessionClaims, error) {
	if err := s.requireSigningKey(); err != nil {
		return SessionClaims{}, err
	}
	claims, ok := s.sessions.Verify(token)
	if !ok {
		return SessionClaims{}, ErrUnauthorized
	}
	return claims, nil
}

// Verify resuelve la cuenta vigente detras de un token.
func (s *AuthService) Verify(ctx context.Context, token string) (domain.Account, error) {
	claims, err := s.Authenticate(token)
	if err != nil {
		return domain.Account{}, err
	}
	return s.accounts.FindByID(ctx, claims.AccountID)
}

func (s *AuthService) Profile(ctx context.Context, accountID string) (domain.Account, error) {
	return s.accounts.FindByID(ctx, accountID)
}

func (s *AuthService) UpdateProfile(ctx context.Context, accountID string, in ProfileUpdate) (domain.Account, error) {
	return s.accounts.UpdateProfile(ctx, accountID, in)
}

// requireSigningKey corta los flujos de sesion antes de persistir o validar nada.
func (s *AuthService) requireSigningKey() error {
	if !s.sessions.Configured() {
		return ErrSigningKeyMissing
	}
	return nil
}

func (s *AuthService) issue(account domain.Account) (AuthResult, error) {
	token, err := s.sessions.Issue(account.ID, account.Email, account.Role)
	if err != nil {
		if !errors.Is(err, ErrSigningKeyMissing) {
			s.logger.Error("session issue failed", zap.String("account_id", account.ID), zap.Error(err))
		}
		return AuthResult{}, err
	}
	return AuthResult{Account: account, Token: token}, nil
}
