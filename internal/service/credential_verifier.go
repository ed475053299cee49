package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"signals-auth/internal/domain"
	"signals-auth/internal/repository"
)

// PasswordCost es el work factor fijo de bcrypt.
const PasswordCost = bcrypt.DefaultCost

// HashPassword genera el hash bcrypt; solo se llama al crear la cuenta.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CredentialVerifier valida pares email+password contra el hash almacenado.
type CredentialVerifier struct {
	accounts repository.AccountRepository
	timeout  time.Duration
}

func NewCredentialVerifier(accounts repository.AccountRepository, timeout time.Duration) *CredentialVerifier {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &CredentialVerifier{accounts: accounts, timeout: timeout}
}

// Verify devuelve el mismo ErrInvalidCredentials para email desconocido,
// cuenta sin password y password incorrecta.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (domain.Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.Account{}, ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	account, err := v.accounts.GetByEmailWithPassword(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrInvalidCredentials
		}
		return domain.Account{}, storageErr("get account by email", err)
	}
	if account.PasswordHash == "" {
		return domain.Account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return domain.Account{}, ErrInvalidCredentials
	}
	account.PasswordHash = ""
	return account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
