package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailInUse         = errors.New("email already in use")
	ErrAccountNotFound    = errors.New("account not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrStateMismatch      = errors.New("invalid oauth state")
	ErrMissingCode        = errors.New("missing authorization code")
	ErrProviderDenied     = errors.New("oauth provider reported an error")
	ErrInvalidSignature   = errors.New("invalid bot signature")
	ErrMissingSecret      = errors.New("bot secret not configured")
	ErrSigningKeyMissing  = errors.New("session signing secret not configured")
	ErrStorage            = errors.New("account store unavailable")
	ErrRateLimited        = errors.New("rate limited")
)

// ValidationError es un input malformado o incompleto; Message es apto para el cliente.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErr(msg string) error {
	return &ValidationError{Message: msg}
}

// ProviderError envuelve un fallo del proveedor OAuth. Status es el HTTP status
// upstream (0 si no hubo respuesta) y solo se usa para logging.
type ProviderError struct {
	Op     string
	Status int
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("oauth provider %s failed: status=%d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("oauth provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ProviderDeniedError conserva la descripcion que el proveedor adjunta al redirect.
type ProviderDeniedError struct {
	Code        string
	Description string
}

func (e *ProviderDeniedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrProviderDenied, e.Code)
}

func (e *ProviderDeniedError) Is(target error) bool {
	return target == ErrProviderDenied
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
