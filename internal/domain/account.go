package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Role es el rol grueso de la cuenta.
type Role string

const (
	RoleTrader Role = "trader"
	RoleAdmin  Role = "admin"
)

// Valid indica si el rol pertenece al enum conocido.
func (r Role) Valid() bool {
	return r == RoleTrader || r == RoleAdmin
}

// Account es el registro durable de identidad.
type Account struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	FullName          string    `json:"fullName"`
	Role              Role      `json:"role"`
	Avatar            string    `json:"avatar,omitempty"`
	OAuthID           string    `json:"-"`
	BotID             int64     `json:"-"`
	OAuthRefreshToken string    `json:"-"`
	IsVerified        bool      `json:"isVerified"`
	Phone             string    `json:"phone,omitempty"`
	Timezone          string    `json:"timezone,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// PublicAccount es la vista expuesta a clientes: nunca incluye hash ni refresh token.
type PublicAccount struct {
	ID         string    `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	Avatar     string    `json:"avatar,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Timezone   string    `json:"timezone,omitempty"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (a Account) Public() PublicAccount {
	return PublicAccount{
		ID:         a.ID,
		FullName:   a.FullName,
		Email:      a.Email,
		Role:       a.Role,
		Avatar:     a.Avatar,
		Phone:      a.Phone,
		Timezone:   a.Timezone,
		IsVerified: a.IsVerified,
		CreatedAt:  a.CreatedAt,
	}
}

// HasIdentity reporta si la cuenta tiene al menos un mecanismo de login.
func (a Account) HasIdentity() bool {
	return a.PasswordHash != "" || a.OAuthID != "" || a.BotID != 0
}

// AccountUpdate describe un update parcial a nivel de campo. Los punteros nil
// no se tocan; ClearAvatar elimina el avatar.
type AccountUpdate struct {
	Email             *string
	FullName          *string
	Avatar            *string
	ClearAvatar       bool
	OAuthID           *string
	OAuthRefreshToken *string
	IsVerified        *bool
	Phone             *string
	Timezone          *string
}

// Empty indica que el update no modifica ningun campo.
func (u AccountUpdate) Empty() bool {
	return u.Email == nil && u.FullName == nil && u.Avatar == nil && !u.ClearAvatar &&
		u.OAuthID == nil && u.OAuthRefreshToken == nil && u.IsVerified == nil &&
		u.Phone == nil && u.Timezone == nil
}

// OptionalString distingue entre campo omitido, null y valor en un body JSON.
type OptionalString struct {
	Present bool
	Null    bool
	Value   string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}
