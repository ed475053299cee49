package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"signals-auth/internal/domain"
	"signals-auth/internal/repository"
)

const defaultStoreTimeout = 5 * time.Second

// botEmailDomain arma emails placeholder no enrutables para cuentas de Telegram.
const botEmailDomain = "telegram-user"

// AccountResolver busca o crea la cuenta local para cada identidad verificada.
type AccountResolver struct {
	logger   *zap.Logger
	accounts repository.AccountRepository
	timeout  time.Duration
	now      func() time.Time
}

func NewAccountResolver(logger *zap.Logger, accounts repository.AccountRepository, timeout time.Duration) *AccountResolver {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountResolver{
		logger:   logger,
		accounts: accounts,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ProfileUpdate es el body parcial de PUT /api/user/profile.
type ProfileUpdate struct {
	FullName *string               `json:"fullName"`
	Phone    *string               `json:"phone"`
	Timezone *string               `json:"timezone"`
	Email    *string               `json:"email"`
	Avatar   domain.OptionalString `json:"avatar"`
}

// UnmarshalJSON ignora los campos conocidos que no vienen como string en lugar
// de rechazar todo el body.
func (u *ProfileUpdate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = ProfileUpdate{
		FullName: looseString(raw["fullName"]),
		Phone:    looseString(raw["phone"]),
		Timezone: looseString(raw["timezone"]),
		Email:    looseString(raw["email"]),
	}
	if v, ok := raw["avatar"]; ok {
		var avatar domain.OptionalString
		if err := avatar.UnmarshalJSON(v); err == nil {
			u.Avatar = avatar
		}
	}
	return nil
}

func looseString(v json.RawMessage) *string {
	if len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil
	}
	return &s
}

// CreateFromPassword crea una cuenta trader sin verificar. La unicidad del email
// la garantiza el store: una violacion al escribir tambien es ErrEmailInUse.
func (r *AccountResolver) CreateFromPassword(ctx context.Context, emailAddr, fullName, passwordHash string) (domain.Account, error) {
	emailAddr = normalizeEmail(emailAddr)
	fullName = strings.TrimSpace(fullName)
	if emailAddr == "" || fullName == "" || passwordHash == "" {
		return domain.Account{}, validationErr("All fields are required")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.accounts.GetByEmail(ctx, emailAddr); err == nil {
		return domain.Account{}, ErrEmailInUse
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, storageErr("get account by email", err)
	}

	now := r.now()
	account := domain.Account{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		PasswordHash: passwordHash,
		FullName:     fullName,
		Role:         domain.RoleTrader,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.create(ctx, account); err != nil {
		return domain.Account{}, err
	}
	account.PasswordHash = ""
	return account, nil
}

// UpsertFromOAuth busca por id del proveedor y despues por email; si encuentra
// una cuenta refresca su perfil, si no crea una sin password.
func (r *AccountResolver) UpsertFromOAuth(ctx context.Context, profile domain.OAuthProfile) (domain.Account, error) {
	subject := strings.TrimSpace(profile.Subject)
	emailAddr := normalizeEmail(profile.Email)
	if subject == "" || emailAddr == "" {
		return domain.Account{}, validationErr("OAuth profile is incomplete")
	}
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = emailLocalPart(emailAddr)
	}
	name = truncateRunes(name, maxFullNameLen)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	existing, err := r.accounts.GetByOAuthID(ctx, subject)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err = r.accounts.GetByEmail(ctx, emailAddr)
	}
	switch {
	case err == nil:
		update := domain.AccountUpdate{
			FullName: &name,
			OAuthID:  &subject,
		}
		if profile.AvatarURL != "" {
			update.Avatar = &profile.AvatarURL
		}
		if profile.EmailVerified && !existing.IsVerified {
			verified := true
			update.IsVerified = &verified
		}
		if profile.RefreshToken != "" {
			update.OAuthRefreshToken = &profile.RefreshToken
		}
		return r.update(ctx, existing.ID, update)
	case !errors.Is(err, pgx.ErrNoRows):
		return domain.Account{}, storageErr("get account by oauth identity", err)
	}

	now := r.now()
	account := domain.Account{
		ID:                uuid.NewString(),
		Email:             emailAddr,
		FullName:          name,
		Role:              domain.RoleTrader,
		Avatar:            profile.AvatarURL,
		OAuthID:           subject,
		OAuthRefreshToken: profile.RefreshToken,
		IsVerified:        profile.EmailVerified,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := r.create(ctx, account); err != nil {
		return domain.Account{}, err
	}
	r.logger.Info("account created from oauth", zap.String("account_id", account.ID))
	return account, nil
}

// UpsertFromBotPayload busca por id de plataforma; las cuentas nuevas reciben un
// email placeholder <id>@telegram-user y quedan verificadas.
func (r *AccountResolver) UpsertFromBotPayload(ctx context.Context, payload domain.BotLoginPayload) (domain.Account, error) {
	if payload.ID <= 0 {
		return domain.Account{}, validationErr("Invalid Telegram auth data")
	}
	name := truncateRunes(strings.TrimSpace(payload.DisplayName()), maxFullNameLen)
	if name == "" {
		name = strconv.FormatInt(payload.ID, 10)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	existing, err := r.accounts.GetByBotID(ctx, payload.ID)
	if err == nil {
		verified := true
		update := domain.AccountUpdate{
			FullName:   &name,
			IsVerified: &verified,
		}
		if payload.PhotoURL != "" {
			update.Avatar = &payload.PhotoURL
		}
		return r.update(ctx, existing.ID, update)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, storageErr("get account by bot id", err)
	}

	now := r.now()
	account := domain.Account{
		ID:         uuid.NewString(),
		Email:      strconv.FormatInt(payload.ID, 10) + "@" + botEmailDomain,
		FullName:   name,
		Role:       domain.RoleTrader,
		Avatar:     payload.PhotoURL,
		BotID:      payload.ID,
		IsVerified: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.create(ctx, account); err != nil {
		return domain.Account{}, err
	}
	r.logger.Info("account created from bot login", zap.String("account_id", account.ID))
	return account, nil
}

func (r *AccountResolver) FindByID(ctx context.Context, id string) (domain.Account, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Account{}, ErrAccountNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	account, err := r.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, storageErr("get account by id", err)
	}
	return account, nil
}

// UpdateProfile aplica un update parcial. Sin campos reconocidos es un error
// de validacion, no un no-op.
func (r *AccountResolver) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (domain.Account, error) {
	var update domain.AccountUpdate

	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return domain.Account{}, validationErr("Full name cannot be empty")
		}
		name = truncateRunes(name, maxFullNameLen)
		update.FullName = &name
	}
	if in.Phone != nil {
		phone := truncateRunes(strings.TrimSpace(*in.Phone), maxPhoneLen)
		update.Phone = &phone
	}
	if in.Timezone != nil {
		tz := truncateRunes(strings.TrimSpace(*in.Timezone), maxTimezoneLen)
		update.Timezone = &tz
	}
	if in.Avatar.Present {
		if in.Avatar.Null || in.Avatar.Value == "" {
			update.ClearAvatar = true
		} else {
			avatar := in.Avatar.Value
			update.Avatar = &avatar
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if in.Email != nil {
		emailAddr := normalizeEmail(*in.Email)
		if !isValidEmail(emailAddr) {
			return domain.Account{}, validationErr("Please provide a valid email")
		}
		taken, err := r.accounts.EmailTakenByOther(ctx, emailAddr, id)
		if err != nil {
			return domain.Account{}, storageErr("check email uniqueness", err)
		}
		if taken {
			return domain.Account{}, ErrEmailInUse
		}
		update.Email = &emailAddr
	}

	if update.Empty() {
		return domain.Account{}, validationErr("No updates provided")
	}
	return r.update(ctx, id, update)
}

func (r *AccountResolver) create(ctx context.Context, account domain.Account) error {
	if !account.HasIdentity() {
		return errors.New("account has no login identity")
	}
	err := r.accounts.Create(ctx, account)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrDuplicateEmail),
		errors.Is(err, repository.ErrDuplicateOAuthID),
		errors.Is(err, repository.ErrDuplicateBotID):
		return ErrEmailInUse
	default:
		return storageErr("create account", err)
	}
}

func (r *AccountResolver) update(ctx context.Context, id string, update domain.AccountUpdate) (domain.Account, error) {
	account, err := r.accounts.Update(ctx, id, update)
	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return domain.Account{}, ErrAccountNotFound
	case errors.Is(err, repository.ErrDuplicateEmail),
		errors.Is(err, repository.ErrDuplicateOAuthID):
		return domain.Account{}, ErrEmailInUse
	default:
		return domain.Account{}, storageErr("update account", err)
	}
}
