package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"signals-auth/internal/domain"
)

// AccountRepository define el contrato de persistencia para cuentas.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByEmailWithPassword(ctx context.Context, email string) (domain.Account, error)
	GetByOAuthID(ctx context.Context, oauthID string) (domain.Account, error)
	GetByBotID(ctx context.Context, botID int64) (domain.Account, error)
	EmailTakenByOther(ctx context.Context, email, excludeID string) (bool, error)
	Update(ctx context.Context, id string, update domain.AccountUpdate) (domain.Account, error)
}

var (
	ErrDuplicateEmail   = errors.New("duplicate account email")
	ErrDuplicateOAuthID = errors.New("duplicate account oauth id")
	ErrDuplicateBotID   = errors.New("duplicate account bot id")
)

const pgUniqueViolation = "23505"

// PgAccountRepository implementa AccountRepository usando pgxpool.
type PgAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPgAccountRepository(pool *pgxpool.Pool) *PgAccountRepository {
	return &PgAccountRepository{pool: pool}
}

const accountColumns = `
	id, email, full_name, role, COALESCE(avatar, ''), COALESCE(oauth_id, ''), COALESCE(bot_id, 0),
	COALESCE(oauth_refresh_token, ''), is_verified, COALESCE(phone, ''), COALESCE(timezone, ''),
	created_at, updated_at`

func (r *PgAccountRepository) Create(ctx context.Context, account domain.Account) error {
	const query = `
		INSERT INTO accounts (id, email, password_hash, full_name, role, avatar, oauth_id, bot_id,
			oauth_refresh_token, is_verified, phone, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.Email,
		nullIfEmpty(account.PasswordHash),
		account.FullName,
		string(account.Role),
		nullIfEmpty(account.Avatar),
		nullIfEmpty(account.OAuthID),
		nullIfZero(account.BotID),
		nullIfEmpty(account.OAuthRefreshToken),
		account.IsVerified,
		nullIfEmpty(account.Phone),
		nullIfEmpty(account.Timezone),
		account.CreatedAt,
		account.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *PgAccountRepository) GetByID(ctx context.Context, id string) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

func (r *PgAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, email))
}

// GetByEmailWithPassword es la unica lectura que incluye password_hash.
func (r *PgAccountRepository) GetByEmailWithPassword(ctx context.Context, email string) (domain.Account, error) {
	query := `SELECT ` + accountColumns + `, COALESCE(password_hash, '') FROM accounts WHERE email = $1`
	var a domain.Account
	var role string
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&a.ID,
		&a.Email,
		&a.FullName,
		&role,
		&a.Avatar,
		&a.OAuthID,
		&a.BotID,
		&a.OAuthRefreshToken,
		&a.IsVerified,
		&a.Phone,
		&a.Timezone,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.PasswordHash,
	)
	if err != nil {
		return domain.Account{}, err
	}
	a.Role = domain.Role(role)
	return a, nil
}

func (r *PgAccountRepository) GetByOAuthID(ctx context.Context, oauthID string) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE oauth_id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, oauthID))
}

func (r *PgAccountRepository) GetByBotID(ctx context.Context, botID int64) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE bot_id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, botID))
}

func (r *PgAccountRepository) EmailTakenByOther(ctx context.Context, email, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1 AND id <> $2)`
	var taken bool
	if err := r.pool.QueryRow(ctx, query, email, excludeID).Scan(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

// Update aplica set/unset por campo y devuelve la cuenta resultante.
// Devuelve pgx.ErrNoRows si la cuenta no existe.
func (r *PgAccountRepository) Update(ctx context.Context, id string, update domain.AccountUpdate) (domain.Account, error) {
	query, args := buildAccountUpdate(id, update, time.Now().UTC())
	account, err := scanAccount(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, err
		}
		return domain.Account{}, mapWriteError(err)
	}
	return account, nil
}

func buildAccountUpdate(id string, update domain.AccountUpdate, now time.Time) (string, []any) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Email != nil {
		set("email", *update.Email)
	}
	if update.FullName != nil {
		set("full_name", *update.FullName)
	}
	if update.ClearAvatar {
		sets = append(sets, "avatar = NULL")
	} else if update.Avatar != nil {
		set("avatar", nullIfEmpty(*update.Avatar))
	}
	if update.OAuthID != nil {
		set("oauth_id", nullIfEmpty(*update.OAuthID))
	}
	if update.OAuthRefreshToken != nil {
		set("oauth_refresh_token", nullIfEmpty(*update.OAuthRefreshToken))
	}
	if update.IsVerified != nil {
		set("is_verified", *update.IsVerified)
	}
	if update.Phone != nil {
		set("phone", *update.Phone)
	}
	if update.Timezone != nil {
		set("timezone", *update.Timezone)
	}
	set("updated_at", now)
	args = append(args, id)

	query := fmt.Sprintf(
		"UPDATE accounts SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "),
		len(args),
		accountColumns,
	)
	return query, args
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	var role string
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.FullName,
		&role,
		&a.Avatar,
		&a.OAuthID,
		&a.BotID,
		&a.OAuthRefreshToken,
		&a.IsVerified,
		&a.Phone,
		&a.Timezone,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	a.Role = domain.Role(role)
	return a, nil
}

// mapWriteError traduce violaciones de unicidad a errores del repositorio.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "accounts_oauth_id_key":
		return fmt.Errorf("%w: %s", ErrDuplicateOAuthID, pgErr.ConstraintName)
	case "accounts_bot_id_key":
		return fmt.Errorf("%w: %s", ErrDuplicateBotID, pgErr.ConstraintName)
	default:
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, pgErr.ConstraintName)
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}
