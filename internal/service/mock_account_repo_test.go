package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"signals-auth/internal/domain"
	"signals-auth/internal/repository"
)

// mockAccountRepo imita las constraints UNIQUE de la tabla accounts.
type mockAccountRepo struct {
	mu       sync.Mutex
	byID     map[string]domain.Account
	byEmail  map[string]string
	byOAuth  map[string]string
	byBot    map[int64]string
	creates  int
	failWith error
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{
		byID:    make(map[string]domain.Account),
		byEmail: make(map[string]string),
		byOAuth: make(map[string]string),
		byBot:   make(map[int64]string),
	}
}

func (m *mockAccountRepo) Create(_ context.Context, account domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.byEmail[account.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	if account.OAuthID != "" {
		if _, ok := m.byOAuth[account.OAuthID]; ok {
			return repository.ErrDuplicateOAuthID
		}
	}
	if account.BotID != 0 {
		if _, ok := m.byBot[account.BotID]; ok {
			return repository.ErrDuplicateBotID
		}
	}
	m.creates++
	m.store(account)
	return nil
}

func (m *mockAccountRepo) store(account domain.Account) {
	m.byID[account.ID] = account
	m.byEmail[account.Email] = account.ID
	if account.OAuthID != "" {
		m.byOAuth[account.OAuthID] = account.ID
	}
	if account.BotID != 0 {
		m.byBot[account.BotID] = account.ID
	}
}

func (m *mockAccountRepo) get(id string, withPassword bool) (domain.Account, error) {
	if m.failWith != nil {
		return domain.Account{}, m.failWith
	}
	account, ok := m.byID[id]
	if !ok {
		return domain.Account{}, pgx.ErrNoRows
	}
	if !withPassword {
		account.PasswordHash = ""
	}
	return account, nil
}

func (m *mockAccountRepo) GetByID(_ context.Context, id string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id, false)
}

func (m *mockAccountRepo) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(m.byEmail[email], false)
}

func (m *mockAccountRepo) GetByEmailWithPassword(_ context.Context, email string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(m.byEmail[email], true)
}

func (m *mockAccountRepo) GetByOAuthID(_ context.Context, oauthID string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(m.byOAuth[oauthID], false)
}

func (m *mockAccountRepo) GetByBotID(_ context.Context, botID int64) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(m.byBot[botID], false)
}

func (m *mockAccountRepo) EmailTakenByOther(_ context.Context, email, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	id, ok := m.byEmail[email]
	return ok && id != excludeID, nil
}

func (m *mockAccountRepo) Update(_ context.Context, id string, update domain.AccountUpdate) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return domain.Account{}, m.failWith
	}
	account, ok := m.byID[id]
	if !ok {
		return domain.Account{}, pgx.ErrNoRows
	}
	if update.Email != nil && *update.Email != account.Email {
		if _, taken := m.byEmail[*update.Email]; taken {
			return domain.Account{}, repository.ErrDuplicateEmail
		}
		delete(m.byEmail, account.Email)
		account.Email = *update.Email
	}
	if update.OAuthID != nil && *update.OAuthID != account.OAuthID {
		if other, taken := m.byOAuth[*update.OAuthID]; taken && other != id {
			return domain.Account{}, repository.ErrDuplicateOAuthID
		}
		account.OAuthID = *update.OAuthID
	}
	if update.FullName != nil {
		account.FullName = *update.FullName
	}
	if update.Avatar != nil {
		account.Avatar = *update.Avatar
	}
	if update.ClearAvatar {
		account.Avatar = ""
	}
	if update.OAuthRefreshToken != nil {
		account.OAuthRefreshToken = *update.OAuthRefreshToken
	}
	if update.IsVerified != nil {
		account.IsVerified = *update.IsVerified
	}
	if update.Phone != nil {
		account.Phone = *update.Phone
	}
	if update.Timezone != nil {
		account.Timezone = *update.Timezone
	}
	account.UpdatedAt = time.Now().UTC()
	m.store(account)
	account.PasswordHash = ""
	return account, nil
}

func (m *mockAccountRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

var errStoreDown = errors.New("connection refused")
