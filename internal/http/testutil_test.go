package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"signals-auth/internal/domain"
	"signals-auth/internal/oauth"
	"signals-auth/internal/repository"
	"signals-auth/internal/service"
)

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[string]domain.Account)}
}

func (m *memAccountRepo) find(match func(domain.Account) bool, withPassword bool) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if match(a) {
			if !withPassword {
				a.PasswordHash = ""
			}
			return a, nil
		}
	}
	return domain.Account{}, pgx.ErrNoRows
}

func (m *memAccountRepo) Create(_ context.Context, account domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == account.Email {
			return repository.ErrDuplicateEmail
		}
		if account.OAuthID != "" && a.OAuthID == account.OAuthID {
			return repository.ErrDuplicateOAuthID
		}
		if account.BotID != 0 && a.BotID == account.BotID {
			return repository.ErrDuplicateBotID
		}
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *memAccountRepo) GetByID(_ context.Context, id string) (domain.Account, error) {
	return m.find(func(a domain.Account) bool { return a.ID == id }, false)
}

func (m *memAccountRepo) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	return m.find(func(a domain.Account) bool { return a.Email == email }, false)
}

func (m *memAccountRepo) GetByEmailWithPassword(_ context.Context, email string) (domain.Account, error) {
	return m.find(func(a domain.Account) bool { return a.Email == email }, true)
}

func (m *memAccountRepo) GetByOAuthID(_ context.Context, oauthID string) (domain.Account, error) {
	return m.find(func(a domain.Account) bool { return a.OAuthID != "" && a.OAuthID == oauthID }, false)
}

func (m *memAccountRepo) GetByBotID(_ context.Context, botID int64) (domain.Account, error) {
	return m.find(func(a domain.Account) bool { return a.BotID != 0 && a.BotID == botID }, false)
}

func (m *memAccountRepo) EmailTakenByOther(_ context.Context, email, excludeID string) (bool, error) {
	_, err := m.find(func(a domain.Account) bool { return a.Email == email && a.ID != excludeID }, false)
	return err == nil, nil
}

func (m *memAccountRepo) Update(_ context.Context, id string, u domain.AccountUpdate) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, pgx.ErrNoRows
	}
	if u.Email != nil {
		a.Email = *u.Email
	}
	if u.FullName != nil {
		a.FullName = *u.FullName
	}
	if u.Avatar != nil {
		a.Avatar = *u.Avatar
	}
	if u.ClearAvatar {
		a.Avatar = ""
	}
	if u.OAuthID != nil {
		a.OAuthID = *u.OAuthID
	}
	if u.OAuthRefreshToken != nil {
		a.OAuthRefreshToken = *u.OAuthRefreshToken
	}
	if u.IsVerified != nil {
		a.IsVerified = *u.IsVerified
	}
	if u.Phone != nil {
		a.Phone = *u.Phone
	}
	if u.Timezone != nil {
		a.Timezone = *u.Timezone
	}
	m.accounts[id] = a
	a.PasswordHash = ""
	return a, nil
}

func (m *memAccountRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

type countingProvider struct {
	mu            sync.Mutex
	exchangeCalls int
	info          oauth.UserInfo
}

func (p *countingProvider) Name() string { return "google" }

func (p *countingProvider) AuthCodeURL(state string) string {
	return "https://accounts.example/auth?state=" + url.QueryEscape(state)
}

func (p *countingProvider) Exchange(context.Context, string) (oauth.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeCalls++
	return oauth.Token{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (p *countingProvider) UserInfo(context.Context, string) (oauth.UserInfo, error) {
	return p.info, nil
}

func (p *countingProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchangeCalls
}

const testBotToken = "42:bot-token"

type testServer struct {
	router   *gin.Engine
	repo     *memAccountRepo
	provider *countingProvider
	bot      *service.BotSignatureVerifier
	sessions *service.SessionTokenService
	db       *fakePinger
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(t *testing.T) testServer {
	t.Helper()
	return newTestServerWithSecret(t, "test-secret")
}

func newTestServerWithSecret(t *testing.T, secret string) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	repo := newMemAccountRepo()
	provider := &countingProvider{info: oauth.UserInfo{
		ID:            "google-1",
		Email:         "gina@example.com",
		Name:          "Gina",
		VerifiedEmail: true,
	}}
	bot := service.NewBotSignatureVerifier(testBotToken, time.Hour, service.NewMemoryReplayGuard())
	sessions := service.NewSessionTokenService(secret)
	auth := service.NewAuthService(
		logger,
		service.NewCredentialVerifier(repo, time.Second),
		bot,
		service.NewOAuthExchanger(provider, time.Second),
		sessions,
		service.NewAccountResolver(logger, repo, time.Second),
		service.NewLoginRateLimiter(time.Minute, 5),
	)
	db := &fakePinger{}
	router := NewRouter(
		logger,
		NewAuthHandler(logger, auth, AuthHandlerConfig{}),
		NewProfileHandler(logger, auth),
		NewHealthHandler(logger, db),
		SessionMiddleware(auth),
	)
	return testServer{router: router, repo: repo, provider: provider, bot: bot, sessions: sessions, db: db}
}

func (s testServer) do(t *testing.T, method, target string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body=%s)", err, rec.Body.String())
	}
	return env
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func signup(t *testing.T, s testServer, email string) envelope {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName":        "Ann Lee",
		"email":           email,
		"password":        "secret1",
		"confirmPassword": "secret1",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	return decodeEnvelope(t, rec)
}
