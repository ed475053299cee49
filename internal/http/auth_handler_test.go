package http

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"signals-auth/internal/domain"
)

func TestSignup_SetsStrictSessionCookie(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName":        "Ann Lee",
		"email":           "Ann@Example.com",
		"password":        "secret1",
		"confirmPassword": "secret1",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success || env.Data == nil || env.Data.User.Email != "ann@example.com" || env.Data.Token == "" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("response must not mention password fields: %s", rec.Body.String())
	}

	cookie := responseCookie(rec, sessionCookieName)
	if cookie == nil || !cookie.HttpOnly || cookie.SameSite != http.SameSiteStrictMode || cookie.Path != "/" {
		t.Fatalf("unexpected session cookie: %+v", cookie)
	}
	if cookie.MaxAge != 7*24*60*60 {
		t.Fatalf("expected 7 day max-age, got %d", cookie.MaxAge)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	signup(t, s, "a@x.io")

	rec := s.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": "Other", "email": "A@X.io", "password": "secret1", "confirmPassword": "secret1",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "User with this email already exists" {
		t.Fatalf("unexpected message: %q", env.Message)
	}
}

func TestSignup_ValidationMessage(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": "Ann", "email": "a@x.io", "password": "secret1", "confirmPassword": "secret2",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Success || env.Message != "Passwords do not match" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestLogin_GenericFailure(t *testing.T) {
	s := newTestServer(t)
	signup(t, s, "a@x.io")

	for _, body := range []map[string]string{
		{"email": "a@x.io", "password": "wrong-one"},
		{"email": "nobody@x.io", "password": "secret1"},
	} {
		rec := s.do(t, http.MethodPost, "/api/auth/login", body, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if env := decodeEnvelope(t, rec); env.Message != "Invalid email or password" {
			t.Fatalf("unexpected message: %q", env.Message)
		}
	}

	rec := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "A@x.io", "password": "secret1"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if cookie := responseCookie(rec, sessionCookieName); cookie == nil || cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("expected strict session cookie, got %+v", cookie)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	s := newTestServer(t)
	var last int
	for i := 0; i < 6; i++ {
		rec := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.io", "password": "nope-nope"}, nil)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exceeding the window, got %d", last)
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/auth/logout", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	cookie := responseCookie(rec, sessionCookieName)
	if cookie == nil || cookie.MaxAge >= 0 || cookie.Value != "" {
		t.Fatalf("expected cleared session cookie, got %+v", cookie)
	}
	if env := decodeEnvelope(t, rec); !env.Success || env.Message != "Logged out" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestVerify_HeaderAndCookie(t *testing.T) {
	s := newTestServer(t)
	token := signup(t, s, "a@x.io").Data.Token

	rec := s.do(t, http.MethodGet, "/api/auth/verify", nil, withBearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer: expected 200, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/auth/verify", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie: expected 200, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Data == nil || env.Data.User.Email != "a@x.io" || env.Data.Token != "" {
		t.Fatalf("unexpected verify envelope: %+v", env)
	}

	rec = s.do(t, http.MethodGet, "/api/auth/verify", nil, withBearer(token+"x"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("tampered: expected 401, got %d", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/api/auth/verify", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing: expected 401, got %d", rec.Code)
	}
}

func TestVerify_AccountGone(t *testing.T) {
	s := newTestServer(t)
	token, err := s.sessions.Issue("deleted-account", "d@x.io", domain.RoleTrader)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec := s.do(t, http.MethodGet, "/api/auth/verify", nil, withBearer(token))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func oauthErrorFrom(t *testing.T, location string) string {
	t.Helper()
	u, err := url.Parse(location)
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if u.Path != "/login" {
		t.Fatalf("expected redirect to /login, got %s", location)
	}
	return u.Query().Get("oauth_error")
}

func TestGoogleCallback_StateMismatchNoExchange(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/auth/callback/google?code=abc&state=S1", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "S2"})
	})
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if reason := oauthErrorFrom(t, rec.Header().Get("Location")); reason != "Invalid OAuth state" {
		t.Fatalf("unexpected oauth_error: %q", reason)
	}
	if s.provider.calls() != 0 {
		t.Fatalf("expected no token exchange, got %d calls", s.provider.calls())
	}
	cleared := responseCookie(rec, stateCookieName)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected state cookie cleared, got %+v", cleared)
	}
	if responseCookie(rec, sessionCookieName) != nil {
		t.Fatalf("no session cookie may be set on failure")
	}

	// El navegador ya borro la cookie: repetir el callback vuelve a fallar.
	rec = s.do(t, http.MethodGet, "/api/auth/callback/google?code=abc&state=S1", nil, nil)
	if reason := oauthErrorFrom(t, rec.Header().Get("Location")); reason != "Invalid OAuth state" {
		t.Fatalf("second call: unexpected oauth_error: %q", reason)
	}
	if s.provider.calls() != 0 || s.repo.count() != 0 {
		t.Fatalf("second call must not reach the provider or the store")
	}
}

func TestGoogleCallback_ProviderErrorAndMissingCode(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/auth/callback/google?error=access_denied&error_description="+url.QueryEscape("User said no"), nil, nil)
	if reason := oauthErrorFrom(t, rec.Header().Get("Location")); reason != "User said no" {
		t.Fatalf("unexpected oauth_error: %q", reason)
	}

	rec = s.do(t, http.MethodGet, "/api/auth/callback/google?error=access_denied", nil, nil)
	if reason := oauthErrorFrom(t, rec.Header().Get("Location")); reason != "OAuth error occurred" {
		t.Fatalf("unexpected oauth_error: %q", reason)
	}

	rec = s.do(t, http.MethodGet, "/api/auth/callback/google?error=x&error_description="+strings.Repeat("a", 300), nil, nil)
	if reason := oauthErrorFrom(t, rec.Header().Get("Location")); len(reason) != maxOAuthErrorLen {
		t.Fatalf("expected truncated reason, got %d chars", len(reason))
	}

	rec = s.do(t, http.MethodGet, "/api/auth/callback/google?state=S1", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "S1"})
	})
	if reason := oauthErrorFrom(t, rec.Header().Get("Location")); reason != "Missing authorization code" {
		t.Fatalf("unexpected oauth_error: %q", reason)
	}
	if s.provider.calls() != 0 {
		t.Fatalf("expected no token exchange")
	}
}

func TestGoogleFlow_BeginAndCallback(t *testing.T) {
	s := newTestServer(t)

	begin := s.do(t, http.MethodGet, "/api/auth/google", nil, nil)
	if begin.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", begin.Code)
	}
	stateCookie := responseCookie(begin, stateCookieName)
	if stateCookie == nil || stateCookie.Value == "" || stateCookie.MaxAge != stateCookieMaxAge || !stateCookie.HttpOnly {
		t.Fatalf("unexpected state cookie: %+v", stateCookie)
	}
	location, err := url.Parse(begin.Header().Get("Location"))
	if err != nil || location.Query().Get("state") != stateCookie.Value {
		t.Fatalf("provider redirect must carry the stored state")
	}

	rec := s.do(t, http.MethodGet, "/api/auth/callback/google?code=abc&state="+url.QueryEscape(stateCookie.Value), nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: stateCookieName, Value: stateCookie.Value})
	})
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
	session := responseCookie(rec, sessionCookieName)
	if session == nil || session.Value == "" || session.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected session cookie: %+v", session)
	}
	if _, ok := s.sessions.Verify(session.Value); !ok {
		t.Fatalf("issued session must verify")
	}
	if cleared := responseCookie(rec, stateCookieName); cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected state cookie cleared on success")
	}
	if s.provider.calls() != 1 || s.repo.count() != 1 {
		t.Fatalf("expected one exchange and one account, got %d/%d", s.provider.calls(), s.repo.count())
	}
}

func (s testServer) signedBotPayload(t *testing.T) map[string]any {
	t.Helper()
	p := domain.BotLoginPayload{
		ID:        777,
		FirstName: "Tom",
		Username:  "tom",
		AuthDate:  time.Now().Unix(),
	}
	hash, err := s.bot.Sign(p)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return map[string]any{
		"id":         p.ID,
		"first_name": p.FirstName,
		"username":   p.Username,
		"auth_date":  p.AuthDate,
		"hash":       hash,
	}
}

func TestTelegramCallback(t *testing.T) {
	s := newTestServer(t)
	body := s.signedBotPayload(t)

	rec := s.do(t, http.MethodPost, "/api/auth/callback/telegram", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Data == nil || env.Data.User.Email != "777@telegram-user" || !env.Data.User.IsVerified || env.Data.Token == "" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if cookie := responseCookie(rec, sessionCookieName); cookie == nil || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected lax session cookie, got %+v", cookie)
	}

	replay := s.do(t, http.MethodPost, "/api/auth/callback/telegram", body, nil)
	if replay.Code != http.StatusUnauthorized {
		t.Fatalf("expected replay to be rejected, got %d", replay.Code)
	}
}

func TestTelegramCallback_Tampered(t *testing.T) {
	s := newTestServer(t)
	body := s.signedBotPayload(t)
	body["first_name"] = "Mallory"

	rec := s.do(t, http.MethodPost, "/api/auth/callback/telegram", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "Invalid Telegram auth data" {
		t.Fatalf("unexpected message: %q", env.Message)
	}
	if s.repo.count() != 0 {
		t.Fatalf("tampered payload must not create an account")
	}
}
