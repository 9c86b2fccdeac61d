package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"grocery-price-assistant/internal/config"
	"grocery-price-assistant/internal/derror"
	"grocery-price-assistant/internal/domain/model"
	"grocery-price-assistant/internal/domain/ports/repository"
	"grocery-price-assistant/internal/usecase"
)

// --- Mocks for the server's collaborators ---

type mockChat struct {
	reply   string
	err     error
	lastSID string
	lastMsg string
}

func (m *mockChat) HandleTurn(ctx context.Context, sessionID, text string) (string, error) {
	m.lastSID = sessionID
	m.lastMsg = text
	return m.reply, m.err
}

type mockLocker struct {
	failWith error
	locked   int
	unlocked int
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.failWith != nil {
		return "", m.failWith
	}
	m.locked++
	return "token", nil
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error {
	m.unlocked++
	return nil
}

type mockLimiter struct {
	allow bool
	err   error
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return m.allow, m.err
}

type mockProductRepo struct {
	stats []repository.SourceStats
	err   error
}

func (m *mockProductRepo) SaveBatch(ctx context.Context, products []*model.Product) (int, error) {
	return len(products), nil
}

func (m *mockProductRepo) Lookup(source model.Source) repository.ProductLookup { return nil }

func (m *mockProductRepo) Stats(ctx context.Context) ([]repository.SourceStats, error) {
	return m.stats, m.err
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Addr: ":0", AdminAPIKey: "secret"},
		Chat: config.ChatConfig{
			RateLimit:  5,
			RateWindow: time.Minute,
		},
		Session: config.SessionConfig{
			SigningKey: "test-signing-key",
			CookieName: "gpa_session",
			TTL:        time.Hour,
		},
	}
}

func newTestServer(chat *mockChat, locker *mockLocker, limiter *mockLimiter, repo *mockProductRepo) *Server {
	logger := zerolog.Nop()
	cfg := testConfig()
	return NewServer(
		cfg,
		chat,
		usecase.NewCatalogUseCase(repo),
		NewSessionManager(cfg.Session),
		locker,
		limiter,
		&logger,
		map[string]Pinger{"ok": func(ctx context.Context) error { return nil }},
	)
}

func postTurn(t *testing.T, handler http.Handler, msg string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"msg": {msg}}
	req := httptest.NewRequest(http.MethodPost, "/get", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestTurnEndpoint(t *testing.T) {
	t.Parallel()

	chat := &mockChat{reply: "Hello! How can I assist you today?"}
	locker := &mockLocker{}
	srv := newTestServer(chat, locker, &mockLimiter{allow: true}, &mockProductRepo{})
	handler := srv.Routes()

	rec := postTurn(t, handler, "hi", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != chat.reply {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if chat.lastMsg != "hi" {
		t.Fatalf("msg forwarded = %q", chat.lastMsg)
	}
	if chat.lastSID == "" {
		t.Fatal("no session ID assigned")
	}
	if locker.locked != 1 || locker.unlocked != 1 {
		t.Fatalf("lock/unlock = %d/%d, want 1/1", locker.locked, locker.unlocked)
	}

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "gpa_session" {
			session = c
		}
	}
	if session == nil {
		t.Fatal("session cookie not issued")
	}

	// The same cookie maps to the same session on the next turn.
	firstSID := chat.lastSID
	rec = postTurn(t, handler, "1", []*http.Cookie{session})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if chat.lastSID != firstSID {
		t.Fatalf("session changed between turns: %q -> %q", firstSID, chat.lastSID)
	}
}

func TestTurnEndpoint_TamperedCookieGetsFreshSession(t *testing.T) {
	t.Parallel()

	chat := &mockChat{reply: "ok"}
	srv := newTestServer(chat, &mockLocker{}, &mockLimiter{allow: true}, &mockProductRepo{})
	handler := srv.Routes()

	bad := &http.Cookie{Name: "gpa_session", Value: "not-a-jwt"}
	rec := postTurn(t, handler, "hi", []*http.Cookie{bad})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if chat.lastSID == "" {
		t.Fatal("expected a fresh session ID")
	}
	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "gpa_session" && c.Value != "not-a-jwt" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a replacement session cookie")
	}
}

func TestTurnEndpoint_RateLimited(t *testing.T) {
	t.Parallel()

	chat := &mockChat{reply: "should not be reached"}
	srv := newTestServer(chat, &mockLocker{}, &mockLimiter{allow: false}, &mockProductRepo{})

	rec := postTurn(t, srv.Routes(), "hi", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != replyRateLimited {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if chat.lastMsg != "" {
		t.Fatal("chat should not run when rate limited")
	}
}

func TestTurnEndpoint_ConcurrentTurnBusy(t *testing.T) {
	t.Parallel()

	chat := &mockChat{reply: "should not be reached"}
	locker := &mockLocker{failWith: derror.ErrTurnInProgress}
	srv := newTestServer(chat, locker, &mockLimiter{allow: true}, &mockProductRepo{})

	rec := postTurn(t, srv.Routes(), "hi", nil)
	if rec.Body.String() != replyTurnInProgress {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if chat.lastMsg != "" {
		t.Fatal("chat should not run while another turn holds the lock")
	}
}

func TestStatsEndpointAuth(t *testing.T) {
	t.Parallel()

	repo := &mockProductRepo{stats: []repository.SourceStats{
		{Source: model.SourceZepto, Products: 10},
		{Source: model.SourceBigBasket, Products: 12},
	}}
	srv := newTestServer(&mockChat{}, &mockLocker{}, &mockLimiter{allow: true}, repo)
	handler := srv.Routes()

	get := func(auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := get(""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no auth: status = %d", rec.Code)
	}
	if rec := get("Bearer wrong"); rec.Code != http.StatusForbidden {
		t.Fatalf("wrong key: status = %d", rec.Code)
	}

	rec := get("Bearer secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("right key: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "zepto") {
		t.Fatalf("stats body = %q", rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&mockChat{}, &mockLocker{}, &mockLimiter{allow: true}, &mockProductRepo{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestChatPageRenders(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&mockChat{}, &mockLocker{}, &mockLimiter{allow: true}, &mockProductRepo{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Grocery Price Assistant") {
		t.Fatal("chat page missing title")
	}
}
