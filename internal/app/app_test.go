package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/benvon/matrix-todo/internal/apperr"
	"github.com/benvon/matrix-todo/internal/config"
	"github.com/benvon/matrix-todo/internal/fakeapi"
	"github.com/benvon/matrix-todo/internal/models"
	"github.com/benvon/matrix-todo/internal/storage"
)

func newFake(t *testing.T) *httptest.Server {
	t.Helper()
	fake, err := fakeapi.New()
	if err != nil {
		t.Fatalf("fakeapi.New failed: %v", err)
	}
	if err := fake.AddUser("u1", "ada@example.com", "pw", "Ada"); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	if err := fake.AddUser("u2", "bob@example.com", "pw", "Bob"); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL, tokenFile string) *config.Config {
	cfg := config.Default()
	cfg.APIBaseURL = baseURL
	cfg.TokenFile = tokenFile
	return cfg
}

func TestNew_SessionSurvivesRestart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := newFake(t)
	cfg := testConfig(srv.URL, filepath.Join(t.TempDir(), "jwt_token.json"))

	first, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if first.Sessions.State() != models.SessionAnonymous {
		t.Fatalf("Expected anonymous start, got %s", first.Sessions.State())
	}
	if err := first.Sessions.SignIn(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if _, err := first.Tasks.Create(ctx, models.CreateTaskRequest{Title: "Buy milk"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_ = first.Close(ctx)

	second, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = second.Close(ctx) }()
	if s := second.Sessions.Current(); s.State != models.SessionAuthenticated || s.UserID != "u1" {
		t.Fatalf("Expected restored session for u1, got %+v", s)
	}
	got, err := second.Tasks.Fetch(ctx, nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Buy milk" {
		t.Errorf("Expected the task created before restart, got %+v", got)
	}
}

func TestNew_SignOutResetsTasks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := newFake(t)
	cfg := testConfig(srv.URL, "")
	cfg.TokenStore = config.StoreMemory

	a, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = a.Close(ctx) }()

	if err := a.Sessions.SignIn(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if _, err := a.Tasks.Create(ctx, models.CreateTaskRequest{Title: "secret"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := a.Sessions.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if len(a.Tasks.Tasks()) != 0 {
		t.Error("Expected task cache to be cleared on sign-out")
	}
	if _, err := a.Tasks.Fetch(ctx, nil); !apperr.IsSessionExpired(err) {
		t.Errorf("Expected session expired error after sign-out, got %v", err)
	}

	if err := a.Sessions.SignIn(ctx, "bob@example.com", "pw"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	got, err := a.Tasks.Fetch(ctx, nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected bob to see no tasks, got %+v", got)
	}
}

func TestNew_CookieMirror(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := newFake(t)
	cfg := testConfig(srv.URL, "")
	cfg.TokenStore = config.StoreMemory
	cfg.MirrorCookie = true

	a, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = a.Close(ctx) }()

	if err := a.Sessions.SignIn(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	stored, err := a.Store.Load(ctx)
	if err != nil || stored != a.Sessions.Current().Token {
		t.Errorf("Expected mirrored store to hold the session token, got %q (err %v)", stored, err)
	}
	if _, ok := a.Store.(*storage.CookieMirror); !ok {
		t.Errorf("Expected the store to be wrapped in a cookie mirror, got %T", a.Store)
	}
	if cookies := a.Jar.Cookies(a.Client.BaseURL()); len(cookies) != 1 {
		t.Errorf("Expected one mirrored cookie, got %d", len(cookies))
	}
}

func TestNew_InvalidatesOnUnauthorized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake, err := fakeapi.New(fakeapi.WithTokenTTL(time.Hour))
	if err != nil {
		t.Fatalf("fakeapi.New failed: %v", err)
	}
	_ = fake.AddUser("u1", "ada@example.com", "pw", "Ada")
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cfg := testConfig(srv.URL, "")
	cfg.TokenStore = config.StoreMemory
	a, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Sessions.SignIn(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	fake.Inject("GET", "/tasks", 401, map[string]string{"detail": "Could not validate credentials"})
	if _, err := a.Tasks.Fetch(ctx, nil); !apperr.IsSessionExpired(err) {
		t.Fatalf("Expected session expired error, got %v", err)
	}
	if a.Sessions.State() != models.SessionAnonymous {
		t.Errorf("Expected 401 to end the session, got %s", a.Sessions.State())
	}
	if _, err := a.Store.Load(ctx); err == nil {
		t.Error("Expected stored token to be cleared")
	}
}
