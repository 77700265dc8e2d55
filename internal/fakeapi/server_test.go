package fakeapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.AddUser("u1", "ada@example.com", "pw", "Ada"); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	return s
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var out map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	return rr, out
}

func TestSignIn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		validate   func(*testing.T, map[string]any)
	}{
		{
			name:       "valid credentials",
			body:       map[string]string{"email": "ada@example.com", "password": "pw"},
			wantStatus: http.StatusOK,
			validate: func(t *testing.T, body map[string]any) {
				data, _ := body["data"].(map[string]any)
				if data["user_id"] != "u1" {
					t.Errorf("Expected user_id 'u1', got %v", data["user_id"])
				}
				if tok, _ := data["token"].(string); strings.Count(tok, ".") != 2 {
					t.Errorf("Expected a JWT, got %q", tok)
				}
			},
		},
		{
			name:       "wrong password",
			body:       map[string]string{"email": "ada@example.com", "password": "nope"},
			wantStatus: http.StatusUnauthorized,
			validate: func(t *testing.T, body map[string]any) {
				if body["detail"] != "Incorrect email or password" {
					t.Errorf("Expected detail message, got %v", body["detail"])
				}
			},
		},
		{
			name:       "unknown user",
			body:       map[string]string{"email": "bob@example.com", "password": "pw"},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t)
			rr, body := do(t, s, http.MethodPost, "/auth/signin", "", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.validate != nil {
				tt.validate(t, body)
			}
		})
	}
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rr, _ := do(t, s, http.MethodPost, "/auth/signup", "", map[string]string{"email": "ada@example.com", "password": "x", "name": "Ada"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}

	rr, _ = do(t, s, http.MethodPost, "/auth/signup", "", map[string]string{"email": "new@example.com", "password": "x", "name": "New"})
	if rr.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rr.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	valid, _, err := s.IssueToken("u1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	expired, _, err := s.IssueToken("u1", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	other, err := New(WithSecret("other"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_ = other.AddUser("u1", "ada@example.com", "pw", "Ada")
	forged, _, _ := other.IssueToken("u1", time.Hour)

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{name: "valid", token: valid, wantStatus: http.StatusOK},
		{name: "missing", token: "", wantStatus: http.StatusUnauthorized},
		{name: "expired", token: expired, wantStatus: http.StatusUnauthorized},
		{name: "wrong signature", token: forged, wantStatus: http.StatusUnauthorized},
		{name: "garbage", token: "abc", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr, _ := do(t, s, http.MethodGet, "/auth/me", tt.token, nil)
			if rr.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}

func TestTaskLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	tok, _, err := s.IssueToken("u1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	rr, body := do(t, s, http.MethodPost, "/tasks", tok, map[string]any{"title": "  Buy milk  "})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created, _ := body["data"].(map[string]any)
	id, _ := created["id"].(string)
	if created["title"] != "Buy milk" {
		t.Errorf("Expected sanitized title 'Buy milk', got %v", created["title"])
	}
	if created["priority"] != "not_urgent_not_important" {
		t.Errorf("Expected default priority, got %v", created["priority"])
	}

	rr, body = do(t, s, http.MethodPatch, "/tasks/"+id, tok, map[string]any{"is_completed": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	updated, _ := body["data"].(map[string]any)
	if updated["is_completed"] != true || updated["title"] != "Buy milk" {
		t.Errorf("Expected only is_completed to change, got %v", updated)
	}

	rr, body = do(t, s, http.MethodGet, "/tasks?is_completed=true", tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	page, _ := body["data"].(map[string]any)
	if page["total_count"] != float64(1) {
		t.Errorf("Expected total_count 1, got %v", page["total_count"])
	}

	rr, body = do(t, s, http.MethodDelete, "/tasks/"+id, tok, nil)
	if rr.Code != http.StatusOK || body["success"] != true {
		t.Errorf("Expected successful delete, got %d %v", rr.Code, body)
	}

	rr, _ = do(t, s, http.MethodGet, "/tasks/"+id, tok, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", rr.Code)
	}
}

func TestListTasks_Validation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	tok, _, _ := s.IssueToken("u1", time.Hour)

	tests := []struct {
		query      string
		wantStatus int
	}{
		{query: "", wantStatus: http.StatusOK},
		{query: "?priority=urgent_important&sort_by=title&sort_order=asc&limit=100", wantStatus: http.StatusOK},
		{query: "?priority=someday", wantStatus: http.StatusUnprocessableEntity},
		{query: "?sort_by=colour", wantStatus: http.StatusUnprocessableEntity},
		{query: "?sort_order=sideways", wantStatus: http.StatusUnprocessableEntity},
		{query: "?limit=0", wantStatus: http.StatusUnprocessableEntity},
		{query: "?limit=101", wantStatus: http.StatusUnprocessableEntity},
		{query: "?offset=-1", wantStatus: http.StatusUnprocessableEntity},
		{query: "?is_completed=maybe", wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			rr, _ := do(t, s, http.MethodGet, "/tasks"+tt.query, tok, nil)
			if rr.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestInjectAndCalls(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	tok, _, _ := s.IssueToken("u1", time.Hour)

	s.Inject(http.MethodDelete, "/tasks/{id}", http.StatusInternalServerError, map[string]string{"detail": "boom"})
	rr, body := do(t, s, http.MethodDelete, "/tasks/t1", tok, nil)
	if rr.Code != http.StatusInternalServerError || body["detail"] != "boom" {
		t.Errorf("Expected injected 500, got %d %v", rr.Code, body)
	}
	if got := s.Calls(http.MethodDelete, "/tasks/{id}"); got != 1 {
		t.Errorf("Expected 1 call, got %d", got)
	}

	s.Inject(http.MethodDelete, "/tasks/{id}", 0, nil)
	rr, _ = do(t, s, http.MethodDelete, "/tasks/t1", tok, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after removing injection, got %d", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, WithRateLimit("2-M"))
	for i := 0; i < 2; i++ {
		rr, _ := do(t, s, http.MethodPost, "/auth/signin", "", map[string]string{"email": "ada@example.com", "password": "pw"})
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected request %d to pass, got %d", i+1, rr.Code)
		}
	}
	rr, _ := do(t, s, http.MethodPost, "/auth/signin", "", map[string]string{"email": "ada@example.com", "password": "pw"})
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", rr.Code)
	}
}

func TestGuard(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
	}{
		{name: "missing content type", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "form body", contentType: "application/x-www-form-urlencoded", body: "email=a", wantStatus: http.StatusUnsupportedMediaType},
		{name: "too large", contentType: "application/json", body: `{"email":"` + strings.Repeat("a", int(MaxRequestSize)) + `"}`, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "json with charset", contentType: "application/json; charset=utf-8", body: `{"email":"ada@example.com","password":"pw"}`, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/auth/signin", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()
			s.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
				t.Errorf("Expected nosniff header, got %q", got)
			}
		})
	}
}
