// Package fakeapi is an in-memory implementation of the task REST API.
// It backs end-to-end tests of the client and local development of the CLI.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/matrix-todo/internal/logger"
	"github.com/benvon/matrix-todo/internal/models"
	"github.com/benvon/matrix-todo/internal/request"
	"github.com/gorilla/mux"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultTokenTTL matches the lifetime of tokens issued by the real API
	DefaultTokenTTL = 24 * time.Hour

	defaultSecret = "fakeapi-signing-secret"
	serviceName   = "matrix-todo-fakeapi"
)

type user struct {
	profile      models.Profile
	passwordHash []byte
}

type injected struct {
	status int
	body   any
}

// Server serves the auth and tasks endpoints from memory
type Server struct {
	mu       sync.Mutex
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
	logger   *zap.Logger
	rate     string

	users    map[string]*user // by email
	tasks    []*models.Task
	failures map[string]injected
	calls    map[string]int
	nextID   func() string

	handler http.Handler
}

// Option configures a Server
type Option func(*Server)

// WithSecret sets the HS256 signing secret
func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

// WithTokenTTL sets the lifetime of issued tokens
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

// WithClock sets the time source used for timestamps and token expiry
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger sets the request logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = logger.OrNop(l) }
}

// WithRateLimit limits requests per client IP, e.g. "10-S"
func WithRateLimit(rate string) Option {
	return func(s *Server) { s.rate = rate }
}

// WithIDs sets the generator for new user and task ids
func WithIDs(next func() string) Option {
	return func(s *Server) { s.nextID = next }
}

// New creates a server with no users or tasks
func New(opts ...Option) (*Server, error) {
	s := &Server{
		secret:   []byte(defaultSecret),
		tokenTTL: DefaultTokenTTL,
		now:      time.Now,
		logger:   zap.NewNop(),
		users:    make(map[string]*user),
		failures: make(map[string]injected),
		calls:    make(map[string]int),
		nextID:   newID,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(otelmux.Middleware(serviceName))
	r.Use(s.logging)
	r.Use(s.guard)
	r.Use(s.intercept)

	r.HandleFunc("/auth/signup", s.signUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/signin", s.signIn).Methods(http.MethodPost)
	r.Handle("/auth/me", s.auth(http.HandlerFunc(s.me))).Methods(http.MethodGet)

	tasks := r.PathPrefix("/tasks").Subrouter()
	tasks.Use(s.auth)
	tasks.HandleFunc("", s.listTasks).Methods(http.MethodGet)
	tasks.HandleFunc("", s.createTask).Methods(http.MethodPost)
	tasks.HandleFunc("/{id}", s.getTask).Methods(http.MethodGet)
	tasks.HandleFunc("/{id}", s.updateTask).Methods(http.MethodPatch)
	tasks.HandleFunc("/{id}", s.deleteTask).Methods(http.MethodDelete)

	s.handler = r
	if s.rate != "" {
		rate, err := limiter.NewRateFromFormatted(s.rate)
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit %q: %w", s.rate, err)
		}
		mw := stdlibmw.NewMiddleware(limiter.New(memory.NewStore(), rate), stdlibmw.WithKeyGetter(request.ClientIP))
		s.handler = mw.Handler(r)
	}
	return s, nil
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// AddUser registers a user with a bcrypt-hashed password
func (s *Server) AddUser(id, email, password, name string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return fmt.Errorf("user %s already exists", email)
	}
	s.users[email] = &user{
		profile:      models.Profile{ID: id, Email: email, Name: name, Role: "user"},
		passwordHash: hash,
	}
	return nil
}

// AddTask seeds a task. Missing timestamps are set to now.
func (s *Server) AddTask(t models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if t.ID == "" {
		t.ID = s.nextID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	s.tasks = append(s.tasks, &t)
}

// Inject makes every request matching method and route template (e.g. "/tasks/{id}")
// answer with status and body instead of reaching its handler. A zero status removes the injection.
func (s *Server) Inject(method, route string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + route
	if status == 0 {
		delete(s.failures, key)
		return
	}
	s.failures[key] = injected{status: status, body: body}
}

// Calls returns how many requests reached method and route template
func (s *Server) Calls(method, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+route]
}

// intercept counts calls per route and serves injected responses
func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		key := r.Method + " " + route

		s.mu.Lock()
		s.calls[key]++
		inj, ok := s.failures[key]
		s.mu.Unlock()

		if ok {
			writeJSON(w, inj.status, inj.body, s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// respondJSON sends a success envelope
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	}, s.logger)
}

// respondError sends an error body in the API's {detail} form
func (s *Server) respondError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"detail":  detail,
	}, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, body any, log *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("failed_to_encode_response", zap.Error(err), zap.Int("status_code", status))
	}
}
