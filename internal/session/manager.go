// Package session owns the client's authentication lifecycle: restoring a stored
// token, signing in and out, and expiring the session when the token runs out.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benvon/matrix-todo/internal/apperr"
	"github.com/benvon/matrix-todo/internal/logger"
	"github.com/benvon/matrix-todo/internal/models"
	"github.com/benvon/matrix-todo/internal/storage"
	"github.com/benvon/matrix-todo/internal/token"
	"github.com/benvon/matrix-todo/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultCheckInterval is how often Run re-validates the token
const DefaultCheckInterval = 60 * time.Second

// AuthAPI is the part of the REST API the session manager calls
type AuthAPI interface {
	SignIn(ctx context.Context, req models.SignInRequest) (*models.AuthResult, error)
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResult, error)
	Me(ctx context.Context) (*models.Profile, error)
}

// Manager is the session state machine. It starts Unknown and only ever moves
// to Anonymous or Authenticated. It is safe for concurrent use.
type Manager struct {
	api      AuthAPI
	store    storage.TokenStore
	logger   *zap.Logger
	now      func() time.Time
	interval time.Duration

	// writes serializes store writes with the transitions they belong to
	writes sync.Mutex

	mu          sync.RWMutex
	session     models.Session
	epoch       uint64
	subscribers []func(models.Session)
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger.OrNop(l) }
}

// WithClock sets the time source used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithCheckInterval sets the period of the background expiry check
func WithCheckInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// NewManager creates a manager in the Unknown state
func NewManager(api AuthAPI, store storage.TokenStore, opts ...Option) *Manager {
	m := &Manager{
		api:      api,
		store:    store,
		logger:   zap.NewNop(),
		now:      time.Now,
		interval: DefaultCheckInterval,
		session:  models.Session{State: models.SessionUnknown},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns a copy of the session
func (m *Manager) Current() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// State returns the current state
func (m *Manager) State() models.SessionState {
	return m.Current().State
}

// Epoch increases on every identity change. Callers compare epochs taken before
// and after a request to detect that the session changed while it was in flight.
func (m *Manager) Epoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// Subscribe registers fn to be called after every identity change
func (m *Manager) Subscribe(fn func(models.Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Restore loads a stored token. A valid token authenticates the session; a
// missing, malformed or expired one leaves it Anonymous with storage cleared.
// Restore does nothing once the state is no longer Unknown.
func (m *Manager) Restore(ctx context.Context) error {
	if m.State() != models.SessionUnknown {
		return nil
	}
	epoch := m.Epoch()

	raw, err := m.store.Load(ctx)
	if errors.Is(err, storage.ErrNoToken) {
		m.setAnonymous(epoch, "no_stored_token")
		return nil
	}
	if err != nil {
		m.setAnonymous(epoch, "token_store_unavailable")
		return fmt.Errorf("failed to load stored token: %w", err)
	}

	claims, err := token.Decode(raw)
	if err != nil || token.ClaimsExpired(claims, m.now()) {
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			m.logger.Warn("failed_to_clear_stale_token", zap.Error(clearErr))
		}
		m.setAnonymous(epoch, "stored_token_invalid")
		return nil
	}

	if !m.setAuthenticated(epoch, raw, claims, "") {
		return nil
	}
	m.logger.Info("session_restored",
		zap.String("user_id", logger.SanitizeUserID(claims.UserID)),
		zap.Time("expires_at", claims.ExpiresAt),
	)
	m.fetchProfile(ctx, raw)
	return nil
}

// SignIn authenticates with email and password
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	req := models.SignInRequest{Email: strings.TrimSpace(email), Password: password}
	if err := validation.Struct(req); err != nil {
		return err
	}

	res, err := m.api.SignIn(ctx, req)
	if err != nil {
		m.logger.Info("sign_in_failed", zap.String("error", logger.SanitizeError(err)))
		return err
	}
	return m.accept(ctx, res, "signed_in")
}

// SignUp registers a new user and signs them in
func (m *Manager) SignUp(ctx context.Context, email, password, name string) error {
	req := models.SignUpRequest{Email: strings.TrimSpace(email), Password: password, Name: strings.TrimSpace(name)}
	if err := validation.Struct(req); err != nil {
		return err
	}

	res, err := m.api.SignUp(ctx, req)
	if err != nil {
		m.logger.Info("sign_up_failed", zap.String("error", logger.SanitizeError(err)))
		return err
	}
	return m.accept(ctx, res, "signed_up")
}

// accept persists a freshly issued token and authenticates the session.
// Concurrent sign-ins are not deduplicated; the last to complete wins.
func (m *Manager) accept(ctx context.Context, res *models.AuthResult, event string) error {
	claims, err := token.Decode(res.Token)
	if err != nil {
		return apperr.Transport("The server returned an unreadable token", apperr.CodeBadResponse, 0, err)
	}
	if token.ClaimsExpired(claims, m.now()) {
		return apperr.Transport("The server returned an expired token", apperr.CodeBadResponse, 0, nil)
	}

	m.writes.Lock()
	if err := m.store.Save(ctx, res.Token, claims.ExpiresAt); err != nil {
		m.writes.Unlock()
		return fmt.Errorf("failed to persist token: %w", err)
	}
	m.setAuthenticated(m.Epoch(), res.Token, claims, res.UserID)
	m.writes.Unlock()

	m.logger.Info(event,
		zap.String("user_id", logger.SanitizeUserID(claims.UserID)),
		zap.Time("expires_at", claims.ExpiresAt),
		zap.String("token", logger.RedactToken(res.Token)),
	)
	m.fetchProfile(ctx, res.Token)
	return nil
}

// fetchProfile fills in display fields from /auth/me. Failures are logged only.
func (m *Manager) fetchProfile(ctx context.Context, raw string) {
	profile, err := m.api.Me(ctx)
	if err != nil {
		m.logger.Warn("profile_fetch_failed", zap.String("error", logger.SanitizeError(err)))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// the session may have moved on while the request was in flight
	if m.session.Token != raw {
		return
	}
	if profile.Name != "" {
		m.session.Name = profile.Name
	}
	if profile.Email != "" {
		m.session.Email = profile.Email
	}
	if profile.Role != "" {
		m.session.Role = profile.Role
	}
}

// SignOut clears the stored token and moves to Anonymous. Signing out twice is harmless.
func (m *Manager) SignOut(ctx context.Context) error {
	m.writes.Lock()
	err := m.store.Clear(ctx)
	signedOut := m.setAnonymous(m.Epoch(), "sign_out")
	m.writes.Unlock()

	if signedOut {
		m.logger.Info("signed_out")
	}
	if err != nil {
		return fmt.Errorf("failed to clear stored token: %w", err)
	}
	return nil
}

// Invalidate ends the session after the server rejected its token
func (m *Manager) Invalidate(ctx context.Context) {
	m.expire(ctx, "", "token_rejected")
}

// InvalidateToken ends the session only if rejected is still its token, so a
// late 401 for an old token cannot sign out a newer session.
func (m *Manager) InvalidateToken(ctx context.Context, rejected string) {
	m.expire(ctx, rejected, "token_rejected")
}

// CheckExpiry runs one validation pass and reports whether it expired the session
func (m *Manager) CheckExpiry(ctx context.Context) bool {
	s := m.Current()
	if s.State != models.SessionAuthenticated {
		return false
	}
	if s.ExpiresAt.After(m.now()) {
		return false
	}
	return m.expire(ctx, s.Token, "token_expired")
}

// Run checks expiry every interval until ctx is done
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckExpiry(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckExpiry(ctx)
		}
	}
}

// Token implements oauth2.TokenSource for authenticated API calls
func (m *Manager) Token() (*oauth2.Token, error) {
	s := m.Current()
	if s.State != models.SessionAuthenticated || s.Token == "" {
		return nil, apperr.SessionExpired("You are not signed in.")
	}
	if !s.ExpiresAt.After(m.now()) {
		m.expire(context.Background(), s.Token, "token_expired")
		return nil, apperr.SessionExpired("")
	}
	return &oauth2.Token{AccessToken: s.Token, TokenType: "Bearer", Expiry: s.ExpiresAt}, nil
}

// expire clears storage and moves to Anonymous. When only is set the session
// is expired only if it still holds that token.
func (m *Manager) expire(ctx context.Context, only, reason string) bool {
	m.writes.Lock()
	defer m.writes.Unlock()

	s := m.Current()
	if s.State != models.SessionAuthenticated || (only != "" && s.Token != only) {
		return false
	}
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("failed_to_clear_expired_token", zap.Error(err))
	}
	if !m.setAnonymous(m.Epoch(), reason) {
		return false
	}

	m.logger.Info("session_expired",
		zap.String("reason", reason),
		zap.String("user_id", logger.SanitizeUserID(s.UserID)),
	)
	return true
}

func (m *Manager) setAnonymous(epoch uint64, reason string) bool {
	m.mu.Lock()
	if m.epoch != epoch || m.session.State == models.SessionAnonymous {
		m.mu.Unlock()
		return false
	}
	next := m.transitionLocked(models.Session{State: models.SessionAnonymous})
	m.mu.Unlock()

	m.logger.Debug("session_anonymous", zap.String("reason", reason))
	m.notify(next)
	return true
}

func (m *Manager) setAuthenticated(epoch uint64, raw string, claims *models.TokenClaims, fallbackUserID string) bool {
	userID := claims.UserID
	if userID == "" {
		userID = fallbackUserID
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return false
	}
	next := m.transitionLocked(models.Session{
		State:         models.SessionAuthenticated,
		Token:         raw,
		UserID:        userID,
		ExpiresAt:     claims.ExpiresAt,
		Authenticated: true,
		Name:          claims.Name,
		Email:         claims.Email,
		Role:          claims.Role,
	})
	m.mu.Unlock()

	m.notify(next)
	return true
}

// transitionLocked installs next and bumps the epoch. Callers hold m.mu.
func (m *Manager) transitionLocked(next models.Session) models.Session {
	m.session = next
	m.epoch++
	return next
}

func (m *Manager) notify(s models.Session) {
	m.mu.RLock()
	subs := append([]func(models.Session){}, m.subscribers...)
	m.mu.RUnlock()
	for _, fn := range subs {
		fn(s)
	}
}

var _ oauth2.TokenSource = (*Manager)(nil)
