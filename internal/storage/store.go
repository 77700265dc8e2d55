// Package storage persists the bearer token between client runs.
//
// The session manager only talks to the TokenStore interface, so the core can be
// exercised with MemoryStore in tests and backed by a file or Redis in real use.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TokenKey is the fixed name the token is stored under
const TokenKey = "jwt_token"

// ErrNoToken is returned by Load when nothing is stored
var ErrNoToken = errors.New("no token stored")

// TokenStore is the durable storage capability for the bearer token
type TokenStore interface {
	// Load returns the stored token or ErrNoToken
	Load(ctx context.Context) (string, error)
	// Save replaces the stored token; expiresAt is the token's own expiry
	Save(ctx context.Context, token string, expiresAt time.Time) error
	// Clear removes the stored token. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// MemoryStore keeps the token in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements TokenStore
func (s *MemoryStore) Load(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// Save implements TokenStore
func (s *MemoryStore) Save(ctx context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = expiresAt
	return nil
}

// Clear implements TokenStore
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
	return nil
}

var (
	_ TokenStore = (*MemoryStore)(nil)
	_ TokenStore = (*FileStore)(nil)
	_ TokenStore = (*RedisStore)(nil)
	_ TokenStore = (*CookieMirror)(nil)
)
