package models

import "time"

// SessionState is the state of the session manager
type SessionState string

const (
	SessionUnknown       SessionState = "unknown"
	SessionAnonymous     SessionState = "anonymous"
	SessionAuthenticated SessionState = "authenticated"
)

// Session is the authenticated identity of the current client
type Session struct {
	State         SessionState `json:"state"`
	Token         string       `json:"-"`
	UserID        string       `json:"user_id,omitempty"`
	ExpiresAt     time.Time    `json:"expires_at,omitempty"`
	Authenticated bool         `json:"is_authenticated"`
	Name          string       `json:"name,omitempty"`
	Email         string       `json:"email,omitempty"`
	Role          string       `json:"role,omitempty"`
}

// Profile is the payload of GET /auth/me
type Profile struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// SignInRequest is the body of POST /auth/signin
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUpRequest is the body of POST /auth/signup
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

// AuthResult is the data payload of a successful sign-in or sign-up
type AuthResult struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}
