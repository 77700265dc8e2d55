package models

import "time"

// TokenClaims holds the claims the client reads from a bearer token payload.
// The client never verifies the signature; these values are for display and expiry only.
type TokenClaims struct {
	Subject   string    `json:"sub"`
	UserID    string    `json:"user_id"` // private claim, falls back to Subject
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"exp"` // zero when the token carries no exp claim
	IssuedAt  time.Time `json:"iat"`
}

// HasExpiry reports whether the token carried an exp claim
func (c *TokenClaims) HasExpiry() bool {
	return !c.ExpiresAt.IsZero()
}
