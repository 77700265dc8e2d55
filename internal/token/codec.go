// Package token reads claims from compact bearer tokens (header.payload.signature).
// The signature is never verified here; that is the server's job. Claims are only
// used for display and for deciding locally whether a held token has expired.
package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/matrix-todo/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrMalformed is wrapped by every decode failure
var ErrMalformed = errors.New("malformed token")

// Decode parses the payload segment of a compact token without verifying it.
// Any structural or parse failure is returned as an error wrapping ErrMalformed.
func Decode(raw string) (*models.TokenClaims, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: expected three dot-separated segments", ErrMalformed)
	}

	// only the payload is read; the header and signature are the server's concern
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not base64url: %v", ErrMalformed, err)
	}
	tok, err := jwt.Parse(payload, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims := &models.TokenClaims{
		Subject:   tok.Subject(),
		ExpiresAt: tok.Expiration(),
		IssuedAt:  tok.IssuedAt(),
		UserID:    stringClaim(tok, "user_id"),
		Email:     stringClaim(tok, "email"),
		Name:      stringClaim(tok, "name"),
		Role:      stringClaim(tok, "role"),
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}

	return claims, nil
}

// IsExpired reports whether raw should be treated as expired at now.
// Undecodable tokens and tokens without an exp claim are expired.
func IsExpired(raw string, now time.Time) bool {
	claims, err := Decode(raw)
	if err != nil {
		return true
	}
	return ClaimsExpired(claims, now)
}

// ClaimsExpired applies the expiry rule to already decoded claims
func ClaimsExpired(claims *models.TokenClaims, now time.Time) bool {
	if claims == nil || !claims.HasExpiry() {
		return true
	}
	return !claims.ExpiresAt.After(now)
}

// ExpiresAt returns the expiry of raw, or the zero time when it has none or cannot be decoded
func ExpiresAt(raw string) time.Time {
	claims, err := Decode(raw)
	if err != nil {
		return time.Time{}
	}
	return claims.ExpiresAt
}

func stringClaim(tok jwt.Token, name string) string {
	v, ok := tok.Get(name)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}
