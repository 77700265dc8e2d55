// Package request holds per-request helpers for the fake API's handlers:
// who is calling (rate-limit key, bearer token) and which account they signed in as.
package request

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/benvon/matrix-todo/internal/models"
)

type callerKey struct{}

// ClientIP returns the caller's address without its port, so every connection
// from one host shares a rate-limit bucket. A forwarding header is honored only
// when it holds a parseable IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header.
// ok is false when the header is missing or has another scheme.
func BearerToken(r *http.Request) (token string, ok bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// WithCaller attaches the authenticated account to ctx
func WithCaller(ctx context.Context, p *models.Profile) context.Context {
	return context.WithValue(ctx, callerKey{}, p)
}

// Caller returns the account attached by WithCaller, or nil for an unauthenticated request
func Caller(ctx context.Context) *models.Profile {
	p, _ := ctx.Value(callerKey{}).(*models.Profile)
	return p
}
