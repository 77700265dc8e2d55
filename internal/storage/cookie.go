package storage

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// CookieMirror decorates a TokenStore and mirrors the token into a cookie jar, so a
// separate route guard reading cookies for the API origin sees the same credential.
type CookieMirror struct {
	TokenStore
	jar  http.CookieJar
	base *url.URL
}

// NewCookieMirror mirrors saves and clears of inner into jar for the origin of base
func NewCookieMirror(inner TokenStore, jar http.CookieJar, base *url.URL) *CookieMirror {
	return &CookieMirror{TokenStore: inner, jar: jar, base: base}
}

// Save stores the token and then sets the mirrored cookie with the same lifetime
func (m *CookieMirror) Save(ctx context.Context, token string, expiresAt time.Time) error {
	if err := m.TokenStore.Save(ctx, token, expiresAt); err != nil {
		return err
	}
	c := m.cookie(token)
	if !expiresAt.IsZero() {
		c.Expires = expiresAt
	}
	m.jar.SetCookies(m.origin(), []*http.Cookie{c})
	return nil
}

// Clear removes the token and expires the mirrored cookie
func (m *CookieMirror) Clear(ctx context.Context) error {
	err := m.TokenStore.Clear(ctx)
	c := m.cookie("")
	c.MaxAge = -1
	m.jar.SetCookies(m.origin(), []*http.Cookie{c})
	return err
}

func (m *CookieMirror) cookie(value string) *http.Cookie {
	secure := m.base.Scheme == "https"
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteStrictMode
	}
	return &http.Cookie{
		Name:     TokenKey,
		Value:    value,
		Path:     "/",
		Secure:   secure,
		SameSite: sameSite,
	}
}

// origin drops the path so the cookie is scoped to the whole site
func (m *CookieMirror) origin() *url.URL {
	return &url.URL{Scheme: m.base.Scheme, Host: m.base.Host, Path: "/"}
}
