package apiclient

import (
	"context"
	"net/http"

	"github.com/benvon/matrix-todo/internal/apperr"
	"github.com/benvon/matrix-todo/internal/models"
)

// SignIn exchanges credentials for a token. A 2xx without a token is an error.
func (c *Client) SignIn(ctx context.Context, req models.SignInRequest) (*models.AuthResult, error) {
	return c.authenticate(ctx, "/auth/signin", req)
}

// SignUp registers a user and returns their first token
func (c *Client) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResult, error) {
	return c.authenticate(ctx, "/auth/signup", req)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*models.AuthResult, error) {
	var res models.AuthResult
	if err := c.do(ctx, call{method: http.MethodPost, path: path, body: body}, &res); err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, apperr.Transport("Authentication response did not include a token", apperr.CodeBadResponse, 0, nil)
	}
	return &res, nil
}

// Me returns the profile of the signed-in user
func (c *Client) Me(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/me", authed: true}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
