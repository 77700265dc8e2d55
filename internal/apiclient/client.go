// Package apiclient is the HTTP transport to the task REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/benvon/matrix-todo/internal/apperr"
	"github.com/benvon/matrix-todo/internal/logger"
	"github.com/google/uuid"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout bounds every request
	DefaultTimeout = 10 * time.Second

	tracerName      = "github.com/benvon/matrix-todo/internal/apiclient"
	maxResponseSize = 10 << 20
	rateLimitKey    = "api"
)

// Client talks to the task REST API. Authenticated calls take their bearer
// token from an oauth2.TokenSource, normally the session manager.
type Client struct {
	baseURL *url.URL
	timeout time.Duration
	logger  *zap.Logger
	base    http.RoundTripper
	jar     http.CookieJar
	tracer  trace.Tracer
	limiter *limiter.Limiter

	mu             sync.RWMutex
	tokens         oauth2.TokenSource
	onUnauthorized func(ctx context.Context, rejected string)
}

// Option configures a Client
type Option func(*Client) error

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.timeout = d
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) error {
		c.logger = logger.OrNop(l)
		return nil
	}
}

// WithTokenSource sets the source of bearer tokens for authenticated calls
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) error {
		c.tokens = ts
		return nil
	}
}

// WithRateLimit caps outgoing requests using a limiter rate such as "20-S".
// An empty rate disables limiting.
func WithRateLimit(rate string) Option {
	return func(c *Client) error {
		if rate == "" {
			c.limiter = nil
			return nil
		}
		r, err := limiter.NewRateFromFormatted(rate)
		if err != nil {
			return fmt.Errorf("invalid rate limit %q: %w", rate, err)
		}
		c.limiter = limiter.New(memory.NewStore(), r)
		return nil
	}
}

// WithCookieJar attaches a cookie jar to every request
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) error {
		c.jar = jar
		return nil
	}
}

// WithHTTPClient uses the transport of hc as the base round tripper
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc != nil && hc.Transport != nil {
			c.base = hc.Transport
		}
		if hc != nil && hc.Jar != nil && c.jar == nil {
			c.jar = hc.Jar
		}
		return nil
	}
}

// WithTracerProvider sets the provider used for client spans
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) error {
		c.tracer = tp.Tracer(tracerName)
		return nil
	}
}

// New creates a client for the API rooted at baseURL, e.g. http://localhost:8000/api/v1
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", baseURL)
	}

	c := &Client{
		baseURL: u,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
		base:    http.DefaultTransport,
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// BaseURL returns the API root
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// SetTokenSource replaces the bearer token source
func (c *Client) SetTokenSource(ts oauth2.TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// OnUnauthorized registers fn to run when an authenticated call gets a 401.
// fn receives the access token the server rejected.
func (c *Client) OnUnauthorized(fn func(ctx context.Context, rejected string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type call struct {
	method string
	path   string
	route  string // span name template, defaults to path
	query  url.Values
	body   any
	authed bool
}

func (rc call) name() string {
	if rc.route != "" {
		return rc.method + " " + rc.route
	}
	return rc.method + " " + rc.path
}

// do performs one request and decodes the data payload into out when out is non-nil
func (c *Client) do(ctx context.Context, rc call, out any) error {
	if err := c.allow(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, rc.name(), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := c.newRequest(ctx, rc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	hc := &http.Client{Transport: c.base, Jar: c.jar}
	var tok *oauth2.Token
	if rc.authed {
		// resolved up front so a missing session never reaches the network
		tok, err = c.token()
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		hc.Transport = &oauth2.Transport{Source: oauth2.StaticTokenSource(tok), Base: c.base}
	}
	span.SetAttributes(
		attribute.String("http.request.method", rc.method),
		attribute.String("url.path", req.URL.Path),
	)

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		mapped := c.networkError(ctx, err)
		span.RecordError(mapped)
		span.SetStatus(codes.Error, mapped.Error())
		c.logger.Debug("api_request_failed",
			zap.String("method", rc.method),
			zap.String("path", logger.SanitizePath(req.URL.Path)),
			zap.String("request_id", req.Header.Get("X-Request-ID")),
			zap.Duration("duration", time.Since(start)),
			zap.String("error", logger.SanitizeError(mapped)),
		)
		return mapped
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		mapped := c.networkError(ctx, err)
		span.RecordError(mapped)
		return mapped
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("api_request",
		zap.String("method", rc.method),
		zap.String("path", logger.SanitizePath(req.URL.Path)),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode == http.StatusUnauthorized && rc.authed {
		span.SetStatus(codes.Error, "unauthorized")
		c.unauthorized(ctx, tok.AccessToken)
		return apperr.SessionExpired("")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := responseError(resp.StatusCode, data)
		span.SetStatus(codes.Error, apiErr.Message)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := decodeData(data, out); err != nil {
		span.RecordError(err)
		return apperr.Transport("Invalid response from server", apperr.CodeBadResponse, resp.StatusCode, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, rc call) (*http.Request, error) {
	u := c.baseURL.JoinPath(rc.path)
	if len(rc.query) > 0 {
		u.RawQuery = rc.query.Encode()
	}

	var body io.Reader
	if rc.body != nil {
		payload, err := json.Marshal(rc.body)
		if err != nil {
			return nil, apperr.Transport("Failed to encode request", "", 0, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, rc.method, u.String(), body)
	if err != nil {
		return nil, apperr.Transport("Failed to build request", "", 0, err)
	}
	if rc.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, nil
}

func (c *Client) token() (*oauth2.Token, error) {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return nil, apperr.SessionExpired("Not signed in")
	}

	tok, err := ts.Token()
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperr.SessionExpired(err.Error())
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, apperr.SessionExpired("Not signed in")
	}
	return tok, nil
}

func (c *Client) allow(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	lctx, err := c.limiter.Get(ctx, rateLimitKey)
	if err != nil {
		return apperr.Transport("Rate limiter unavailable", apperr.CodeRateLimited, 0, err)
	}
	if lctx.Reached {
		reset := time.Unix(lctx.Reset, 0)
		return apperr.Transport(
			fmt.Sprintf("Too many requests. Try again after %s.", reset.Format(time.Kitchen)),
			apperr.CodeRateLimited, 0, nil)
	}
	return nil
}

func (c *Client) unauthorized(ctx context.Context, rejected string) {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn(context.WithoutCancel(ctx), rejected)
	}
}

func (c *Client) networkError(ctx context.Context, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperr.Transport("Request timed out", apperr.CodeTimeout, 0, err)
	case errors.Is(err, context.Canceled):
		return apperr.Transport("Request cancelled", apperr.CodeCancelled, 0, err)
	default:
		return apperr.Transport("Network error. Please check your connection.", apperr.CodeNetwork, 0, err)
	}
}

// decodeData unmarshals the envelope's data field into out. Bodies without an
// envelope are decoded as-is.
func decodeData(body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
			return json.Unmarshal(env.Data, out)
		}
	}
	return json.Unmarshal(body, out)
}
