// Package app wires the client components together from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"github.com/benvon/matrix-todo/internal/apiclient"
	"github.com/benvon/matrix-todo/internal/config"
	"github.com/benvon/matrix-todo/internal/logger"
	"github.com/benvon/matrix-todo/internal/models"
	"github.com/benvon/matrix-todo/internal/session"
	"github.com/benvon/matrix-todo/internal/storage"
	"github.com/benvon/matrix-todo/internal/tasks"
	"github.com/benvon/matrix-todo/internal/telemetry"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// App holds the wired client
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    storage.TokenStore
	Jar      http.CookieJar // nil unless the token is mirrored into a cookie
	Client   *apiclient.Client
	Sessions *session.Manager
	Tasks    *tasks.Engine

	tp      *sdktrace.TracerProvider
	closers []func() error
}

// Option adjusts how New builds the App
type Option func(*options)

type options struct {
	store      storage.TokenStore
	httpClient *http.Client
}

// WithStore uses store instead of the one named by the config
func WithStore(store storage.TokenStore) Option {
	return func(o *options) { o.store = store }
}

// WithHTTPClient uses hc's transport for API calls
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// New builds the App and restores any stored session
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger.OrNop(log)}

	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, telemetry.Options{Endpoint: cfg.OTELEndpoint})
		if err != nil {
			return nil, err
		}
		a.tp = tp
	}

	store := o.store
	if store == nil {
		s, err := a.openStore()
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		store = s
	}

	clientOpts := []apiclient.Option{
		apiclient.WithTimeout(cfg.RequestTimeout),
		apiclient.WithLogger(a.Logger),
		apiclient.WithRateLimit(cfg.RateLimit),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, apiclient.WithHTTPClient(o.httpClient))
	}
	if a.tp != nil {
		clientOpts = append(clientOpts, apiclient.WithTracerProvider(a.tp))
	}
	var jar http.CookieJar
	if cfg.MirrorCookie {
		j, err := cookiejar.New(nil)
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		jar = j
		clientOpts = append(clientOpts, apiclient.WithCookieJar(jar))
	}

	client, err := apiclient.New(cfg.APIBaseURL, clientOpts...)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if jar != nil {
		store = storage.NewCookieMirror(store, jar, client.BaseURL())
	}

	sessions := session.NewManager(client, store,
		session.WithLogger(a.Logger),
		session.WithCheckInterval(cfg.ExpiryCheckInterval),
	)
	client.SetTokenSource(sessions)
	client.OnUnauthorized(sessions.InvalidateToken)

	engine := tasks.NewEngine(client,
		tasks.WithLogger(a.Logger),
		tasks.WithEpoch(sessions.Epoch),
	)
	sessions.Subscribe(func(s models.Session) {
		engine.Reset()
	})

	a.Store = store
	a.Jar = jar
	a.Client = client
	a.Sessions = sessions
	a.Tasks = engine

	if err := sessions.Restore(ctx); err != nil {
		a.Logger.Warn("session_restore_failed", zap.Error(err))
	}
	return a, nil
}

func (a *App) openStore() (storage.TokenStore, error) {
	switch a.Config.TokenStore {
	case config.StoreMemory:
		return storage.NewMemoryStore(), nil
	case config.StoreRedis:
		rs, err := storage.NewRedisStore(a.Config.RedisURL, a.Config.RedisKeyPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs.Close)
		return rs, nil
	default:
		path := a.Config.TokenFile
		if path == "" {
			p, err := storage.DefaultFilePath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return storage.NewFileStore(path), nil
	}
}

// Close releases connections and flushes telemetry
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	errs = append(errs, telemetry.Shutdown(ctx, a.tp))
	return errors.Join(errs...)
}
