package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/matrix-todo/internal/fakeapi"
	"github.com/benvon/matrix-todo/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewFakeAPICmd creates the fake-api command, an in-memory API for local use
func NewFakeAPICmd() *cobra.Command {
	var (
		addr      string
		rateLimit string
		tokenTTL  time.Duration
		email     string
		password  string
	)

	cmd := &cobra.Command{
		Use:   "fake-api",
		Short: "Serve an in-memory task API for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.NewDevelopmentLogger(false)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = logger.Sync(log) }()

			opts := []fakeapi.Option{fakeapi.WithLogger(log), fakeapi.WithTokenTTL(tokenTTL)}
			if rateLimit != "" {
				opts = append(opts, fakeapi.WithRateLimit(rateLimit))
			}
			api, err := fakeapi.New(opts...)
			if err != nil {
				return err
			}
			if email != "" {
				if err := api.AddUser("demo-user", email, password, "Demo User"); err != nil {
					return fmt.Errorf("failed to seed user: %w", err)
				}
			}

			srv := &http.Server{
				Addr:           addr,
				Handler:        api,
				ReadTimeout:    15 * time.Second,
				WriteTimeout:   15 * time.Second,
				IdleTimeout:    60 * time.Second,
				MaxHeaderBytes: 1 << 20,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("Starting fake API", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("fake API stopped: %w", err)
				}
				return nil
			case <-cmd.Context().Done():
			}

			log.Info("Shutting down fake API")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "Listen address")
	cmd.Flags().StringVar(&rateLimit, "rate-limit", "", "Per-client rate limit, e.g. 100-M")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", fakeapi.DefaultTokenTTL, "Lifetime of issued tokens")
	cmd.Flags().StringVar(&email, "seed-email", "", "Create a user with this email at startup")
	cmd.Flags().StringVar(&password, "seed-password", "password", "Password of the seeded user")
	return cmd
}
