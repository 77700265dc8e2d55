package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/matrix-todo/internal/apperr"
	"github.com/benvon/matrix-todo/internal/models"
	"github.com/spf13/cobra"
)

// NewWatchCmd creates the watch command
func NewWatchCmd(d *Deps) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Redraw the matrix periodically until interrupted or signed out",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			a, err := d.App(cmd.Context())
			if err != nil {
				return err
			}
			if a.Sessions.State() != models.SessionAuthenticated {
				return apperr.SessionExpired("You are not signed in.")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			ended := make(chan struct{})
			var once sync.Once
			a.Sessions.Subscribe(func(s models.Session) {
				if s.State != models.SessionAuthenticated {
					once.Do(func() { close(ended) })
				}
			})
			go a.Sessions.Run(ctx)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			out := cmd.OutOrStdout()
			for {
				if _, err := a.Tasks.FetchAll(ctx, models.FilterSpec{}); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					if apperr.IsSessionExpired(err) {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Refresh failed: %s\n", apperr.Message(err))
				} else {
					fmt.Fprintf(out, "--- %s ---\n", time.Now().Format(timeLayout))
					printMatrix(out, a.Tasks.Quadrants())
				}

				select {
				case <-ctx.Done():
					return nil
				case <-ended:
					return apperr.SessionExpired("")
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Refresh interval")
	return cmd
}
