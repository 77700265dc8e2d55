// Package commands implements the matrix CLI.
package commands

import (
	"context"
	"errors"

	"github.com/benvon/matrix-todo/internal/app"
	"github.com/spf13/cobra"
)

// Deps opens the application lazily so that commands which never touch the API
// (help, fake-api) do not need a valid configuration.
type Deps struct {
	Open  func(ctx context.Context) (*app.App, error)
	Debug bool

	app *app.App
}

// App returns the opened application, opening it on first use
func (d *Deps) App(ctx context.Context) (*app.App, error) {
	if d.app != nil {
		return d.app, nil
	}
	if d.Open == nil {
		return nil, errors.New("no application configured")
	}
	a, err := d.Open(ctx)
	if err != nil {
		return nil, err
	}
	d.app = a
	return a, nil
}

// Close closes the application if it was opened
func (d *Deps) Close(ctx context.Context) error {
	if d.app == nil {
		return nil
	}
	return d.app.Close(ctx)
}

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd(d *Deps) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "matrix",
		Short:         "Eisenhower matrix task client",
		Long:          "Manage tasks by urgency and importance against a matrix-todo API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&d.Debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(NewSignInCmd(d))
	rootCmd.AddCommand(NewSignUpCmd(d))
	rootCmd.AddCommand(NewSignOutCmd(d))
	rootCmd.AddCommand(NewWhoAmICmd(d))
	rootCmd.AddCommand(NewListCmd(d))
	rootCmd.AddCommand(NewShowCmd(d))
	rootCmd.AddCommand(NewAddCmd(d))
	rootCmd.AddCommand(NewEditCmd(d))
	rootCmd.AddCommand(NewToggleCmd(d))
	rootCmd.AddCommand(NewRemoveCmd(d))
	rootCmd.AddCommand(NewMatrixCmd(d))
	rootCmd.AddCommand(NewWatchCmd(d))
	rootCmd.AddCommand(NewFakeAPICmd())

	return rootCmd
}
