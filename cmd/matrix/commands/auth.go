package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/benvon/matrix-todo/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// NewSignInCmd creates the signin command
func NewSignInCmd(d *Deps) *cobra.Command {
	var email string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret(cmd, passwordStdin)
			if err != nil {
				return err
			}

			a, err := d.App(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Sessions.SignIn(cmd.Context(), email, password); err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), a.Sessions.Current())
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// NewSignUpCmd creates the signup command
func NewSignUpCmd(d *Deps) *cobra.Command {
	var email, name string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret(cmd, passwordStdin)
			if err != nil {
				return err
			}

			a, err := d.App(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Sessions.SignUp(cmd.Context(), email, password, name); err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), a.Sessions.Current())
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// NewSignOutCmd creates the signout command
func NewSignOutCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := d.App(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Sessions.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

// NewWhoAmICmd creates the whoami command
func NewWhoAmICmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := d.App(cmd.Context())
			if err != nil {
				return err
			}
			a.Sessions.CheckExpiry(cmd.Context())
			printSession(cmd.OutOrStdout(), a.Sessions.Current())
			return nil
		},
	}
}

// readSecret reads the password from stdin or prompts for it without echo
func readSecret(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return "", errors.New("no terminal to prompt for a password; use --password-stdin")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	pw, err := readPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

func printSession(w io.Writer, s models.Session) {
	if s.State != models.SessionAuthenticated {
		fmt.Fprintln(w, "Not signed in")
		return
	}
	who := s.Email
	if s.Name != "" {
		who = fmt.Sprintf("%s <%s>", s.Name, s.Email)
	}
	fmt.Fprintf(w, "Signed in as %s (user %s)\n", who, s.UserID)
	fmt.Fprintf(w, "Session expires %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04 MST"))
}
