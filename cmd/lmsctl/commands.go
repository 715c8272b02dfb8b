package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/lms-session/credentials"
	"github.com/jrsteele09/lms-session/idle"
	"github.com/jrsteele09/lms-session/internal/config"
	"github.com/jrsteele09/lms-session/oauthmodel"
	"github.com/jrsteele09/lms-session/token"
	"github.com/jrsteele09/lms-session/token/refresh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	app        *app
}

// close releases the app built for the command. cobra skips post-run hooks when a
// command fails, so callers defer this around Execute.
func (o *rootOptions) close() {
	if o.app != nil {
		o.app.Close()
	}
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "lmsctl",
		Short:         "Manage the LMS admin session",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			setupLogging(cfg)
			opts.app, err = newApp(cmd.Context(), cfg)
			return err
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", config.GetEnv(config.ConfigFileVar, ""), "TOML config file")

	cmd.AddCommand(
		newLoginCommand(opts),
		newRegisterCommand(opts),
		newLogoutCommand(opts),
		newStatusCommand(opts),
		newTokenCommand(opts),
		newRefreshCommand(opts),
		newWatchCommand(opts),
	)
	return cmd
}

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var (
		email, password string
		remember, watch bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as an administrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a := opts.app
			if email == "" {
				remembered, err := a.client.RememberedEmail(ctx)
				if err != nil {
					return err
				}
				email = remembered
			}
			if password == "" {
				password = os.Getenv("LMS_PASSWORD")
			}

			user, err := a.client.Login(ctx, email, password, remember)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user.Username)

			if watch {
				return runWatch(ctx, cmd, a, cmd.InOrStdin())
			}
			if !remember {
				fmt.Fprintln(cmd.ErrOrStderr(), "Session-only login: credentials are discarded when this command exits. Use --remember or --watch.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (defaults to the remembered email)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (defaults to $LMS_PASSWORD)")
	cmd.Flags().BoolVarP(&remember, "remember", "r", false, "keep the session after this process exits")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "stay running, refreshing the token until idle timeout or interrupt")
	return cmd
}

func newRegisterCommand(opts *rootOptions) *cobra.Command {
	var req oauthmodel.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.PasswordConfirm == "" {
				req.PasswordConfirm = req.Password
			}
			user, err := opts.app.client.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s)\n", user.Username, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Username, "username", "", "account username")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password")
	cmd.Flags().StringVar(&req.PasswordConfirm, "password-confirm", "", "password confirmation (defaults to --password)")
	cmd.Flags().StringVar(&req.Role, "role", oauthmodel.RoleAdmin, "account role")
	return cmd
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear every stored credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.app.session.OnLogout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			rec, err := opts.app.session.Record(ctx)
			if errors.Is(err, credentials.ErrNoSession) {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}
			if err != nil {
				return err
			}

			username := rec.User.Username
			if username == "" {
				if identity, err := opts.app.client.Identity(ctx); err == nil {
					username = identity.Username
				}
			}
			if username == "" {
				username = "User"
			}
			fmt.Fprintf(out, "User:        %s\n", username)
			fmt.Fprintf(out, "Storage:     %s\n", rec.Durability)
			fmt.Fprintf(out, "Expires:     %s\n", formatExpiry(rec.Expiry))
			fmt.Fprintf(out, "Needs renew: %t\n", opts.app.tokens.IsExpired(ctx, time.Now()))
			fmt.Fprintf(out, "Refreshable: %t\n", rec.HasRefreshToken())
			return nil
		},
	}
}

func newTokenCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing it when needed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			accessToken, err := opts.app.session.EnsureValidToken(cmd.Context())
			if err != nil {
				return loginAgain(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), accessToken)
			return nil
		},
	}
}

func newRefreshCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := opts.app.tokens.Refresh(cmd.Context()); err != nil {
				return loginAgain(err)
			}
			rec, err := opts.app.session.Record(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token refreshed, expires %s\n", formatExpiry(rec.Expiry))
			return nil
		},
	}
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the stored session fresh until idle timeout or interrupt",
		Long: "Runs the background token refresh and the idle monitor. Every line read from stdin " +
			"counts as user activity; a line naming an activity (mousedown, keypress, ...) is sent as that activity.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := opts.app.session.Resume(cmd.Context()); err != nil {
				return loginAgain(err)
			}
			return runWatch(cmd.Context(), cmd, opts.app, cmd.InOrStdin())
		},
	}
}

// runWatch blocks until ctx is done or the session ends, either by idle timeout or because
// a background refresh failed and the credentials were cleared.
func runWatch(ctx context.Context, cmd *cobra.Command, a *app, in io.Reader) error {
	displayAppname(a.cfg.GetAppName())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ended := make(chan error, 1)
	endSession := func(err error) {
		select {
		case ended <- err:
		default:
		}
	}
	a.session.OnIdleTimeout(func() {
		endSession(nil)
	})

	loop := refresh.Start(ctx, a.tokens,
		refresh.WithInterval(a.cfg.GetRefreshInterval()),
		refresh.WithFailureHandler(func(err error) {
			if _, recErr := a.session.Record(ctx); errors.Is(recErr, credentials.ErrNoSession) {
				endSession(loginAgain(err))
			}
		}),
	)
	defer loop.Stop()

	activity := make(chan idle.Activity)
	go readActivity(ctx, in, activity)
	a.session.Attach(ctx, activity)

	select {
	case err := <-ended:
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Session ended after inactivity, please log in again")
		return nil
	case <-ctx.Done():
		log.Info().Msg("Watch interrupted")
		return nil
	}
}

func readActivity(ctx context.Context, in io.Reader, out chan<- idle.Activity) {
	defer close(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		act := idle.Activity(strings.TrimSpace(scanner.Text()))
		if !act.Valid() {
			act = idle.KeyPress
		}
		select {
		case out <- act:
		case <-ctx.Done():
			return
		}
	}
}

func loginAgain(err error) error {
	if errors.Is(err, token.ErrAuthRequired) || errors.Is(err, token.ErrNoRefreshToken) ||
		errors.Is(err, token.ErrRefreshFailed) || errors.Is(err, credentials.ErrNoSession) {
		return fmt.Errorf("%w, run lmsctl login", err)
	}
	return err
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("%s (in %s)", t.Local().Format(time.RFC3339), time.Until(t).Round(time.Second))
}
