package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	cl "habittycoon/internal/cli"
	"habittycoon/internal/config"
	"habittycoon/internal/logger"
	"habittycoon/internal/syncq"

	"github.com/spf13/cobra"
)

type app struct {
	apiBase string
	debug   bool
}

func main() {
	cfg := config.LoadCLI()
	a := &app{apiBase: cfg.APIBaseURL}

	root := &cobra.Command{
		Use:          "tyc",
		Short:        "Habit Tycoon: turn habits into businesses",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cl.Dir()
			if err != nil {
				return err
			}
			return logger.Init(logger.Config{Debug: a.debug, Dir: dir})
		},
	}
	root.PersistentFlags().StringVar(&a.apiBase, "api", a.apiBase, "API base URL")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "log debug output to stderr")

	root.AddCommand(
		a.newSignupCmd(),
		a.newLoginCmd(),
		newLogoutCmd(),
		a.newDashCmd(),
		a.newTimezoneCmd(),
		a.newTodayCmd(),
		a.newDoneCmd(),
		a.newUndoCmd(),
		a.newHabitCmd(),
		a.newStocksCmd(),
		a.newSyncCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) client() *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(a.apiBase), "/"))
}

func requireSession() (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	return sess, nil
}

func (a *app) newSignupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create a Habit Tycoon account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			username, err := promptOptional("Username (optional)")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			tz := localTimezone()
			session, err := a.client().Signup(ctx, email, password, username, tz)
			if err != nil {
				return err
			}
			if strings.TrimSpace(session.AccessToken) == "" {
				printWarn("Signup created. Verify your email, then run `tyc login`.")
				return nil
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
				Timezone:     tz,
			}); err != nil {
				return err
			}
			printSuccess("Signup complete. You start with $100. Run `tyc habit create` to open your first business.")
			return nil
		},
	}
}

func (a *app) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login to Habit Tycoon",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			tz := localTimezone()
			session, err := a.client().Login(ctx, email, password, tz)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
				Timezone:     tz,
			}); err != nil {
				return err
			}
			logger.Info("logged in", "user", session.User.ID)
			printSuccess("Login successful.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func (a *app) newDashCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "dash",
		Aliases: []string{"dashboard"},
		Short:   "Show cash, net worth, businesses and holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().Dashboard(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderDashboard(out)
			return nil
		},
	}
}

func (a *app) newTimezoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tz [IANA zone]",
		Short: "Set the timezone your days are counted in",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			tz := localTimezone()
			if len(args) > 0 {
				tz = strings.TrimSpace(args[0])
			}
			if tz == "" {
				if tz, err = promptRequired("Timezone (e.g. Europe/Berlin)"); err != nil {
					return err
				}
			}
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("unknown timezone %q", tz)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := a.client().SetTimezone(ctx, sess.AccessToken, tz); err != nil {
				return err
			}
			sess.Timezone = tz
			if err := cl.SaveSession(sess); err != nil {
				return err
			}
			printSuccess("Timezone set to " + tz + ".")
			return nil
		},
	}
}

func (a *app) newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay writes queued while offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			q, err := openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			pending, err := q.List(ctx)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}

			client := a.client()
			replayed, dropped := 0, 0
			for _, c := range pending {
				_, err := client.Do(ctx, c.Method, c.Path, sess.AccessToken, c.Body, c.IdempotencyKey)
				switch {
				case err == nil:
					replayed++
				case cl.IsOffline(err):
					_ = q.MarkAttempt(ctx, c.ID)
					logger.Warn("sync replay failed", "path", c.Path, "err", err)
					printError(fmt.Sprintf("Still offline for %s %s: %v", c.Method, c.Path, err))
					continue
				default:
					// the server answered, so retrying the same request cannot change the outcome
					dropped++
					printWarn(fmt.Sprintf("Dropped %s %s: %v", c.Method, c.Path, err))
				}
				if err := q.Remove(ctx, c.ID); err != nil {
					return err
				}
			}
			remaining, err := q.Len(ctx)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d dropped=%d remaining=%d", replayed, dropped, remaining))
			return nil
		},
	}
}

func openQueue() (*syncq.Queue, error) {
	dir, err := cl.Dir()
	if err != nil {
		return nil, err
	}
	return syncq.Open(filepath.Join(dir, "queue.db"))
}

// queueOnNetworkError stores c for `tyc sync` when err is a transport failure.
// API errors are returned as they are.
func queueOnNetworkError(err error, c syncq.Command) error {
	if err == nil {
		return nil
	}
	if !cl.IsOffline(err) {
		return err
	}
	q, qerr := openQueue()
	if qerr != nil {
		return errors.Join(err, qerr)
	}
	defer q.Close()
	if qerr := q.Push(context.Background(), c); qerr != nil {
		return errors.Join(err, qerr)
	}
	logger.Warn("queued offline write", "method", c.Method, "path", c.Path, "err", err)
	printWarn("API unreachable. Saved for later, run `tyc sync` when back online.")
	return nil
}

func positiveInt64Arg(args []string, idx int, label string) (int64, error) {
	if len(args) > idx {
		v, err := strconv.ParseInt(strings.TrimSpace(args[idx]), 10, 64)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("invalid %s", strings.ToLower(label))
		}
		return v, nil
	}
	return promptInt64(label, 1)
}
