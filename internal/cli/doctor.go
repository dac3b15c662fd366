package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/config"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/daemon"
)

func newDoctorCmd() *cobra.Command {
	var postURL string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify configuration, store, and Telegram connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			out := cmd.OutOrStdout()
			var problems []string

			cfg, err := config.FromEnv()
			if err != nil {
				problems = append(problems, fmt.Sprintf("config: %v", err))
			} else {
				_, _ = fmt.Fprintf(out, "config: ok (driver=%s, supervisor=%s)\n", cfg.DBDriver, cfg.SupervisorName)

				// Dry-run wiring so the check itself writes nothing.
				app, err := daemon.NewApp(home, cfg, true)
				if err != nil {
					problems = append(problems, fmt.Sprintf("store: %v", err))
				} else {
					defer func() { _ = app.Close() }()
					members, err := app.Store.ListMembers(cmd.Context())
					if err != nil {
						problems = append(problems, fmt.Sprintf("store: %v", err))
					} else {
						_, _ = fmt.Fprintf(out, "store: ok (%d roster members)\n", len(members))
					}

					if me, err := app.Sender.Me(cmd.Context()); err != nil {
						problems = append(problems, fmt.Sprintf("telegram: %v", err))
					} else {
						_, _ = fmt.Fprintf(out, "telegram: ok (@%s)\n", me.Username)
					}

					if postURL != "" {
						if app.Source.IsAlive(cmd.Context(), postURL) {
							_, _ = fmt.Fprintln(out, "reddit: ok")
						} else {
							problems = append(problems, fmt.Sprintf("reddit: %s unreachable or deleted", postURL))
						}
					}
				}
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}
			_, _ = fmt.Fprintln(out, "ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&postURL, "post-url", "", "Also verify a Reddit post URL is reachable")
	return cmd
}
