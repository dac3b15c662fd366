package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/config"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/daemon"
)

func newStartCmd() *cobra.Command {
	var (
		runFor    time.Duration
		interval  time.Duration
		dryRun    bool
		opsPort   int
		pprofAddr string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bot as a background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			pid, err := daemon.StartBackground(cmd.Context(), daemon.StartOptions{
				Home:      home,
				Config:    cfg,
				Interval:  interval,
				RunFor:    runFor,
				DryRun:    dryRun || cfg.DryRun,
				OpsPort:   opsPort,
				PprofAddr: pprofAddr,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "replybot started (pid %d)\n", pid)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ops: http://localhost:%d/status\n", opsPort)
			return nil
		},
	}

	cmd.Flags().DurationVar(&runFor, "for", 0, "Run for a wall-clock duration, then exit (e.g. 2h)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Tick interval (default from BOT_POLL_INTERVAL_MINUTES)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log intended sends and writes without performing them")
	cmd.Flags().IntVar(&opsPort, "ops-port", 8318, "Port for /metrics, /healthz, /status")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	return cmd
}
