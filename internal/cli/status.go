package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/config"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/daemon"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show replybot daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			st, err := daemon.Status(cmd.Context(), home)
			if err != nil {
				return err
			}
			if !st.Running {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "replybot not running")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "replybot running (pid %d, ops %s)\n", st.PID, st.Addr)
			return nil
		},
	}
}
