// Package cli defines the replybot command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/config"
)

func NewRootCmd(version string) *cobra.Command {
	var (
		homeOverride string
		envFile      string
	)

	cmd := &cobra.Command{
		Use:          "replybot",
		Short:        "Reddit reply orchestration over Telegram",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}
			home, err := config.ResolveHome(homeOverride)
			if err != nil {
				return err
			}
			cmd.SetContext(config.WithHome(cmd.Context(), home))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&homeOverride, "home", "", "Override replybot home directory (default: ~/.replybot, env: REPLYBOT_HOME)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load env vars from file before reading configuration")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDoctorCmd())

	cmd.AddCommand(newTeamCmd())
	cmd.AddCommand(newTaskCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}
