package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/config"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/daemon"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/store"
)

func newTeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage the responder roster",
	}
	cmd.AddCommand(newTeamListCmd())
	cmd.AddCommand(newTeamImportCmd())
	cmd.AddCommand(newTeamLinkCmd())
	return cmd
}

func openCLIStore(cmd *cobra.Command, readonly bool) (*store.Store, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return daemon.OpenStore(config.MustHomeFrom(cmd.Context()), cfg, readonly)
}

func newTeamListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List roster members",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openCLIStore(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			members, err := st.ListMembers(cmd.Context())
			if err != nil {
				return err
			}
			if len(members) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No members.")
				return nil
			}
			for _, m := range members {
				state := "inactive"
				if m.Active {
					state = "active"
				}
				linked := "unlinked"
				if m.RecipientID != "" {
					linked = "linked " + m.RecipientID
				}
				role := m.Role
				if role == "" {
					role = store.RoleResponder
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %s (team %s, %s, %s, %s)\n",
					m.Name, m.TeamID, role, state, linked)
			}
			return nil
		},
	}
}

// rosterFile is the YAML schema for team import.
type rosterFile struct {
	Teams []struct {
		ID      string `yaml:"id"`
		Members []struct {
			Name     string `yaml:"name"`
			Telegram string `yaml:"telegram"`
			Role     string `yaml:"role"`
			Active   *bool  `yaml:"active"`
		} `yaml:"members"`
	} `yaml:"teams"`
}

func newTeamImportCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a roster from a YAML file (new members only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var roster rosterFile
			if err := yaml.Unmarshal(raw, &roster); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}

			st, err := openCLIStore(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			added, skipped := 0, 0
			for _, team := range roster.Teams {
				if team.ID == "" {
					return fmt.Errorf("roster team with empty id in %s", file)
				}
				for _, m := range team.Members {
					name := strings.TrimSpace(m.Name)
					if name == "" {
						continue
					}
					existing, err := st.FindMember(cmd.Context(), name)
					if err != nil {
						return err
					}
					if existing != nil {
						skipped++
						continue
					}
					active := true
					if m.Active != nil {
						active = *m.Active
					}
					err = st.AppendMember(cmd.Context(), store.Member{
						TeamID:      team.ID,
						Name:        name,
						RecipientID: strings.TrimSpace(m.Telegram),
						Role:        strings.TrimSpace(m.Role),
						Active:      active,
					})
					if err != nil {
						return err
					}
					added++
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d member(s), skipped %d existing\n", added, skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Roster YAML file")
	return cmd
}

func newTeamLinkCmd() *cobra.Command {
	var (
		member string
		chatID string
	)

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link a member to a Telegram chat id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if member == "" || chatID == "" {
				return errors.New("--member and --chat are required")
			}
			st, err := openCLIStore(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			n, err := st.LinkRecipient(cmd.Context(), member, chatID)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("member %q not found", member)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Linked %s to chat %s\n", member, chatID)
			return nil
		},
	}

	cmd.Flags().StringVar(&member, "member", "", "Member name")
	cmd.Flags().StringVar(&chatID, "chat", "", "Telegram chat id")
	return cmd
}
