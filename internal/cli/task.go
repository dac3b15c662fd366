package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/store"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and settle reply tasks",
	}
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskApproveCmd())
	cmd.AddCommand(newTaskRejectCmd())
	cmd.AddCommand(newTaskResolveCmd())
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reply tasks (open by default, --all for everything)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openCLIStore(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			tasks, err := st.ListTasks(cmd.Context())
			if err != nil {
				return err
			}
			shown := 0
			for _, t := range tasks {
				if !all && t.Terminal() {
					continue
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %s | post %s | %s | %s/%s | assigned %s\n",
					t.ID, t.PostID, t.CreatedAt.Format("2006-01-02 15:04"),
					t.Status, t.ApprovalStatus, t.AssignedMember)
				shown++
			}
			if shown == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include settled tasks")
	return cmd
}

// settleTask applies an approval decision directly in the store. The
// follow-up dispatch happens on the daemon's next tick.
func settleTask(cmd *cobra.Command, taskID, decision string) error {
	if taskID == "" {
		return errors.New("--id is required")
	}
	st, err := openCLIStore(cmd, false)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	task, err := st.GetTask(cmd.Context(), taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s not found", taskID)
	}
	if task.Terminal() {
		return fmt.Errorf("task %s is already settled", taskID)
	}
	if task.Status != store.TaskPendingApproval || task.ApprovalStatus != store.ApprovalPending {
		return fmt.Errorf("task %s is %s/%s, not awaiting approval", taskID, task.Status, task.ApprovalStatus)
	}
	if _, err := st.SetApproval(cmd.Context(), taskID, decision, time.Now()); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task %s %s\n", taskID, decision)
	return nil
}

func newTaskApproveCmd() *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a pending reply task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return settleTask(cmd, taskID, store.ApprovalApproved)
		},
	}
	cmd.Flags().StringVar(&taskID, "id", "", "Task ID")
	return cmd
}

func newTaskRejectCmd() *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "reject",
		Short: "Reject a pending reply task (terminal)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return settleTask(cmd, taskID, store.ApprovalRejected)
		},
	}
	cmd.Flags().StringVar(&taskID, "id", "", "Task ID")
	return cmd
}

func newTaskResolveCmd() *cobra.Command {
	var (
		taskID   string
		replyURL string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Mark a dispatched task's reply as posted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID == "" {
				return errors.New("--id is required")
			}
			st, err := openCLIStore(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			task, err := st.GetTask(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			if task == nil {
				return fmt.Errorf("task %s not found", taskID)
			}
			if task.Terminal() {
				return fmt.Errorf("task %s is already settled", taskID)
			}
			if task.Status != store.TaskSent {
				return fmt.Errorf("task %s is %s, not sent", taskID, task.Status)
			}
			if _, err := st.MarkResolved(cmd.Context(), taskID, replyURL, time.Now()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task %s resolved\n", taskID)
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "id", "", "Task ID")
	cmd.Flags().StringVar(&replyURL, "url", "", "URL of the posted reply")
	return cmd
}
