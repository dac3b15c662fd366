package engine

import (
	"context"
	"fmt"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/metrics"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/store"
)

// checkTimeouts scans sent-but-unresolved tasks older than the reply
// timeout. Each stale task is reassigned to a different active member of
// its team, or escalated once the reassignment cap is reached or no
// other member exists. Returns the number of reassignments plus
// escalations.
func (e *Engine) checkTimeouts(ctx context.Context) (int, error) {
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return 0, err
	}
	now := e.now()
	actions := 0
	for _, task := range tasks {
		if task.Status != store.TaskSent || !task.ReplyPostedAt.IsZero() || task.SentAt.IsZero() {
			continue
		}
		if now.Sub(task.SentAt) < e.replyTimeout {
			continue
		}
		acted, err := e.handleStaleTask(ctx, task)
		if err != nil {
			return actions, err
		}
		if acted {
			actions++
		}
	}
	return actions, nil
}

func (e *Engine) handleStaleTask(ctx context.Context, task store.ReplyTask) (bool, error) {
	count, err := e.store.ReassignCount(ctx, task.ID)
	if err != nil {
		return false, err
	}
	if count >= e.maxReassign {
		e.Escalate(ctx, "Reply task timed out (max reassignments reached)",
			fmt.Sprintf("Task %s for post %s has been reassigned %d time(s) but no one has replied.\nLast assigned to: %s\nComment URL: %s\n\nSuggested reply:\n%.300s",
				task.ID, task.PostID, count, task.AssignedMember, task.CommentURL, task.Suggestion))
		_, err := e.store.MarkEscalated(ctx, task.ID)
		return true, err
	}

	teamID, err := e.taskTeam(ctx, task)
	if err != nil {
		return false, err
	}
	if teamID == "" {
		e.Escalate(ctx, "Cannot reassign (team not found)",
			fmt.Sprintf("Task %s timed out but its team could not be resolved via post %s.", task.ID, task.PostID))
		return true, nil
	}
	ring, err := e.store.ActiveMembers(ctx, teamID)
	if err != nil {
		return false, err
	}

	// First active member with a different name. A single-member team
	// escalates immediately instead of looping the task back.
	var next *store.Member
	for i := range ring {
		if ring[i].Name != task.AssignedMember {
			next = &ring[i]
			break
		}
	}
	if next == nil {
		e.Escalate(ctx, "Cannot reassign (single-member team)",
			fmt.Sprintf("Task %s timed out. Team %s only has %q. No one else to reassign to.",
				task.ID, teamID, task.AssignedMember))
		_, err := e.store.MarkEscalated(ctx, task.ID)
		return true, err
	}
	if !validRecipient(next.RecipientID) {
		e.Escalate(ctx, "Cannot reassign (new member has no linked handle)",
			fmt.Sprintf("Task %s timed out. Tried to reassign to %q but they have no chat id linked.",
				task.ID, next.Name))
		return true, nil
	}

	prev := task.AssignedMember
	msg := fmt.Sprintf("[REASSIGNED] Reply task\n\nThis task was previously assigned to %s but timed out.\n\n%s",
		prev, assignmentMessage(reassigned(task, next.Name)))
	e.sender.SendSafe(ctx, next.RecipientID, msg)

	if prevMember, err := e.store.FindMember(ctx, prev); err == nil && prevMember != nil && validRecipient(prevMember.RecipientID) {
		e.sender.SendSafe(ctx, prevMember.RecipientID,
			fmt.Sprintf("Your reply task %s has been reassigned to %s due to timeout.", task.ID, next.Name))
	}

	if _, err := e.store.Reassign(ctx, task.ID, next.Name, e.now()); err != nil {
		return false, err
	}
	if err := e.store.SetReassignCount(ctx, task.ID, count+1); err != nil {
		return false, err
	}
	metrics.RecordReassignment(ctx, teamID)
	e.log.Info("task reassigned", "task", task.ID, "from", prev, "to", next.Name, "attempt", count+1)
	return true, nil
}

func reassigned(task store.ReplyTask, member string) store.ReplyTask {
	task.AssignedMember = member
	return task
}

// taskTeam resolves the task's team indirectly through its post; tasks
// do not carry a team id of their own.
func (e *Engine) taskTeam(ctx context.Context, task store.ReplyTask) (string, error) {
	posts, err := e.store.ListPosts(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range posts {
		if p.ID == task.PostID {
			return p.TeamID, nil
		}
	}
	return "", nil
}
