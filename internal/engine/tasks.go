package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/generator"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/metrics"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/retry"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/source"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/store"
)

// ErrAlreadyResolved reports a transition attempted from a terminal
// state. A no-op, not a failure.
var ErrAlreadyResolved = errors.New("task already resolved")

// ErrUnknownTask reports a task id absent from the reply queue.
var ErrUnknownTask = errors.New("task not found")

// pollAndDispatch runs dedup, assignment, generation, and dispatch over
// every tracked post. Returns the number of tasks created.
func (e *Engine) pollAndDispatch(ctx context.Context) (int, error) {
	posts, err := e.store.ListPosts(ctx)
	if err != nil {
		return 0, err
	}
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(tasks))
	recentByPost := make(map[string][]string)
	for _, t := range tasks {
		if t.CommentID != "" {
			seen[t.CommentID] = true
		}
		if t.Suggestion != "" {
			recentByPost[t.PostID] = append(recentByPost[t.PostID], t.Suggestion)
		}
	}

	// The gate is on iff a supervisor with a linked handle exists now.
	approver, err := e.store.Supervisor(ctx, e.supervisorName)
	if err != nil {
		return 0, err
	}
	if approver != nil && !validRecipient(approver.RecipientID) {
		approver = nil
	}

	created := 0
	for _, post := range posts {
		if !post.Tracked() || post.ID == "" || post.TeamID == "" {
			continue
		}
		n, err := e.pollPost(ctx, post, seen, recentByPost[post.ID], approver)
		if err != nil {
			e.log.Error("post polling failed", "post", post.ID, "error", err)
			continue
		}
		created += n
	}
	return created, nil
}

func (e *Engine) pollPost(ctx context.Context, post store.Post, seen map[string]bool, recent []string, approver *store.Member) (int, error) {
	// Liveness first. Deletion surfaces only through the context fetch;
	// the comment fetch reports a deleted post as an empty slice.
	postCtx, err := e.source.Context(ctx, post.URL)
	if err != nil {
		if retry.KindOf(err) == retry.KindDeleted {
			e.markPostDeleted(ctx, post)
			return 0, nil
		}
		return 0, err
	}

	cursor, err := e.store.PostCursor(ctx, post.ID)
	if err != nil {
		return 0, err
	}
	comments, err := e.source.FetchNewComments(ctx, post.URL, seen, cursor)
	if err != nil {
		return 0, err
	}
	fresh, nextCursor := SelectNew(comments, seen, cursor)
	if len(fresh) == 0 {
		if nextCursor > cursor {
			return 0, e.store.SetPostCursor(ctx, post.ID, nextCursor)
		}
		return 0, nil
	}

	ring, err := e.store.ActiveMembers(ctx, post.TeamID)
	if err != nil {
		return 0, err
	}
	teamCursor, err := e.store.TeamCursor(ctx, post.TeamID)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, comment := range fresh {
		member, next, err := NextMember(ring, teamCursor)
		if err != nil {
			e.Escalate(ctx, "No active team members",
				fmt.Sprintf("Team %s has no active members. Cannot assign reply for post %s.", post.TeamID, post.ID))
			break
		}
		teamCursor = next

		if !validRecipient(member.RecipientID) {
			e.Escalate(ctx, "Member has no linked handle",
				fmt.Sprintf("Member %q (team %s) was assigned a reply for post %s but has no chat id linked. Ask them to /start the bot.",
					member.Name, post.TeamID, post.ID))
			continue
		}

		text := e.generateSafe(ctx, postCtx, comment, recent)
		task := store.ReplyTask{
			ID:             e.newID(),
			PostID:         post.ID,
			CommentID:      comment.ID,
			CommentAuthor:  comment.Author,
			CommentURL:     comment.URL,
			AssignedMember: member.Name,
			Suggestion:     text,
			CreatedAt:      e.now(),
		}
		if approver != nil {
			err = e.submitForApproval(ctx, task, approver)
		} else {
			err = e.dispatchDirect(ctx, task, member)
		}
		if err != nil {
			e.log.Error("task creation failed", "post", post.ID, "comment", comment.ID, "error", err)
			continue
		}
		seen[comment.ID] = true
		recent = append(recent, text)
		created++
		metrics.RecordTaskCreated(ctx, post.TeamID)
	}

	if err := e.store.SetPostCursor(ctx, post.ID, nextCursor); err != nil {
		return created, err
	}
	return created, e.store.SetTeamCursor(ctx, post.TeamID, teamCursor)
}

// generateSafe runs the generator and applies the safety gate. It never
// fails: unsafe or empty output becomes the fixed fallback.
func (e *Engine) generateSafe(ctx context.Context, postCtx *source.PostContext, comment source.Comment, recent []string) string {
	text := e.gen.Generate(ctx, postCtx, comment, recent)
	if reason := generator.CheckSafety(text); reason != "" {
		e.log.Warn("suggestion replaced with fallback", "comment", comment.ID, "reason", reason)
		metrics.RecordUnsafeFallback(ctx)
		return generator.Fallback
	}
	return text
}

// submitForApproval stores the task as pending_approval and notifies the
// approver with the candidate text and decision commands.
func (e *Engine) submitForApproval(ctx context.Context, task store.ReplyTask, approver *store.Member) error {
	task.ApprovalStatus = store.ApprovalPending
	task.Status = store.TaskPendingApproval
	msg := fmt.Sprintf(
		"REPLY APPROVAL REQUEST\n\nPost ID: %s\nComment by: u/%s\nComment URL: %s\n\nAssigned to: %s\n\nSuggested reply:\n%s\n\nTask ID: %s\nReply /approve_%s to approve, or /reject_%s to reject",
		task.PostID, task.CommentAuthor, task.CommentURL, task.AssignedMember, task.Suggestion, task.ID, task.ID, task.ID)
	e.sender.SendSafe(ctx, approver.RecipientID, msg)
	return e.store.AppendTask(ctx, task)
}

// dispatchDirect skips the approval gate: the task enters sent at once.
func (e *Engine) dispatchDirect(ctx context.Context, task store.ReplyTask, member store.Member) error {
	task.ApprovalStatus = store.ApprovalSkipped
	task.Status = store.TaskSent
	task.SentAt = e.now()
	e.sender.SendSafe(ctx, member.RecipientID, assignmentMessage(task))
	if err := e.store.AppendTask(ctx, task); err != nil {
		return err
	}
	metrics.RecordDispatch(ctx, member.TeamID)
	return nil
}

func assignmentMessage(task store.ReplyTask) string {
	return fmt.Sprintf(
		"Reply task assigned\n\nPost ID: %s\nAssigned to: %s\nComment by u/%s\nComment URL: %s\n\nSuggested reply:\n%s",
		task.PostID, task.AssignedMember, task.CommentAuthor, task.CommentURL, task.Suggestion)
}

func (e *Engine) markPostDeleted(ctx context.Context, post store.Post) {
	e.log.Warn("post deleted", "post", post.ID, "url", post.URL)
	if _, err := e.store.SetPostStatus(ctx, post.ID, store.PostDeleted); err != nil {
		e.log.Error("marking post deleted failed", "post", post.ID, "error", err)
		return
	}
	e.Escalate(ctx, "Post deleted",
		fmt.Sprintf("Post %s (%s) was deleted or removed. It has been marked as deleted and will no longer be polled.",
			post.ID, post.URL))
}

// Approve moves a pending_approval task toward dispatch. Terminal states
// report ErrAlreadyResolved.
func (e *Engine) Approve(ctx context.Context, taskID string) error {
	return e.decide(ctx, taskID, store.ApprovalApproved)
}

// Reject is terminal: the task is never dispatched.
func (e *Engine) Reject(ctx context.Context, taskID string) error {
	return e.decide(ctx, taskID, store.ApprovalRejected)
}

func (e *Engine) decide(ctx context.Context, taskID, decision string) error {
	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	if task.Terminal() {
		return ErrAlreadyResolved
	}
	if task.Status != store.TaskPendingApproval || task.ApprovalStatus != store.ApprovalPending {
		return fmt.Errorf("task %s is %s/%s, not awaiting approval", taskID, task.Status, task.ApprovalStatus)
	}
	_, err = e.store.SetApproval(ctx, taskID, decision, e.now())
	return err
}

// Resolve records the externally confirmed posted reply. Valid only from
// sent; terminal afterwards.
func (e *Engine) Resolve(ctx context.Context, taskID, replyURL string, postedAt time.Time) error {
	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	if task.Terminal() {
		return ErrAlreadyResolved
	}
	if task.Status != store.TaskSent {
		return fmt.Errorf("task %s is %s, not sent", taskID, task.Status)
	}
	if postedAt.IsZero() {
		postedAt = e.now()
	}
	_, err = e.store.MarkResolved(ctx, taskID, replyURL, postedAt)
	return err
}

// processApprovals dispatches approved-but-unsent tasks to their
// assignees. Returns the number dispatched.
func (e *Engine) processApprovals(ctx context.Context) (int, error) {
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, task := range tasks {
		if task.ApprovalStatus != store.ApprovalApproved || task.Status != store.TaskPendingApproval || !task.SentAt.IsZero() {
			continue
		}
		if task.AssignedMember == "" || task.Suggestion == "" {
			continue
		}
		member, err := e.store.FindMember(ctx, task.AssignedMember)
		if err != nil {
			return sent, err
		}
		if member == nil {
			e.Escalate(ctx, "Approved task: member not found",
				fmt.Sprintf("Task %s approved but member %q is not on the roster.", task.ID, task.AssignedMember))
			continue
		}
		if !validRecipient(member.RecipientID) {
			e.Escalate(ctx, "Approved task: member has no linked handle",
				fmt.Sprintf("Task %s approved but member %q has no chat id linked.", task.ID, task.AssignedMember))
			continue
		}
		e.sender.SendSafe(ctx, member.RecipientID, assignmentMessage(task))
		if _, err := e.store.MarkSent(ctx, task.ID, e.now()); err != nil {
			return sent, err
		}
		metrics.RecordDispatch(ctx, member.TeamID)
		sent++
	}
	return sent, nil
}
