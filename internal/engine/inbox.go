package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/sender"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/store"
)

var redditURLRe = regexp.MustCompile(`https?://(?:www\.)?reddit\.com/r/[^\s]+/comments/[^\s]+`)

const helpText = `Available commands:
/start - link your account to the roster
/posted <url> - submit your Reddit post URL (or just paste the link)
/approve_<task id> - approve a suggested reply
/reject_<task id> - reject a suggested reply
/mystatus - show your pending posts and reply tasks
/help - this message`

// processInbox drains pending sender updates and routes each text
// message to its handler. The update offset lives in scalar state so a
// crash never replays handled messages.
func (e *Engine) processInbox(ctx context.Context) (int, error) {
	offset, err := e.store.UpdateOffset(ctx)
	if err != nil {
		return 0, err
	}
	updates, err := e.sender.Updates(ctx, offset)
	if err != nil {
		// The inbox is best-effort; a sender outage must not kill the tick.
		e.log.Error("inbox fetch failed", "error", err)
		return 0, nil
	}
	if len(updates) == 0 {
		return 0, nil
	}
	processed := 0
	maxID := offset
	for _, u := range updates {
		if u.ID >= maxID {
			maxID = u.ID + 1
		}
		if u.ChatID == "" || strings.TrimSpace(u.Text) == "" {
			continue
		}
		if err := e.routeMessage(ctx, u); err != nil {
			e.log.Error("inbox message failed", "chat", u.ChatID, "error", err)
			continue
		}
		processed++
	}
	return processed, e.store.SetUpdateOffset(ctx, maxID)
}

func (e *Engine) routeMessage(ctx context.Context, u sender.Update) error {
	text := strings.TrimSpace(u.Text)
	switch {
	case strings.HasPrefix(text, "/approve_") || strings.HasPrefix(text, "/reject_"):
		return e.handleDecision(ctx, u, text)
	case strings.HasPrefix(text, "/start"):
		return e.handleStart(ctx, u)
	case strings.HasPrefix(text, "/test_cancel"):
		return e.handleTestCancel(ctx, u)
	case strings.HasPrefix(text, "/test"):
		return e.handleTest(ctx, u)
	case strings.HasPrefix(text, "/posted"), redditURLRe.MatchString(text):
		return e.handlePosted(ctx, u, text)
	case strings.HasPrefix(text, "/mystatus"):
		return e.handleMyStatus(ctx, u)
	case strings.HasPrefix(text, "/help"):
		e.sender.SendSafe(ctx, u.ChatID, helpText)
		return nil
	default:
		e.sender.SendSafe(ctx, u.ChatID,
			"I didn't understand that. Send /help to see available commands.\n\nTo submit your Reddit post URL, just paste the link here!")
		return nil
	}
}

// handleStart links the sender's chat id to a roster member, matched by
// username first, then by first name.
func (e *Engine) handleStart(ctx context.Context, u sender.Update) error {
	members, err := e.store.ListMembers(ctx)
	if err != nil {
		return err
	}
	var match *store.Member
	username := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(u.Username)), "@")
	for i := range members {
		if username != "" && strings.TrimPrefix(strings.ToLower(members[i].RecipientID), "@") == username {
			match = &members[i]
			break
		}
	}
	if match == nil && u.FirstName != "" {
		for i := range members {
			if strings.EqualFold(members[i].Name, u.FirstName) {
				match = &members[i]
				break
			}
		}
	}
	if match == nil {
		e.sender.SendSafe(ctx, u.ChatID, fmt.Sprintf(
			"You are not mapped yet in the roster. Your username is @%s. Please share your @username with the admin.",
			orNone(username)))
		return nil
	}
	if _, err := e.store.LinkRecipient(ctx, match.Name, u.ChatID); err != nil {
		return err
	}
	e.sender.SendSafe(ctx, u.ChatID, fmt.Sprintf(
		"Hi %s, your account is linked successfully!\n\nWhen you post on Reddit, just paste the URL here and I'll take care of the rest.\n\nSend /help to see all commands.",
		match.Name))
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// handleDecision drives the approval gate from chat commands.
func (e *Engine) handleDecision(ctx context.Context, u sender.Update, text string) error {
	approve := strings.HasPrefix(text, "/approve_")
	taskID := text[strings.Index(text, "_")+1:]
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil
	}
	var err error
	if approve {
		err = e.Approve(ctx, taskID)
	} else {
		err = e.Reject(ctx, taskID)
	}
	switch {
	case err == nil:
		verb := "rejected"
		if approve {
			verb = "approved"
		}
		e.sender.SendSafe(ctx, u.ChatID, fmt.Sprintf("Reply task %s %s successfully!", taskID, verb))
	case errors.Is(err, ErrUnknownTask):
		e.sender.SendSafe(ctx, u.ChatID, fmt.Sprintf("Could not find task %s", taskID))
	case errors.Is(err, ErrAlreadyResolved):
		e.sender.SendSafe(ctx, u.ChatID, fmt.Sprintf("Task %s is already settled.", taskID))
	default:
		return err
	}
	return nil
}

// handlePosted attaches a submitted URL to the member's pending post and
// starts comment monitoring.
func (e *Engine) handlePosted(ctx context.Context, u sender.Update, text string) error {
	match := redditURLRe.FindString(text)
	if match == "" {
		e.sender.SendSafe(ctx, u.ChatID,
			"I couldn't find a valid Reddit post URL in your message.\n\nPlease send a link like:\nhttps://www.reddit.com/r/subreddit/comments/abc123/post_title/")
		return nil
	}
	postURL := strings.TrimRight(strings.SplitN(match, "?", 2)[0], "/") + "/"

	// A pending test post claims the URL before the scheduled-post flow.
	linked, err := e.tryLinkTestPost(ctx, u.ChatID, postURL)
	if err != nil {
		return err
	}
	if linked {
		return nil
	}

	member, err := e.memberByChat(ctx, u.ChatID)
	if err != nil {
		return err
	}
	if member == nil {
		e.sender.SendSafe(ctx, u.ChatID,
			"I don't recognize your account. Please send /start first to link it.")
		return nil
	}

	posts, err := e.store.ListPosts(ctx)
	if err != nil {
		return err
	}
	today := e.todayLocal()
	var candidates []store.Post
	for _, p := range posts {
		if !strings.EqualFold(p.PosterName, member.Name) {
			continue
		}
		switch p.Status {
		case store.PostDone, store.PostPosted, store.PostCancelled, store.PostDeleted:
			continue
		}
		if p.URL != "" {
			continue
		}
		candidates = append(candidates, p)
	}

	if len(candidates) == 0 {
		// Re-submission: replace the URL on today's already-posted post.
		for _, p := range posts {
			if strings.EqualFold(p.PosterName, member.Name) &&
				(p.Status == store.PostPosted || p.Status == store.PostReminded) &&
				p.ScheduledDate == today {
				if _, err := e.store.AttachPostURL(ctx, p.ID, postURL); err != nil {
					return err
				}
				e.sender.SendSafe(ctx, u.ChatID, fmt.Sprintf(
					"Updated! Post %s URL has been updated to:\n%s\n\nThe bot will now start monitoring for comments.", p.ID, postURL))
				return nil
			}
		}
		e.sender.SendSafe(ctx, u.ChatID, fmt.Sprintf(
			"Hi %s, I couldn't find a pending post assigned to you.\n\nIf you believe this is a mistake, please contact the admin.", member.Name))
		return nil
	}

	// Prefer today's post, then the nearest upcoming one.
	best := candidates[0]
	found := false
	for _, p := range candidates {
		if p.ScheduledDate == today {
			best, found = p, true
			break
		}
	}
	if !found {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].ScheduledDate < candidates[j].ScheduledDate
		})
		best = candidates[0]
	}

	if _, err := e.store.AttachPostURL(ctx, best.ID, postURL); err != nil {
		return err
	}
	e.sender.SendSafe(ctx, u.ChatID, fmt.Sprintf(
		"Got it, %s! Your Reddit post URL has been saved.\n\nPost ID: %s\nScheduled: %s\nURL: %s\n\nThe bot will now monitor this post for comments and send reply suggestions to your team. Great job!",
		member.Name, best.ID, best.ScheduledDate, postURL))
	e.Escalate(ctx, "Post URL submitted",
		fmt.Sprintf("%s has posted and submitted the URL for post %s.\nURL: %s\nComment monitoring is now active.",
			member.Name, best.ID, postURL))
	return nil
}

// handleMyStatus reports the member's open posts and reply tasks.
func (e *Engine) handleMyStatus(ctx context.Context, u sender.Update) error {
	member, err := e.memberByChat(ctx, u.ChatID)
	if err != nil {
		return err
	}
	if member == nil {
		e.sender.SendSafe(ctx, u.ChatID, "I don't recognize you. Send /start first.")
		return nil
	}
	posts, err := e.store.ListPosts(ctx)
	if err != nil {
		return err
	}
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Status for %s (Team %s):\n\n", member.Name, member.TeamID)

	var myPosts []store.Post
	for _, p := range posts {
		if strings.EqualFold(p.PosterName, member.Name) &&
			p.Status != store.PostDone && p.Status != store.PostCancelled && p.Status != store.PostDeleted {
			myPosts = append(myPosts, p)
		}
	}
	if len(myPosts) > 0 {
		b.WriteString("-- Your Scheduled Posts --\n")
		for _, p := range myPosts {
			urlNote := "Waiting for URL"
			if p.URL != "" {
				urlNote = "URL submitted"
			}
			fmt.Fprintf(&b, "  %s | %s | %s | %s\n", p.ID, p.ScheduledDate, p.Status, urlNote)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No pending posts assigned to you.\n\n")
	}

	var open int
	for _, t := range tasks {
		if !strings.EqualFold(t.AssignedMember, member.Name) || !t.ReplyPostedAt.IsZero() {
			continue
		}
		if t.Status != store.TaskSent && t.Status != store.TaskPendingApproval {
			continue
		}
		if open == 0 {
			b.WriteString("-- Your Pending Reply Tasks --\n")
		}
		short := t.ID
		if len(short) > 8 {
			short = short[:8]
		}
		fmt.Fprintf(&b, "  Task %s... | Reply to u/%s | %s\n", short, t.CommentAuthor, t.Status)
		open++
	}
	if open == 0 {
		b.WriteString("No pending reply tasks.\n")
	}
	b.WriteString("\nSend /help for available commands.")
	e.sender.SendSafe(ctx, u.ChatID, b.String())
	return nil
}

func (e *Engine) memberByChat(ctx context.Context, chatID string) (*store.Member, error) {
	members, err := e.store.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].RecipientID == chatID {
			return &members[i], nil
		}
	}
	return nil, nil
}
