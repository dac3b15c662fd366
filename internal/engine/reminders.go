package engine

import (
	"context"
	"fmt"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/store"
)

// runDailyReminders sends posting reminders once per local day, after
// the configured time of day. The last-run date lives in scalar state so
// restarts within a day stay silent.
func (e *Engine) runDailyReminders(ctx context.Context) (int, error) {
	today := e.todayLocal()
	last, err := e.store.ReminderDate(ctx)
	if err != nil {
		return 0, err
	}
	if last == today {
		return 0, nil
	}
	now := e.now().In(e.loc)
	if now.Hour()*60+now.Minute() < e.dailyHour*60+e.dailyMinute {
		return 0, nil
	}
	n, err := e.sendReminders(ctx, today)
	if err != nil {
		return n, err
	}
	return n, e.store.SetReminderDate(ctx, today)
}

// sendReminders nudges every poster whose post is scheduled today and
// not yet posted. Unknown or unlinked posters escalate instead.
func (e *Engine) sendReminders(ctx context.Context, today string) (int, error) {
	posts, err := e.store.ListPosts(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, post := range posts {
		if post.ScheduledDate != today {
			continue
		}
		if post.Status == store.PostDone || post.Status == store.PostPosted {
			continue
		}
		poster, err := e.store.FindMember(ctx, post.PosterName)
		if err != nil {
			return count, err
		}
		if poster == nil {
			e.Escalate(ctx, "Poster not found",
				fmt.Sprintf("Post %q is scheduled today but poster %q is not on the roster.", post.ID, post.PosterName))
			continue
		}
		if !validRecipient(poster.RecipientID) {
			e.Escalate(ctx, "Poster has no linked handle",
				fmt.Sprintf("Post %q is scheduled today but poster %q has no chat id linked. Ask them to /start the bot.", post.ID, post.PosterName))
			continue
		}
		when := post.ScheduledTime
		if when == "" {
			when = "today"
		}
		msg := fmt.Sprintf(
			"Posting reminder\n\nPost ID: %s\nScheduled: %s %s\n\nPost content:\n%s\n\n---\nAfter you post on Reddit, just paste the URL here and I'll start monitoring for comments automatically!",
			post.ID, today, when, post.Content)
		e.sender.SendSafe(ctx, poster.RecipientID, msg)
		if _, err := e.store.MarkPostNotified(ctx, post.ID, e.now()); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
