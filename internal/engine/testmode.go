package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/retry"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/sender"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/store"
)

// testTopics seeds admin test runs with something postable.
var testTopics = []string{
	"What's the most underrated tool in your daily dev workflow?",
	"What's a programming opinion you hold that most people disagree with?",
	"What's the worst production incident you've ever caused?",
	"What made you finally switch editors, and was it worth it?",
	"What's your go-to strategy for debugging a problem you've never seen before?",
	"What advice would you give someone starting their first dev job?",
	"What common coding interview question do you think is completely useless?",
}

func testID(raw string) string {
	id := strings.ReplaceAll(raw, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "test_" + id
}

// isAdmin reports whether the chat belongs to the linked supervisor.
func (e *Engine) isAdmin(ctx context.Context, chatID string) (bool, error) {
	sup, err := e.store.Supervisor(ctx, e.supervisorName)
	if err != nil || sup == nil {
		return false, err
	}
	return sup.RecipientID != "" && sup.RecipientID == chatID, nil
}

// handleTest issues the admin a test topic and opens a test post
// waiting for its URL.
func (e *Engine) handleTest(ctx context.Context, u sender.Update) error {
	admin, err := e.isAdmin(ctx, u.ChatID)
	if err != nil {
		return err
	}
	if !admin {
		e.sender.SendSafe(ctx, u.ChatID, "This command is for the admin only.")
		return nil
	}
	tests, err := e.store.ListTestPosts(ctx)
	if err != nil {
		return err
	}
	for _, tp := range tests {
		if tp.Status == store.TestWaitingURL && tp.TriggeredBy == u.ChatID {
			e.sender.SendSafe(ctx, u.ChatID, fmt.Sprintf(
				"You already have a pending test!\n\nTopic: %s\n\nPost it on Reddit and paste the URL here.\nOr send /test_cancel to cancel it and start a new one.",
				tp.Topic))
			return nil
		}
	}

	topic := testTopics[rand.IntN(len(testTopics))]
	id := testID(e.newID())
	err = e.store.AppendTestPost(ctx, store.TestPost{
		ID:          id,
		TriggeredBy: u.ChatID,
		Topic:       topic,
		Status:      store.TestWaitingURL,
		CreatedAt:   e.now(),
	})
	if err != nil {
		return err
	}
	e.sender.SendSafe(ctx, u.ChatID, fmt.Sprintf(
		"TEST MODE STARTED\n\nTest ID: %s\n\nHere's your test topic:\n\n%q\n\nSteps:\n1. Post this (or something similar) on a subreddit\n2. Paste the Reddit URL here\n3. I'll monitor it and send you every new comment live!\n\nSend /test_cancel to cancel.",
		id, topic))
	e.log.Info("test mode started", "chat", u.ChatID, "test", id)
	return nil
}

// handleTestCancel cancels the admin's waiting or monitoring tests.
func (e *Engine) handleTestCancel(ctx context.Context, u sender.Update) error {
	admin, err := e.isAdmin(ctx, u.ChatID)
	if err != nil {
		return err
	}
	if !admin {
		e.sender.SendSafe(ctx, u.ChatID, "This command is for the admin only.")
		return nil
	}
	tests, err := e.store.ListTestPosts(ctx)
	if err != nil {
		return err
	}
	cancelled := 0
	for _, tp := range tests {
		if tp.TriggeredBy != u.ChatID {
			continue
		}
		if tp.Status != store.TestWaitingURL && tp.Status != store.TestMonitoring {
			continue
		}
		if _, err := e.store.SetTestPostStatus(ctx, tp.ID, store.TestCancelled); err != nil {
			return err
		}
		cancelled++
	}
	if cancelled == 0 {
		e.sender.SendSafe(ctx, u.ChatID, "No active tests to cancel.")
		return nil
	}
	e.sender.SendSafe(ctx, u.ChatID, fmt.Sprintf(
		"Cancelled %d test(s). Send /test to start a new one.", cancelled))
	return nil
}

// tryLinkTestPost matches a pasted URL against the chat's pending test
// post. Reports true when the URL was consumed as a test post, so the
// caller must not treat it as a scheduled post submission.
func (e *Engine) tryLinkTestPost(ctx context.Context, chatID, postURL string) (bool, error) {
	tests, err := e.store.ListTestPosts(ctx)
	if err != nil {
		return false, err
	}
	for _, tp := range tests {
		if tp.Status != store.TestWaitingURL || tp.TriggeredBy != chatID {
			continue
		}
		if _, err := e.store.LinkTestPostURL(ctx, tp.ID, postURL, e.now()); err != nil {
			return false, err
		}
		e.sender.SendSafe(ctx, chatID, fmt.Sprintf(
			"Test post URL saved!\n\nTest ID: %s\nURL: %s\n\nI'm now monitoring this post. Every new comment will be sent to you right here. Sit back and watch!\n\nSend /test_cancel to stop monitoring.",
			tp.ID, postURL))
		e.log.Info("test post linked", "test", tp.ID, "url", postURL)
		return true, nil
	}
	return false, nil
}

// pollTestPosts forwards every new comment on monitored test posts to
// the admin, with a generated suggestion. Returns comments forwarded.
func (e *Engine) pollTestPosts(ctx context.Context) (int, error) {
	tests, err := e.store.ListTestPosts(ctx)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, tp := range tests {
		if tp.Status != store.TestMonitoring || tp.URL == "" || tp.TriggeredBy == "" {
			continue
		}
		n, err := e.pollTestPost(ctx, tp)
		if err != nil {
			e.log.Error("test post polling failed", "test", tp.ID, "error", err)
			continue
		}
		sent += n
	}
	return sent, nil
}

func (e *Engine) pollTestPost(ctx context.Context, tp store.TestPost) (int, error) {
	postCtx, err := e.source.Context(ctx, tp.URL)
	if err != nil {
		if retry.KindOf(err) == retry.KindDeleted {
			if _, err := e.store.SetTestPostStatus(ctx, tp.ID, store.TestDeleted); err != nil {
				return 0, err
			}
			e.sender.SendSafe(ctx, tp.TriggeredBy, fmt.Sprintf(
				"Your test post (%s) appears to have been deleted or removed. Monitoring stopped.", tp.ID))
			return 0, nil
		}
		return 0, err
	}
	known, err := e.store.TestKnownComments(ctx, tp.ID)
	if err != nil {
		return 0, err
	}
	comments, err := e.source.FetchNewComments(ctx, tp.URL, known, 0)
	if err != nil {
		return 0, err
	}
	if len(comments) == 0 {
		_, err := e.store.RecordTestPoll(ctx, tp.ID, e.now(), tp.CommentsSent)
		return 0, err
	}

	var recent []string
	var newIDs []string
	for _, c := range comments {
		if known[c.ID] {
			continue
		}
		text := e.generateSafe(ctx, postCtx, c, recent)
		recent = append(recent, text)
		e.sender.SendSafe(ctx, tp.TriggeredBy, fmt.Sprintf(
			"NEW COMMENT on test post\n\nTest ID: %s\nBy: u/%s\nURL: %s\n\nComment:\n%s\n\n---\nSUGGESTED REPLY:\n\n%s\n\n---\nCopy the reply above and post it on Reddit!",
			tp.ID, c.Author, c.URL, clip(c.Body, 1000), text))
		newIDs = append(newIDs, c.ID)
	}
	if len(newIDs) == 0 {
		return 0, nil
	}
	if err := e.store.AddTestKnownComments(ctx, tp.ID, newIDs); err != nil {
		return len(newIDs), err
	}
	if _, err := e.store.RecordTestPoll(ctx, tp.ID, e.now(), tp.CommentsSent+len(newIDs)); err != nil {
		return len(newIDs), err
	}
	return len(newIDs), nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
