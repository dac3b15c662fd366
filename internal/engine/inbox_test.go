package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/sender"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/store"
)

func TestStartLinksByUsername(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t, store.Member{TeamID: "t1", Name: "Alice", RecipientID: "@alicegram", Active: true})
	fx.sender.updates = []sender.Update{
		{ID: 1, ChatID: "111", Username: "AliceGram", Text: "/start"},
	}

	n, err := fx.engine.processInbox(ctx)
	if err != nil {
		t.Fatalf("processInbox: %v", err)
	}
	if n != 1 {
		t.Fatalf("processed = %d", n)
	}
	member, _ := fx.store.FindMember(ctx, "Alice")
	if member.RecipientID != "111" {
		t.Fatalf("recipient = %q, want linked chat id", member.RecipientID)
	}
	msgs := fx.sender.sentTo("111")
	if len(msgs) != 1 || !strings.Contains(msgs[0], "linked successfully") {
		t.Fatalf("replies = %v", msgs)
	}
}

func TestStartLinksByFirstNameFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t, store.Member{TeamID: "t1", Name: "Bob", RecipientID: "", Active: true})
	fx.sender.updates = []sender.Update{
		{ID: 1, ChatID: "222", Username: "somethingelse", FirstName: "bob", Text: "/start"},
	}

	if _, err := fx.engine.processInbox(ctx); err != nil {
		t.Fatal(err)
	}
	member, _ := fx.store.FindMember(ctx, "Bob")
	if member.RecipientID != "222" {
		t.Fatalf("recipient = %q", member.RecipientID)
	}
}

func TestStartUnmappedUserGetsGuidance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t, store.Member{TeamID: "t1", Name: "Alice", RecipientID: "@alicegram", Active: true})
	fx.sender.updates = []sender.Update{
		{ID: 1, ChatID: "333", Username: "stranger", FirstName: "Mallory", Text: "/start"},
	}

	if _, err := fx.engine.processInbox(ctx); err != nil {
		t.Fatal(err)
	}
	msgs := fx.sender.sentTo("333")
	if len(msgs) != 1 || !strings.Contains(msgs[0], "not mapped") || !strings.Contains(msgs[0], "@stranger") {
		t.Fatalf("replies = %v", msgs)
	}
}

func TestApproveCommandDrivesDecision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t, store.Member{TeamID: "t1", Name: "Alpha", RecipientID: "999", Active: true, Role: store.RoleSupervisor})
	fx.seedTrackedPost(t)
	err := fx.store.AppendTask(ctx, store.ReplyTask{
		ID: "task-1", PostID: "p1", CommentID: "c1", AssignedMember: "Alice",
		Suggestion: "draft", Status: store.TaskPendingApproval, ApprovalStatus: store.ApprovalPending,
		CreatedAt: fx.now,
	})
	if err != nil {
		t.Fatal(err)
	}
	fx.sender.updates = []sender.Update{
		{ID: 1, ChatID: "999", Text: "/approve_task-1"},
	}

	if _, err := fx.engine.processInbox(ctx); err != nil {
		t.Fatal(err)
	}
	task, _ := fx.store.GetTask(ctx, "task-1")
	if task.ApprovalStatus != store.ApprovalApproved {
		t.Fatalf("approval = %s", task.ApprovalStatus)
	}
	msgs := fx.sender.sentTo("999")
	if len(msgs) != 1 || !strings.Contains(msgs[0], "approved successfully") {
		t.Fatalf("replies = %v", msgs)
	}
}

func TestDecisionOnUnknownAndSettledTasks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t, store.Member{TeamID: "t1", Name: "Alpha", RecipientID: "999", Active: true, Role: store.RoleSupervisor})
	fx.seedTrackedPost(t)
	err := fx.store.AppendTask(ctx, store.ReplyTask{
		ID: "task-1", PostID: "p1", CommentID: "c1", AssignedMember: "Alice",
		Suggestion: "draft", Status: store.TaskEscalated, ApprovalStatus: store.ApprovalSkipped,
		CreatedAt: fx.now,
	})
	if err != nil {
		t.Fatal(err)
	}
	fx.sender.updates = []sender.Update{
		{ID: 1, ChatID: "999", Text: "/approve_nope"},
		{ID: 2, ChatID: "999", Text: "/reject_task-1"},
	}

	if _, err := fx.engine.processInbox(ctx); err != nil {
		t.Fatal(err)
	}
	msgs := fx.sender.sentTo("999")
	if len(msgs) != 2 {
		t.Fatalf("replies = %v", msgs)
	}
	if !strings.Contains(msgs[0], "Could not find task nope") {
		t.Fatalf("unknown reply = %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "already settled") {
		t.Fatalf("settled reply = %q", msgs[1])
	}
}

func TestPostedURLAttachesToPendingPost(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t,
		store.Member{TeamID: "t1", Name: "Alice", RecipientID: "111", Active: true},
		store.Member{TeamID: "t1", Name: "Alpha", RecipientID: "999", Active: true, Role: store.RoleSupervisor},
	)
	err := fx.store.AppendPost(ctx, store.Post{
		ID: "p1", TeamID: "t1", PosterName: "Alice",
		ScheduledDate: fx.engine.todayLocal(), Status: store.PostPending,
	})
	if err != nil {
		t.Fatal(err)
	}
	// A bare pasted link routes the same as /posted.
	fx.sender.updates = []sender.Update{
		{ID: 1, ChatID: "111", Text: "check it out https://www.reddit.com/r/golang/comments/abc/launch?utm_source=share"},
	}

	if _, err := fx.engine.processInbox(ctx); err != nil {
		t.Fatal(err)
	}
	posts, _ := fx.store.ListPosts(ctx)
	if posts[0].URL != "https://www.reddit.com/r/golang/comments/abc/launch/" {
		t.Fatalf("url = %q", posts[0].URL)
	}
	if posts[0].Status != store.PostPosted {
		t.Fatalf("status = %s", posts[0].Status)
	}
	if msgs := fx.sender.sentTo("111"); len(msgs) != 1 || !strings.Contains(msgs[0], "Got it, Alice") {
		t.Fatalf("confirmation = %v", msgs)
	}
	if msgs := fx.sender.sentTo("999"); len(msgs) != 1 || !strings.Contains(msgs[0], "Post URL submitted") {
		t.Fatalf("escalation = %v", msgs)
	}
}

func TestPostedPrefersTodayOverEarlierDate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t, store.Member{TeamID: "t1", Name: "Alice", RecipientID: "111", Active: true})
	today := fx.engine.todayLocal()
	for _, p := range []store.Post{
		{ID: "p-old", TeamID: "t1", PosterName: "Alice", ScheduledDate: "2026-08-20", Status: store.PostPending},
		{ID: "p-today", TeamID: "t1", PosterName: "Alice", ScheduledDate: today, Status: store.PostPending},
	} {
		if err := fx.store.AppendPost(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	fx.sender.updates = []sender.Update{
		{ID: 1, ChatID: "111", Text: "/posted https://reddit.com/r/golang/comments/xyz/today/"},
	}

	if _, err := fx.engine.processInbox(ctx); err != nil {
		t.Fatal(err)
	}
	posts, _ := fx.store.ListPosts(ctx)
	for _, p := range posts {
		switch p.ID {
		case "p-today":
			if p.URL == "" {
				t.Fatal("today's post did not get the URL")
			}
		case "p-old":
			if p.URL != "" {
				t.Fatal("older post got the URL")
			}
		}
	}
}

func TestPostedFromUnlinkedChatIsRefused(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t, store.Member{TeamID: "t1", Name: "Alice", RecipientID: "111", Active: true})
	fx.sender.updates = []sender.Update{
		{ID: 1, ChatID: "444", Text: "https://www.reddit.com/r/golang/comments/abc/launch/"},
	}

	if _, err := fx.engine.processInbox(ctx); err != nil {
		t.Fatal(err)
	}
	msgs := fx.sender.sentTo("444")
	if len(msgs) != 1 || !strings.Contains(msgs[0], "/start") {
		t.Fatalf("replies = %v", msgs)
	}
}

func TestMyStatusListsPostsAndOpenTasks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t, store.Member{TeamID: "t1", Name: "Alice", RecipientID: "111", Active: true})
	if err := fx.store.AppendPost(ctx, store.Post{
		ID: "p1", TeamID: "t1", PosterName: "Alice", ScheduledDate: "2026-08-27", Status: store.PostPending,
	}); err != nil {
		t.Fatal(err)
	}
	if err := fx.store.AppendTask(ctx, store.ReplyTask{
		ID: "task-abcdef123", PostID: "p1", CommentID: "c1", CommentAuthor: "viewer",
		AssignedMember: "Alice", Suggestion: "draft", Status: store.TaskSent,
		ApprovalStatus: store.ApprovalSkipped, CreatedAt: fx.now, SentAt: fx.now,
	}); err != nil {
		t.Fatal(err)
	}
	fx.sender.updates = []sender.Update{{ID: 1, ChatID: "111", Text: "/mystatus"}}

	if _, err := fx.engine.processInbox(ctx); err != nil {
		t.Fatal(err)
	}
	msgs := fx.sender.sentTo("111")
	if len(msgs) != 1 {
		t.Fatalf("replies = %v", msgs)
	}
	body := msgs[0]
	for _, want := range []string{"Status for Alice", "p1", "Waiting for URL", "task-abc", "u/viewer"} {
		if !strings.Contains(body, want) {
			t.Fatalf("status missing %q:\n%s", want, body)
		}
	}
}

func TestUnknownMessageGetsHint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.sender.updates = []sender.Update{
		{ID: 1, ChatID: "111", Text: "hello there"},
		{ID: 2, ChatID: "111", Text: "/help"},
	}

	if _, err := fx.engine.processInbox(ctx); err != nil {
		t.Fatal(err)
	}
	msgs := fx.sender.sentTo("111")
	if len(msgs) != 2 {
		t.Fatalf("replies = %v", msgs)
	}
	if !strings.Contains(msgs[0], "/help") {
		t.Fatalf("hint = %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "Available commands") {
		t.Fatalf("help = %q", msgs[1])
	}
}

func TestInboxOffsetAdvancesAndSkipsHandled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.sender.updates = []sender.Update{
		{ID: 7, ChatID: "111", Text: "hello"},
		{ID: 8, ChatID: "", Text: "channel post without chat"},
	}

	if _, err := fx.engine.processInbox(ctx); err != nil {
		t.Fatal(err)
	}
	offset, _ := fx.store.UpdateOffset(ctx)
	if offset != 9 {
		t.Fatalf("offset = %d, want 9", offset)
	}
	// Re-running with the stored offset replays nothing.
	if _, err := fx.engine.processInbox(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(fx.sender.sentTo("111")); n != 1 {
		t.Fatalf("update handled twice: %d replies", n)
	}
}
