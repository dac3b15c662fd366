package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/source"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/store"
)

func TestCollectEngagementAppendsOneRowPerTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t, store.Member{TeamID: "t1", Name: "Alice", RecipientID: "111", Active: true})
	fx.seedTrackedPost(t)
	fx.source.contexts[postURL] = &source.PostContext{
		Title: "launch post", Score: 42, CommentCount: 7, CreatedUTC: 1000,
	}
	commentAt := fx.now.Add(-3 * time.Hour)
	fx.source.scores["c1"] = &source.CommentScore{
		ID: "c1", Score: 5, CreatedUTC: float64(commentAt.Unix()),
	}
	err := fx.store.AppendTask(ctx, store.ReplyTask{
		ID: "task-1", PostID: "p1", CommentID: "c1", CommentAuthor: "viewer",
		AssignedMember: "Alice", Suggestion: "draft", Status: store.TaskSent,
		ApprovalStatus: store.ApprovalSkipped,
		CreatedAt:      commentAt, SentAt: commentAt,
		ReplyPostedAt: fx.now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := fx.engine.collectEngagement(ctx)
	if err != nil {
		t.Fatalf("collectEngagement: %v", err)
	}
	if n != 1 {
		t.Fatalf("added %d rows, want 1", n)
	}
	tracked, _ := fx.store.TrackedTaskIDs(ctx)
	if !tracked["task-1"] {
		t.Fatal("task not tracked after collection")
	}

	// Already tracked: the next collection adds nothing.
	n, err = fx.engine.collectEngagement(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("duplicate metric rows: %d", n)
	}
}

func TestCollectEngagementResponseTimeClampedAtZero(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTrackedPost(t)
	fx.source.contexts[postURL] = &source.PostContext{Title: "p", Score: 1}
	// Comment timestamp after the reply: malformed upstream data.
	fx.source.scores["c1"] = &source.CommentScore{
		ID: "c1", Score: 1, CreatedUTC: float64(fx.now.Add(time.Hour).Unix()),
	}
	err := fx.store.AppendTask(ctx, store.ReplyTask{
		ID: "task-1", PostID: "p1", CommentID: "c1", AssignedMember: "Alice",
		Suggestion: "draft", Status: store.TaskSent, ApprovalStatus: store.ApprovalSkipped,
		CreatedAt: fx.now, SentAt: fx.now, ReplyPostedAt: fx.now,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fx.engine.collectEngagement(ctx); err != nil {
		t.Fatal(err)
	}
	rows, err := fx.store.Rows().ReadRows(ctx, "Metrics")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	if got := rows[0]["response_time_hours"]; got != "0.00" {
		t.Fatalf("response_time_hours = %q, want clamped zero", got)
	}
}

func TestCollectEngagementSkipsUnavailableSources(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTrackedPost(t)
	fx.source.contexts[postURL] = &source.PostContext{Title: "p"}
	// No score registered for c1: the comment lookup fails.
	err := fx.store.AppendTask(ctx, store.ReplyTask{
		ID: "task-1", PostID: "p1", CommentID: "c1", AssignedMember: "Alice",
		Suggestion: "draft", Status: store.TaskSent, ApprovalStatus: store.ApprovalSkipped,
		CreatedAt: fx.now, SentAt: fx.now,
	})
	if err != nil {
		t.Fatal(err)
	}
	n, err := fx.engine.collectEngagement(ctx)
	if err != nil {
		t.Fatalf("a missing comment must not abort collection: %v", err)
	}
	if n != 0 {
		t.Fatalf("rows added for unavailable comment: %d", n)
	}
}

func TestEngagementRunsEveryThirdTick(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTrackedPost(t)
	fx.source.contexts[postURL] = &source.PostContext{Title: "p"}
	fx.source.scores["c1"] = &source.CommentScore{ID: "c1", Score: 3, CreatedUTC: 100}
	err := fx.store.AppendTask(ctx, store.ReplyTask{
		ID: "task-1", PostID: "p1", CommentID: "c1", AssignedMember: "Alice",
		Suggestion: "draft", Status: store.TaskSent, ApprovalStatus: store.ApprovalSkipped,
		CreatedAt: fx.now, SentAt: fx.now,
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		stats, err := fx.engine.RunTick(ctx)
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if i < 3 && stats.MetricsAdded != 0 {
			t.Fatalf("tick %d collected engagement early", i)
		}
		if i == 3 && stats.MetricsAdded != 1 {
			t.Fatalf("tick 3 stats = %+v", stats)
		}
	}
}
