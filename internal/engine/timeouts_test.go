package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/store"
)

func (fx *fixture) seedSentTask(t *testing.T, id, member string, sentAt time.Time) {
	t.Helper()
	err := fx.store.AppendTask(context.Background(), store.ReplyTask{
		ID:             id,
		PostID:         "p1",
		CommentID:      "c-" + id,
		CommentAuthor:  "someone",
		CommentURL:     "https://reddit.com/comment/" + id,
		AssignedMember: member,
		Suggestion:     "drafted reply text for " + id,
		Status:         store.TaskSent,
		ApprovalStatus: store.ApprovalSkipped,
		CreatedAt:      sentAt,
		SentAt:         sentAt,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestStaleTaskReassignedToOtherMember(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t,
		store.Member{TeamID: "t1", Name: "Alice", RecipientID: "111", Active: true},
		store.Member{TeamID: "t1", Name: "Bob", RecipientID: "222", Active: true},
	)
	fx.seedTrackedPost(t)
	fx.seedSentTask(t, "task-x", "Alice", fx.now.Add(-5*time.Hour))

	n, err := fx.engine.checkTimeouts(ctx)
	if err != nil {
		t.Fatalf("checkTimeouts: %v", err)
	}
	if n != 1 {
		t.Fatalf("actions = %d, want 1", n)
	}
	task, _ := fx.store.GetTask(ctx, "task-x")
	if task.AssignedMember != "Bob" {
		t.Fatalf("assignee = %s, want Bob", task.AssignedMember)
	}
	if !task.SentAt.Equal(fx.now) {
		t.Fatalf("sent_at not reset: %v", task.SentAt)
	}
	count, _ := fx.store.ReassignCount(ctx, "task-x")
	if count != 1 {
		t.Fatalf("reassign count = %d, want 1", count)
	}
	bobMsgs := fx.sender.sentTo("222")
	if len(bobMsgs) != 1 || !strings.Contains(bobMsgs[0], "[REASSIGNED]") || !strings.Contains(bobMsgs[0], "Bob") {
		t.Fatalf("bob messages = %v", bobMsgs)
	}
	aliceMsgs := fx.sender.sentTo("111")
	if len(aliceMsgs) != 1 || !strings.Contains(aliceMsgs[0], "reassigned to Bob") {
		t.Fatalf("alice messages = %v", aliceMsgs)
	}
}

func TestFreshTaskNotReassigned(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t,
		store.Member{TeamID: "t1", Name: "Alice", RecipientID: "111", Active: true},
		store.Member{TeamID: "t1", Name: "Bob", RecipientID: "222", Active: true},
	)
	fx.seedTrackedPost(t)
	fx.seedSentTask(t, "task-x", "Alice", fx.now.Add(-time.Hour))

	n, err := fx.engine.checkTimeouts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || fx.sender.count() != 0 {
		t.Fatalf("fresh task acted on: actions=%d sends=%d", n, fx.sender.count())
	}
}

func TestEscalatesAtReassignmentCap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t,
		store.Member{TeamID: "t1", Name: "Alice", RecipientID: "111", Active: true},
		store.Member{TeamID: "t1", Name: "Bob", RecipientID: "222", Active: true},
		store.Member{TeamID: "t1", Name: "Alpha", RecipientID: "999", Active: true, Role: store.RoleSupervisor},
	)
	fx.seedTrackedPost(t)
	fx.seedSentTask(t, "task-x", "Alice", fx.now.Add(-5*time.Hour))
	if err := fx.store.SetReassignCount(ctx, "task-x", 2); err != nil {
		t.Fatal(err)
	}

	if _, err := fx.engine.checkTimeouts(ctx); err != nil {
		t.Fatal(err)
	}
	task, _ := fx.store.GetTask(ctx, "task-x")
	if task.Status != store.TaskEscalated {
		t.Fatalf("status = %s, want escalated", task.Status)
	}
	msgs := fx.sender.sentTo("999")
	if len(msgs) != 1 || !strings.Contains(msgs[0], "max reassignments reached") {
		t.Fatalf("supervisor messages = %v", msgs)
	}
	// Escalated is terminal: a second scan leaves it alone.
	if _, err := fx.engine.checkTimeouts(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(fx.sender.sentTo("999")); n != 1 {
		t.Fatalf("escalated again: %d messages", n)
	}
}

func TestSingleMemberTeamEscalatesInsteadOfLooping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t,
		store.Member{TeamID: "t1", Name: "Alice", RecipientID: "111", Active: true},
		store.Member{TeamID: "t2", Name: "Alpha", RecipientID: "999", Active: true, Role: store.RoleSupervisor},
	)
	fx.seedTrackedPost(t)
	fx.seedSentTask(t, "task-x", "Alice", fx.now.Add(-5*time.Hour))

	if _, err := fx.engine.checkTimeouts(ctx); err != nil {
		t.Fatal(err)
	}
	task, _ := fx.store.GetTask(ctx, "task-x")
	if task.Status != store.TaskEscalated || task.AssignedMember != "Alice" {
		t.Fatalf("task = %+v", task)
	}
	msgs := fx.sender.sentTo("999")
	if len(msgs) != 1 || !strings.Contains(msgs[0], "single-member team") {
		t.Fatalf("supervisor messages = %v", msgs)
	}
}

func TestTimeoutWithUnknownPostEscalatesWithoutStatusChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t, store.Member{TeamID: "t2", Name: "Alpha", RecipientID: "999", Active: true, Role: store.RoleSupervisor})
	// No post row for p1: the team cannot be resolved.
	fx.seedSentTask(t, "task-x", "Alice", fx.now.Add(-5*time.Hour))

	if _, err := fx.engine.checkTimeouts(ctx); err != nil {
		t.Fatal(err)
	}
	task, _ := fx.store.GetTask(ctx, "task-x")
	if task.Status != store.TaskSent {
		t.Fatalf("status changed to %s", task.Status)
	}
	msgs := fx.sender.sentTo("999")
	if len(msgs) != 1 || !strings.Contains(msgs[0], "team not found") {
		t.Fatalf("supervisor messages = %v", msgs)
	}
}

func TestReassignSkipsUnlinkedReplacement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t,
		store.Member{TeamID: "t1", Name: "Alice", RecipientID: "111", Active: true},
		store.Member{TeamID: "t1", Name: "Bob", RecipientID: "", Active: true},
		store.Member{TeamID: "t2", Name: "Alpha", RecipientID: "999", Active: true, Role: store.RoleSupervisor},
	)
	fx.seedTrackedPost(t)
	fx.seedSentTask(t, "task-x", "Alice", fx.now.Add(-5*time.Hour))

	if _, err := fx.engine.checkTimeouts(ctx); err != nil {
		t.Fatal(err)
	}
	task, _ := fx.store.GetTask(ctx, "task-x")
	if task.AssignedMember != "Alice" {
		t.Fatalf("reassigned to unlinked member: %s", task.AssignedMember)
	}
	count, _ := fx.store.ReassignCount(ctx, "task-x")
	if count != 0 {
		t.Fatalf("count advanced without reassignment: %d", count)
	}
	msgs := fx.sender.sentTo("999")
	if len(msgs) != 1 || !strings.Contains(msgs[0], "no linked handle") {
		t.Fatalf("supervisor messages = %v", msgs)
	}
}

// Full lifecycle: two reassignments, then escalation on the third
// timeout, matching MaxReassignAttempts of 2.
func TestReassignThenEscalateLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "")
	fx.seedTeam(t,
		store.Member{TeamID: "t1", Name: "Alice", RecipientID: "111", Active: true},
		store.Member{TeamID: "t1", Name: "Bob", RecipientID: "222", Active: true},
		store.Member{TeamID: "t1", Name: "Alpha", RecipientID: "999", Active: true, Role: store.RoleSupervisor},
	)
	fx.seedTrackedPost(t)
	fx.seedSentTask(t, "task-x", "Alice", fx.now.Add(-5*time.Hour))

	assignees := []string{"Bob", "Alice"}
	for i, want := range assignees {
		if _, err := fx.engine.checkTimeouts(ctx); err != nil {
			t.Fatal(err)
		}
		task, _ := fx.store.GetTask(ctx, "task-x")
		if task.AssignedMember != want {
			t.Fatalf("round %d assignee = %s, want %s", i+1, task.AssignedMember, want)
		}
		fx.advance(5 * time.Hour)
	}

	if _, err := fx.engine.checkTimeouts(ctx); err != nil {
		t.Fatal(err)
	}
	task, _ := fx.store.GetTask(ctx, "task-x")
	if task.Status != store.TaskEscalated {
		t.Fatalf("status = %s, want escalated", task.Status)
	}
	count, _ := fx.store.ReassignCount(ctx, "task-x")
	if count != 2 {
		t.Fatalf("reassign count = %d, want 2", count)
	}
}
