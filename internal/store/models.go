// Package store maps typed team, post, and reply-task records onto the
// generic row store and owns the scalar-state keys (cursors, counters).
package store

import "time"

// Member roles. Supervisors receive escalations and approve replies.
const (
	RoleResponder  = "responder"
	RoleSupervisor = "supervisor"
)

// Post lifecycle statuses.
const (
	PostPending   = "pending"
	PostReminded  = "reminded"
	PostPosted    = "posted"
	PostDeleted   = "deleted"
	PostCancelled = "cancelled"
	PostDone      = "done"
)

// Reply-task approval statuses.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
	ApprovalSkipped  = "skipped"
)

// Reply-task dispatch statuses.
const (
	TaskPendingApproval = "pending_approval"
	TaskSent            = "sent"
	TaskEscalated       = "escalated"
)

// Test-post monitoring statuses.
const (
	TestWaitingURL = "waiting_for_url"
	TestMonitoring = "monitoring"
	TestCancelled  = "cancelled"
	TestDeleted    = "deleted"
)

// Member is one row of the Teams table.
type Member struct {
	TeamID      string
	Name        string
	RecipientID string // Telegram chat id; empty until the member links via /start
	Role        string
	Active      bool
}

// Post is one row of the PostingPlan table.
type Post struct {
	ID             string
	TeamID         string
	ScheduledDate  string // YYYY-MM-DD, local
	ScheduledTime  string // HH:MM, local
	PosterName     string
	Content        string
	URL            string
	Status         string
	LastNotifiedAt time.Time
}

// Tracked reports whether the post should be polled for comments. Any
// URL-bearing post that is not done, cancelled, or deleted is tracked,
// so a URL filled in by hand between ticks still gets picked up.
func (p Post) Tracked() bool {
	if p.URL == "" {
		return false
	}
	switch p.Status {
	case PostDone, PostCancelled, PostDeleted:
		return false
	}
	return true
}

// TestPost is one row of the TestPosts table: an admin-triggered live
// monitoring run. Its comments are forwarded straight to the admin,
// with no assignment and no approval queue.
type TestPost struct {
	ID             string
	TriggeredBy    string // chat id that started the test
	Topic          string
	URL            string
	Status         string
	CreatedAt      time.Time
	URLSubmittedAt time.Time
	LastPolledAt   time.Time
	CommentsSent   int
}

// ReplyTask is one row of the ReplyQueue table.
type ReplyTask struct {
	ID             string
	PostID         string
	CommentID      string
	CommentAuthor  string
	CommentURL     string
	AssignedMember string
	Suggestion     string
	ApprovalStatus string
	Status         string
	CreatedAt      time.Time
	SentAt         time.Time
	ApprovedAt     time.Time
	ReplyPostedAt  time.Time
	ReplyURL       string
}

// Resolved reports whether the task reached its terminal posted state.
func (t ReplyTask) Resolved() bool {
	return t.Status == TaskSent && !t.ReplyPostedAt.IsZero()
}

// Terminal reports whether no further transition is valid.
func (t ReplyTask) Terminal() bool {
	return t.Status == TaskEscalated || t.ApprovalStatus == ApprovalRejected || t.Resolved()
}

// Metric is one row of the Metrics table, an engagement snapshot per
// dispatched reply task.
type Metric struct {
	ID                string
	PostID            string
	PostURL           string
	PostTitle         string
	PostCreatedAt     time.Time
	PostUpvotes       int
	PostCommentsCount int
	CommentID         string
	CommentAuthor     string
	CommentCreatedAt  time.Time
	CommentUpvotes    int
	ReplyTaskID       string
	ReplyAuthor       string
	ReplyPostedAt     time.Time
	ReplyUpvotes      int
	ResponseTimeHours float64
	AssignedMember    string
	TeamID            string
	Date              string
}
