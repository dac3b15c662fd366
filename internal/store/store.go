package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/rowstore"
)

// timeLayout is the wire format for timestamps in the row store.
const timeLayout = time.RFC3339

// Tables names the logical tables. Zero values fall back to the defaults.
type Tables struct {
	Teams     string
	Posts     string
	Replies   string
	Metrics   string
	TestPosts string
}

func (t Tables) withDefaults() Tables {
	if t.Teams == "" {
		t.Teams = "Teams"
	}
	if t.Posts == "" {
		t.Posts = "PostingPlan"
	}
	if t.Replies == "" {
		t.Replies = "ReplyQueue"
	}
	if t.Metrics == "" {
		t.Metrics = "Metrics"
	}
	if t.TestPosts == "" {
		t.TestPosts = "TestPosts"
	}
	return t
}

var tableHeaders = map[string][]string{
	"Teams": {"team_id", "member_name", "telegram_user_id", "is_active", "role"},
	"PostingPlan": {
		"post_id", "team_id", "scheduled_date", "scheduled_time",
		"poster_member_name", "post_content", "reddit_post_url", "status",
		"last_notified_at",
	},
	"ReplyQueue": {
		"reply_task_id", "post_id", "reddit_comment_id", "comment_author",
		"comment_url", "assigned_member_name", "reply_suggestion",
		"approval_status", "status", "created_at", "sent_at", "approved_at",
		"reply_posted_at", "reply_url",
	},
	"Metrics": {
		"metric_id", "post_id", "reddit_post_url", "post_title",
		"post_created_at", "post_upvotes", "post_comments_count",
		"comment_id", "comment_author", "comment_created_at",
		"comment_upvotes", "reply_task_id", "reply_author",
		"reply_posted_at", "reply_upvotes", "response_time_hours",
		"assigned_member_name", "team_id", "metric_date",
	},
	"TestPosts": {
		"test_id", "triggered_by", "test_topic", "reddit_post_url",
		"status", "created_at", "url_submitted_at", "last_polled_at",
		"comments_sent",
	},
}

// Store is the typed adapter over a rowstore.Store.
type Store struct {
	rs     rowstore.Store
	tables Tables
}

// New wraps a row store. Call Bootstrap before first use.
func New(rs rowstore.Store, tables Tables) *Store {
	return &Store{rs: rs, tables: tables.withDefaults()}
}

// Rows exposes the underlying row store.
func (s *Store) Rows() rowstore.Store { return s.rs }

// Close closes the underlying row store.
func (s *Store) Close() error { return s.rs.Close() }

// Bootstrap creates the logical tables, adding any missing columns.
func (s *Store) Bootstrap(ctx context.Context) error {
	for logical, physical := range map[string]string{
		"Teams":       s.tables.Teams,
		"PostingPlan": s.tables.Posts,
		"ReplyQueue":  s.tables.Replies,
		"Metrics":     s.tables.Metrics,
		"TestPosts":   s.tables.TestPosts,
	} {
		if err := s.rs.GetOrCreateTable(ctx, physical, tableHeaders[logical]); err != nil {
			return fmt.Errorf("bootstrap %s: %w", physical, err)
		}
	}
	return nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "y":
		return true
	}
	return false
}

// Members

func memberFromRow(r rowstore.Row) Member {
	return Member{
		TeamID:      r["team_id"],
		Name:        r["member_name"],
		RecipientID: r["telegram_user_id"],
		Role:        strings.ToLower(r["role"]),
		Active:      parseBool(r["is_active"]),
	}
}

// ListMembers returns all roster rows in load order.
func (s *Store) ListMembers(ctx context.Context) ([]Member, error) {
	rows, err := s.rs.ReadRows(ctx, s.tables.Teams)
	if err != nil {
		return nil, err
	}
	out := make([]Member, 0, len(rows))
	for _, r := range rows {
		if r["member_name"] == "" {
			continue
		}
		out = append(out, memberFromRow(r))
	}
	return out, nil
}

// ActiveMembers returns a team's active members in load order. The order
// is the rotation ring order.
func (s *Store) ActiveMembers(ctx context.Context, teamID string) ([]Member, error) {
	all, err := s.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	var out []Member
	for _, m := range all {
		if m.Active && m.TeamID == teamID {
			out = append(out, m)
		}
	}
	return out, nil
}

// FindMember looks a member up by name, case-insensitively, across teams.
func (s *Store) FindMember(ctx context.Context, name string) (*Member, error) {
	all, err := s.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		if strings.EqualFold(m.Name, name) {
			return &m, nil
		}
	}
	return nil, nil
}

// Supervisor resolves the escalation recipient: the first member with the
// supervisor role, falling back to an exact case-insensitive match against
// fallbackName for rosters that predate the role column.
func (s *Store) Supervisor(ctx context.Context, fallbackName string) (*Member, error) {
	all, err := s.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		if m.Role == RoleSupervisor {
			return &m, nil
		}
	}
	if fallbackName != "" {
		for _, m := range all {
			if strings.EqualFold(m.Name, fallbackName) {
				return &m, nil
			}
		}
	}
	return nil, nil
}

// AppendMember adds a roster row.
func (s *Store) AppendMember(ctx context.Context, m Member) error {
	active := "false"
	if m.Active {
		active = "true"
	}
	return s.rs.AppendRow(ctx, s.tables.Teams, rowstore.Row{
		"team_id":          m.TeamID,
		"member_name":      m.Name,
		"telegram_user_id": m.RecipientID,
		"is_active":        active,
		"role":             m.Role,
	})
}

// LinkRecipient records a member's recipient handle, returning the number
// of updated roster rows.
func (s *Store) LinkRecipient(ctx context.Context, memberName, recipientID string) (int, error) {
	return s.rs.UpdateRowsByKey(ctx, s.tables.Teams, "member_name", memberName,
		rowstore.Row{"telegram_user_id": recipientID})
}

// Posts

func postFromRow(r rowstore.Row) Post {
	return Post{
		ID:             r["post_id"],
		TeamID:         r["team_id"],
		ScheduledDate:  r["scheduled_date"],
		ScheduledTime:  r["scheduled_time"],
		PosterName:     r["poster_member_name"],
		Content:        r["post_content"],
		URL:            r["reddit_post_url"],
		Status:         strings.ToLower(r["status"]),
		LastNotifiedAt: parseTime(r["last_notified_at"]),
	}
}

// ListPosts returns all posting-plan rows in load order.
func (s *Store) ListPosts(ctx context.Context) ([]Post, error) {
	rows, err := s.rs.ReadRows(ctx, s.tables.Posts)
	if err != nil {
		return nil, err
	}
	out := make([]Post, 0, len(rows))
	for _, r := range rows {
		if r["post_id"] == "" {
			continue
		}
		out = append(out, postFromRow(r))
	}
	return out, nil
}

// AppendPost adds a posting-plan row.
func (s *Store) AppendPost(ctx context.Context, p Post) error {
	return s.rs.AppendRow(ctx, s.tables.Posts, rowstore.Row{
		"post_id":            p.ID,
		"team_id":            p.TeamID,
		"scheduled_date":     p.ScheduledDate,
		"scheduled_time":     p.ScheduledTime,
		"poster_member_name": p.PosterName,
		"post_content":       p.Content,
		"reddit_post_url":    p.URL,
		"status":             p.Status,
		"last_notified_at":   formatTime(p.LastNotifiedAt),
	})
}

// SetPostStatus updates a post's lifecycle status.
func (s *Store) SetPostStatus(ctx context.Context, postID, status string) (int, error) {
	return s.rs.UpdateRowsByKey(ctx, s.tables.Posts, "post_id", postID,
		rowstore.Row{"status": status})
}

// AttachPostURL records the submitted URL and moves the post to posted.
func (s *Store) AttachPostURL(ctx context.Context, postID, url string) (int, error) {
	return s.rs.UpdateRowsByKey(ctx, s.tables.Posts, "post_id", postID,
		rowstore.Row{"reddit_post_url": url, "status": PostPosted})
}

// MarkPostNotified stamps last_notified_at and moves the post to reminded.
func (s *Store) MarkPostNotified(ctx context.Context, postID string, at time.Time) (int, error) {
	return s.rs.UpdateRowsByKey(ctx, s.tables.Posts, "post_id", postID,
		rowstore.Row{"status": PostReminded, "last_notified_at": formatTime(at)})
}

// Reply tasks

func taskFromRow(r rowstore.Row) ReplyTask {
	return ReplyTask{
		ID:             r["reply_task_id"],
		PostID:         r["post_id"],
		CommentID:      r["reddit_comment_id"],
		CommentAuthor:  r["comment_author"],
		CommentURL:     r["comment_url"],
		AssignedMember: r["assigned_member_name"],
		Suggestion:     r["reply_suggestion"],
		ApprovalStatus: strings.ToLower(r["approval_status"]),
		Status:         strings.ToLower(r["status"]),
		CreatedAt:      parseTime(r["created_at"]),
		SentAt:         parseTime(r["sent_at"]),
		ApprovedAt:     parseTime(r["approved_at"]),
		ReplyPostedAt:  parseTime(r["reply_posted_at"]),
		ReplyURL:       r["reply_url"],
	}
}

// ListTasks returns all reply-queue rows in load order.
func (s *Store) ListTasks(ctx context.Context) ([]ReplyTask, error) {
	rows, err := s.rs.ReadRows(ctx, s.tables.Replies)
	if err != nil {
		return nil, err
	}
	out := make([]ReplyTask, 0, len(rows))
	for _, r := range rows {
		if r["reply_task_id"] == "" {
			continue
		}
		out = append(out, taskFromRow(r))
	}
	return out, nil
}

// GetTask returns the task with the given id, or nil.
func (s *Store) GetTask(ctx context.Context, taskID string) (*ReplyTask, error) {
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.ID == taskID {
			return &t, nil
		}
	}
	return nil, nil
}

// AppendTask adds a reply-queue row.
func (s *Store) AppendTask(ctx context.Context, t ReplyTask) error {
	return s.rs.AppendRow(ctx, s.tables.Replies, rowstore.Row{
		"reply_task_id":        t.ID,
		"post_id":              t.PostID,
		"reddit_comment_id":    t.CommentID,
		"comment_author":       t.CommentAuthor,
		"comment_url":          t.CommentURL,
		"assigned_member_name": t.AssignedMember,
		"reply_suggestion":     t.Suggestion,
		"approval_status":      t.ApprovalStatus,
		"status":               t.Status,
		"created_at":           formatTime(t.CreatedAt),
		"sent_at":              formatTime(t.SentAt),
		"approved_at":          formatTime(t.ApprovedAt),
		"reply_posted_at":      formatTime(t.ReplyPostedAt),
		"reply_url":            t.ReplyURL,
	})
}

// UpdateTask applies raw field updates to the task's row.
func (s *Store) UpdateTask(ctx context.Context, taskID string, fields rowstore.Row) (int, error) {
	return s.rs.UpdateRowsByKey(ctx, s.tables.Replies, "reply_task_id", taskID, fields)
}

// SetApproval records an approval decision and its timestamp.
func (s *Store) SetApproval(ctx context.Context, taskID, approvalStatus string, at time.Time) (int, error) {
	return s.UpdateTask(ctx, taskID, rowstore.Row{
		"approval_status": approvalStatus,
		"approved_at":     formatTime(at),
	})
}

// MarkSent stamps sent_at and moves the task to sent.
func (s *Store) MarkSent(ctx context.Context, taskID string, at time.Time) (int, error) {
	return s.UpdateTask(ctx, taskID, rowstore.Row{
		"status":  TaskSent,
		"sent_at": formatTime(at),
	})
}

// MarkResolved records the posted reply. Terminal.
func (s *Store) MarkResolved(ctx context.Context, taskID, replyURL string, postedAt time.Time) (int, error) {
	return s.UpdateTask(ctx, taskID, rowstore.Row{
		"reply_posted_at": formatTime(postedAt),
		"reply_url":       replyURL,
	})
}

// Reassign moves the task to a new assignee and restarts its timeout clock.
func (s *Store) Reassign(ctx context.Context, taskID, member string, at time.Time) (int, error) {
	return s.UpdateTask(ctx, taskID, rowstore.Row{
		"assigned_member_name": member,
		"sent_at":              formatTime(at),
	})
}

// MarkEscalated moves the task to its escalated terminal state.
func (s *Store) MarkEscalated(ctx context.Context, taskID string) (int, error) {
	return s.UpdateTask(ctx, taskID, rowstore.Row{"status": TaskEscalated})
}

// KnownCommentIDs returns the set of comment ids already converted into
// tasks. This set is the seen-comment set: derived, additive, crash-safe.
func (s *Store) KnownCommentIDs(ctx context.Context) (map[string]bool, error) {
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.CommentID != "" {
			out[t.CommentID] = true
		}
	}
	return out, nil
}

// Test posts

func testPostFromRow(r rowstore.Row) TestPost {
	n, _ := strconv.Atoi(r["comments_sent"])
	return TestPost{
		ID:             r["test_id"],
		TriggeredBy:    r["triggered_by"],
		Topic:          r["test_topic"],
		URL:            r["reddit_post_url"],
		Status:         strings.ToLower(r["status"]),
		CreatedAt:      parseTime(r["created_at"]),
		URLSubmittedAt: parseTime(r["url_submitted_at"]),
		LastPolledAt:   parseTime(r["last_polled_at"]),
		CommentsSent:   n,
	}
}

// ListTestPosts returns all test-post rows in load order.
func (s *Store) ListTestPosts(ctx context.Context) ([]TestPost, error) {
	rows, err := s.rs.ReadRows(ctx, s.tables.TestPosts)
	if err != nil {
		return nil, err
	}
	out := make([]TestPost, 0, len(rows))
	for _, r := range rows {
		if r["test_id"] == "" {
			continue
		}
		out = append(out, testPostFromRow(r))
	}
	return out, nil
}

// AppendTestPost adds a test-post row.
func (s *Store) AppendTestPost(ctx context.Context, tp TestPost) error {
	return s.rs.AppendRow(ctx, s.tables.TestPosts, rowstore.Row{
		"test_id":          tp.ID,
		"triggered_by":     tp.TriggeredBy,
		"test_topic":       tp.Topic,
		"reddit_post_url":  tp.URL,
		"status":           tp.Status,
		"created_at":       formatTime(tp.CreatedAt),
		"url_submitted_at": formatTime(tp.URLSubmittedAt),
		"last_polled_at":   formatTime(tp.LastPolledAt),
		"comments_sent":    strconv.Itoa(tp.CommentsSent),
	})
}

// SetTestPostStatus updates a test post's monitoring status.
func (s *Store) SetTestPostStatus(ctx context.Context, testID, status string) (int, error) {
	return s.rs.UpdateRowsByKey(ctx, s.tables.TestPosts, "test_id", testID,
		rowstore.Row{"status": status})
}

// LinkTestPostURL records the submitted URL and starts monitoring.
func (s *Store) LinkTestPostURL(ctx context.Context, testID, url string, at time.Time) (int, error) {
	return s.rs.UpdateRowsByKey(ctx, s.tables.TestPosts, "test_id", testID, rowstore.Row{
		"reddit_post_url":  url,
		"status":           TestMonitoring,
		"url_submitted_at": formatTime(at),
	})
}

// RecordTestPoll stamps last_polled_at and the running forwarded count.
func (s *Store) RecordTestPoll(ctx context.Context, testID string, at time.Time, commentsSent int) (int, error) {
	return s.rs.UpdateRowsByKey(ctx, s.tables.TestPosts, "test_id", testID, rowstore.Row{
		"last_polled_at": formatTime(at),
		"comments_sent":  strconv.Itoa(commentsSent),
	})
}

// Metrics

// AppendMetric adds an engagement snapshot row.
func (s *Store) AppendMetric(ctx context.Context, m Metric) error {
	return s.rs.AppendRow(ctx, s.tables.Metrics, rowstore.Row{
		"metric_id":            m.ID,
		"post_id":              m.PostID,
		"reddit_post_url":      m.PostURL,
		"post_title":           m.PostTitle,
		"post_created_at":      formatTime(m.PostCreatedAt),
		"post_upvotes":         strconv.Itoa(m.PostUpvotes),
		"post_comments_count":  strconv.Itoa(m.PostCommentsCount),
		"comment_id":           m.CommentID,
		"comment_author":       m.CommentAuthor,
		"comment_created_at":   formatTime(m.CommentCreatedAt),
		"comment_upvotes":      strconv.Itoa(m.CommentUpvotes),
		"reply_task_id":        m.ReplyTaskID,
		"reply_author":         m.ReplyAuthor,
		"reply_posted_at":      formatTime(m.ReplyPostedAt),
		"reply_upvotes":        strconv.Itoa(m.ReplyUpvotes),
		"response_time_hours":  strconv.FormatFloat(m.ResponseTimeHours, 'f', 2, 64),
		"assigned_member_name": m.AssignedMember,
		"team_id":              m.TeamID,
		"metric_date":          m.Date,
	})
}

// TrackedTaskIDs returns the reply-task ids that already have a metrics row.
func (s *Store) TrackedTaskIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.rs.ReadRows(ctx, s.tables.Metrics)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		if id := r["reply_task_id"]; id != "" {
			out[id] = true
		}
	}
	return out, nil
}
