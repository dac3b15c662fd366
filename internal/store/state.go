package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
)

// Scalar-state key prefixes. Keys are flat strings so that a human can
// read and repair them in the backing table.
const (
	keyPostCursor    = "last_seen_created_utc_"
	keyTeamCursor    = "reply_cursor_team_"
	keyReassignCount = "reassign_count_"
	keyUpdateOffset  = "sender_update_offset"
	keyReminderDate  = "last_reminder_date"
	keyMetricsCycle  = "metrics_cycle"
	keyTestKnown     = "test_known_comments_"
)

// PostCursor returns the per-post comment-time cursor in epoch seconds.
// Missing or malformed values read as 0.
func (s *Store) PostCursor(ctx context.Context, postID string) (float64, error) {
	return s.scalarFloat(ctx, keyPostCursor+postID)
}

// SetPostCursor persists the per-post comment-time cursor.
func (s *Store) SetPostCursor(ctx context.Context, postID string, v float64) error {
	return s.rs.SetScalar(ctx, keyPostCursor+postID, strconv.FormatFloat(v, 'f', -1, 64))
}

// TeamCursor returns the team's rotation cursor index.
func (s *Store) TeamCursor(ctx context.Context, teamID string) (int, error) {
	return s.scalarInt(ctx, keyTeamCursor+teamID)
}

// SetTeamCursor persists the team's rotation cursor index.
func (s *Store) SetTeamCursor(ctx context.Context, teamID string, v int) error {
	return s.rs.SetScalar(ctx, keyTeamCursor+teamID, strconv.Itoa(v))
}

// ReassignCount returns the task's reassignment counter.
func (s *Store) ReassignCount(ctx context.Context, taskID string) (int, error) {
	return s.scalarInt(ctx, keyReassignCount+taskID)
}

// SetReassignCount persists the task's reassignment counter.
func (s *Store) SetReassignCount(ctx context.Context, taskID string, v int) error {
	return s.rs.SetScalar(ctx, keyReassignCount+taskID, strconv.Itoa(v))
}

// UpdateOffset returns the sender inbox offset (next update id to fetch).
func (s *Store) UpdateOffset(ctx context.Context) (int64, error) {
	v, err := s.rs.GetScalar(ctx, keyUpdateOffset)
	if err != nil {
		return 0, err
	}
	n, _ := strconv.ParseInt(v, 10, 64)
	return n, nil
}

// SetUpdateOffset persists the sender inbox offset.
func (s *Store) SetUpdateOffset(ctx context.Context, v int64) error {
	return s.rs.SetScalar(ctx, keyUpdateOffset, strconv.FormatInt(v, 10))
}

// ReminderDate returns the local date (YYYY-MM-DD) reminders last ran.
func (s *Store) ReminderDate(ctx context.Context) (string, error) {
	return s.rs.GetScalar(ctx, keyReminderDate)
}

// SetReminderDate persists the local date reminders last ran.
func (s *Store) SetReminderDate(ctx context.Context, date string) error {
	return s.rs.SetScalar(ctx, keyReminderDate, date)
}

// MetricsCycle returns the tick counter gating engagement collection.
func (s *Store) MetricsCycle(ctx context.Context) (int, error) {
	return s.scalarInt(ctx, keyMetricsCycle)
}

// SetMetricsCycle persists the tick counter gating engagement collection.
func (s *Store) SetMetricsCycle(ctx context.Context, v int) error {
	return s.rs.SetScalar(ctx, keyMetricsCycle, strconv.Itoa(v))
}

// TestKnownComments returns the comment ids already forwarded for a
// test post. Stored comma-joined so a human can inspect the key.
func (s *Store) TestKnownComments(ctx context.Context, testID string) (map[string]bool, error) {
	v, err := s.rs.GetScalar(ctx, keyTestKnown+testID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, id := range strings.Split(v, ",") {
		if id != "" {
			out[id] = true
		}
	}
	return out, nil
}

// AddTestKnownComments merges ids into the test post's forwarded set.
func (s *Store) AddTestKnownComments(ctx context.Context, testID string, ids []string) error {
	known, err := s.TestKnownComments(ctx, testID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id != "" {
			known[id] = true
		}
	}
	all := make([]string, 0, len(known))
	for id := range known {
		all = append(all, id)
	}
	sort.Strings(all)
	return s.rs.SetScalar(ctx, keyTestKnown+testID, strings.Join(all, ","))
}

func (s *Store) scalarInt(ctx context.Context, key string) (int, error) {
	v, err := s.rs.GetScalar(ctx, key)
	if err != nil {
		return 0, err
	}
	n, _ := strconv.Atoi(v)
	return n, nil
}

func (s *Store) scalarFloat(ctx context.Context, key string) (float64, error) {
	v, err := s.rs.GetScalar(ctx, key)
	if err != nil {
		return 0, err
	}
	f, _ := strconv.ParseFloat(v, 64)
	return f, nil
}
