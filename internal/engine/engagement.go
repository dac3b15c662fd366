package engine

import (
	"context"
	"time"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/store"
)

// collectEngagement snapshots post and comment scores for dispatched
// tasks that have no metrics row yet. Returns the number of rows added.
func (e *Engine) collectEngagement(ctx context.Context) (int, error) {
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return 0, err
	}
	tracked, err := e.store.TrackedTaskIDs(ctx)
	if err != nil {
		return 0, err
	}
	posts, err := e.store.ListPosts(ctx)
	if err != nil {
		return 0, err
	}
	postByID := make(map[string]store.Post, len(posts))
	for _, p := range posts {
		postByID[p.ID] = p
	}

	added := 0
	for _, task := range tasks {
		if task.Status != store.TaskSent || tracked[task.ID] {
			continue
		}
		post, ok := postByID[task.PostID]
		if !ok || post.URL == "" {
			continue
		}
		pc, err := e.source.Context(ctx, post.URL)
		if err != nil {
			e.log.Warn("engagement: post context unavailable", "post", task.PostID, "error", err)
			continue
		}
		cs, err := e.source.CommentScore(ctx, task.CommentURL, task.CommentID)
		if err != nil {
			e.log.Warn("engagement: comment score unavailable", "task", task.ID, "error", err)
			continue
		}

		var responseHours float64
		if !task.ReplyPostedAt.IsZero() && cs.CreatedUTC > 0 {
			commentAt := time.Unix(int64(cs.CreatedUTC), 0).UTC()
			responseHours = task.ReplyPostedAt.Sub(commentAt).Hours()
			if responseHours < 0 {
				responseHours = 0
			}
		}
		m := store.Metric{
			ID:                e.newID(),
			PostID:            task.PostID,
			PostURL:           post.URL,
			PostTitle:         pc.Title,
			PostUpvotes:       pc.Score,
			PostCommentsCount: pc.CommentCount,
			CommentID:         task.CommentID,
			CommentAuthor:     task.CommentAuthor,
			CommentUpvotes:    cs.Score,
			ReplyTaskID:       task.ID,
			ReplyAuthor:       task.AssignedMember,
			ReplyPostedAt:     task.ReplyPostedAt,
			ResponseTimeHours: responseHours,
			AssignedMember:    task.AssignedMember,
			TeamID:            post.TeamID,
			Date:              e.todayLocal(),
		}
		if pc.CreatedUTC > 0 {
			m.PostCreatedAt = time.Unix(int64(pc.CreatedUTC), 0).UTC()
		}
		if cs.CreatedUTC > 0 {
			m.CommentCreatedAt = time.Unix(int64(cs.CreatedUTC), 0).UTC()
		}
		if err := e.store.AppendMetric(ctx, m); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
