// Package source defines the comment source consumed by the engine and
// its Reddit implementation.
package source

import (
	"context"
	"errors"
)

// ErrDeleted reports that the source says the content is gone. Terminal
// for the post; callers stop polling it.
var ErrDeleted = errors.New("content deleted")

// Comment is one comment fetched from a post. Immutable once fetched.
type Comment struct {
	ID         string
	PostID     string
	Author     string
	Body       string
	CreatedUTC float64
	URL        string
	ParentID   string
}

// PostContext is post metadata used for prompting and engagement metrics.
type PostContext struct {
	ID           string
	Title        string
	Body         string
	Subreddit    string
	URL          string
	Author       string
	CreatedUTC   float64
	Score        int
	CommentCount int
}

// CommentScore is a comment's engagement snapshot.
type CommentScore struct {
	ID         string
	Score      int
	CreatedUTC float64
}

// Source fetches post context and comments.
type Source interface {
	// IsAlive reports whether the post still exists and is visible.
	IsAlive(ctx context.Context, postURL string) bool
	// Context returns post metadata, or an error tagged Deleted when the
	// post is gone.
	Context(ctx context.Context, postURL string) (*PostContext, error)
	// FetchNewComments returns comments absent from known and created
	// strictly after minCreatedUTC, sorted ascending by creation time.
	// A deleted post yields an empty slice, not an error.
	FetchNewComments(ctx context.Context, postURL string, known map[string]bool, minCreatedUTC float64) ([]Comment, error)
	// CommentScore returns the engagement snapshot for one comment.
	CommentScore(ctx context.Context, commentURL, commentID string) (*CommentScore, error)
}
