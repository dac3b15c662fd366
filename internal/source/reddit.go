package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/retry"
)

// Reddit reads posts and comments through Reddit's public JSON endpoints
// (the post permalink with a .json suffix). No OAuth is required for
// read-only access as long as a descriptive User-Agent is sent.
type Reddit struct {
	base      string // scheme://host override for tests; empty for reddit.com
	userAgent string
	client    *http.Client
	policy    retry.Policy
}

// NewReddit returns a Reddit source. userAgent must be non-empty per
// Reddit's API rules.
func NewReddit(userAgent string) *Reddit {
	return &Reddit{
		userAgent: userAgent,
		client:    &http.Client{Timeout: 20 * time.Second},
		policy:    retry.DefaultPolicy,
	}
}

// NewRedditForTest returns a Reddit source pointed at a test server.
func NewRedditForTest(baseURL, userAgent string, client *http.Client) *Reddit {
	r := NewReddit(userAgent)
	r.base = strings.TrimSuffix(baseURL, "/")
	r.policy = retry.Policy{Attempts: 2, Delay: time.Millisecond}
	if client != nil {
		r.client = client
	}
	return r
}

// normalizeURL canonicalizes a submission URL to
// https://www.reddit.com/<path>/ so that .json can be appended.
func normalizeURL(postURL string) string {
	u, err := url.Parse(postURL)
	if err != nil {
		return postURL
	}
	path := strings.TrimRight(u.Path, "/")
	if strings.Contains(path, "/comments/") {
		return "https://www.reddit.com" + path + "/"
	}
	return postURL
}

func (r *Reddit) jsonURL(postURL string) string {
	n := normalizeURL(postURL)
	if r.base != "" {
		if u, err := url.Parse(n); err == nil {
			n = r.base + strings.TrimRight(u.Path, "/") + "/"
		}
	}
	return strings.TrimRight(n, "/") + ".json"
}

// listing mirrors the two-element array Reddit returns for a post page:
// the submission listing followed by the comment tree.
type listing struct {
	Data struct {
		Children []child `json:"children"`
	} `json:"data"`
}

type child struct {
	Kind string    `json:"kind"`
	Data childData `json:"data"`
}

type childData struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	SelfText          string          `json:"selftext"`
	Body              string          `json:"body"`
	Subreddit         string          `json:"subreddit"`
	Author            string          `json:"author"`
	Permalink         string          `json:"permalink"`
	CreatedUTC        float64         `json:"created_utc"`
	Score             int             `json:"score"`
	NumComments       int             `json:"num_comments"`
	RemovedByCategory string          `json:"removed_by_category"`
	Replies           json.RawMessage `json:"replies"`
}

func (r *Reddit) fetchPage(ctx context.Context, postURL string) ([]listing, error) {
	var page []listing
	err := retry.Do(ctx, r.policy, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.jsonURL(postURL), nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("User-Agent", r.userAgent)
		resp, err := r.client.Do(req)
		if err != nil {
			return retry.Transient(err)
		}
		defer func() { _ = resp.Body.Close() }()
		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
			return retry.Deleted(fmt.Errorf("%s: %w", postURL, ErrDeleted))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return retry.Transient(fmt.Errorf("reddit status %d", resp.StatusCode))
		default:
			return retry.Permanent(fmt.Errorf("reddit status %d", resp.StatusCode))
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return retry.Transient(err)
		}
		page = nil
		if err := json.Unmarshal(body, &page); err != nil {
			return retry.Permanent(fmt.Errorf("decode reddit page: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(page) < 1 || len(page[0].Data.Children) == 0 {
		return nil, retry.Deleted(fmt.Errorf("%s: %w", postURL, ErrDeleted))
	}
	return page, nil
}

func submissionGone(d childData) bool {
	if d.RemovedByCategory != "" {
		return true
	}
	return d.Author == "[deleted]" && (d.SelfText == "[removed]" || d.SelfText == "[deleted]")
}

// IsAlive reports whether the post still exists and is visible.
func (r *Reddit) IsAlive(ctx context.Context, postURL string) bool {
	_, err := r.Context(ctx, postURL)
	return err == nil
}

// Context returns the post's metadata.
func (r *Reddit) Context(ctx context.Context, postURL string) (*PostContext, error) {
	page, err := r.fetchPage(ctx, postURL)
	if err != nil {
		return nil, err
	}
	d := page[0].Data.Children[0].Data
	if submissionGone(d) {
		return nil, retry.Deleted(fmt.Errorf("%s: %w", postURL, ErrDeleted))
	}
	return &PostContext{
		ID:           d.ID,
		Title:        d.Title,
		Body:         d.SelfText,
		Subreddit:    d.Subreddit,
		URL:          "https://www.reddit.com" + d.Permalink,
		Author:       d.Author,
		CreatedUTC:   d.CreatedUTC,
		Score:        d.Score,
		CommentCount: d.NumComments,
	}, nil
}

// FetchNewComments returns unseen comments newer than minCreatedUTC,
// ascending by creation time. Deleted posts yield an empty slice.
func (r *Reddit) FetchNewComments(ctx context.Context, postURL string, known map[string]bool, minCreatedUTC float64) ([]Comment, error) {
	page, err := r.fetchPage(ctx, postURL)
	if err != nil {
		if retry.KindOf(err) == retry.KindDeleted {
			return nil, nil
		}
		return nil, err
	}
	postID := page[0].Data.Children[0].Data.ID
	var out []Comment
	if len(page) > 1 {
		out = flattenComments(page[1].Data.Children, postID, known, minCreatedUTC, nil)
	}
	// Ascending, stable on equal timestamps: tree order breaks ties.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedUTC < out[j-1].CreatedUTC; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func flattenComments(children []child, postID string, known map[string]bool, minCreatedUTC float64, acc []Comment) []Comment {
	for _, c := range children {
		if c.Kind != "t1" {
			continue
		}
		d := c.Data
		if !known[d.ID] && d.CreatedUTC > minCreatedUTC {
			author := d.Author
			if author == "" {
				author = "[deleted]"
			}
			acc = append(acc, Comment{
				ID:         d.ID,
				PostID:     postID,
				Author:     author,
				Body:       d.Body,
				CreatedUTC: d.CreatedUTC,
				URL:        "https://www.reddit.com" + d.Permalink,
			})
		}
		if len(d.Replies) > 0 && d.Replies[0] == '{' {
			var nested listing
			if err := json.Unmarshal(d.Replies, &nested); err == nil {
				acc = flattenComments(nested.Data.Children, postID, known, minCreatedUTC, acc)
			}
		}
	}
	return acc
}

// CommentScore returns the engagement snapshot for commentID on the
// comment's permalink page.
func (r *Reddit) CommentScore(ctx context.Context, commentURL, commentID string) (*CommentScore, error) {
	page, err := r.fetchPage(ctx, commentURL)
	if err != nil {
		return nil, err
	}
	for _, l := range page {
		if s := findComment(l.Data.Children, commentID); s != nil {
			return s, nil
		}
	}
	return nil, retry.Permanent(fmt.Errorf("comment %s not found", commentID))
}

func findComment(children []child, commentID string) *CommentScore {
	for _, c := range children {
		if c.Kind == "t1" && c.Data.ID == commentID {
			return &CommentScore{ID: c.Data.ID, Score: c.Data.Score, CreatedUTC: c.Data.CreatedUTC}
		}
		if len(c.Data.Replies) > 0 && c.Data.Replies[0] == '{' {
			var nested listing
			if err := json.Unmarshal(c.Data.Replies, &nested); err == nil {
				if s := findComment(nested.Data.Children, commentID); s != nil {
					return s
				}
			}
		}
	}
	return nil
}
