package engine

import (
	"sort"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/source"
)

// SelectNew returns the comments absent from seen and created strictly
// after cursor, sorted ascending by creation time (stable, so ties keep
// input order and assignment order is reproducible across retries). The
// second result is the advanced cursor: max(cursor, newest returned).
//
// Pure and idempotent: the same seen set, cursor, and input always yield
// the same output, so a tick can be re-run after a partial failure.
func SelectNew(comments []source.Comment, seen map[string]bool, cursor float64) ([]source.Comment, float64) {
	var out []source.Comment
	next := cursor
	for _, c := range comments {
		if seen[c.ID] || c.CreatedUTC <= cursor {
			continue
		}
		out = append(out, c)
		if c.CreatedUTC > next {
			next = c.CreatedUTC
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedUTC < out[j].CreatedUTC
	})
	return out, next
}
