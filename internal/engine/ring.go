package engine

import (
	"errors"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/store"
)

// ErrNoActiveMembers reports an empty rotation ring. Terminal for that
// team's tick; the caller escalates rather than retries.
var ErrNoActiveMembers = errors.New("no active members")

// NextMember picks ring[cursor mod len] and returns the advanced cursor.
// The ring is the team's active members in load order, never re-sorted,
// so a fixed roster and starting cursor always produce the same
// assignment sequence.
func NextMember(ring []store.Member, cursor int) (store.Member, int, error) {
	if len(ring) == 0 {
		return store.Member{}, cursor, ErrNoActiveMembers
	}
	if cursor < 0 {
		cursor = 0
	}
	idx := cursor % len(ring)
	return ring[idx], (idx + 1) % len(ring), nil
}
