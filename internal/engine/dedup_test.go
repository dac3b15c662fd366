package engine

import (
	"reflect"
	"testing"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/source"
)

func ids(cs []source.Comment) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestSelectNewFiltersSeenAndCursor(t *testing.T) {
	t.Parallel()
	comments := []source.Comment{
		{ID: "c3", CreatedUTC: 300},
		{ID: "c1", CreatedUTC: 100},
		{ID: "c2", CreatedUTC: 200},
	}
	got, cursor := SelectNew(comments, map[string]bool{"c2": true}, 100)
	if !reflect.DeepEqual(ids(got), []string{"c3"}) {
		t.Fatalf("got %v", ids(got))
	}
	if cursor != 300 {
		t.Fatalf("cursor = %v, want 300", cursor)
	}
}

func TestSelectNewSortsAscendingStable(t *testing.T) {
	t.Parallel()
	comments := []source.Comment{
		{ID: "b", CreatedUTC: 200},
		{ID: "tie1", CreatedUTC: 100},
		{ID: "tie2", CreatedUTC: 100},
		{ID: "a", CreatedUTC: 50},
	}
	got, _ := SelectNew(comments, nil, 0)
	want := []string{"a", "tie1", "tie2", "b"}
	if !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("got %v, want %v", ids(got), want)
	}
}

func TestSelectNewIdempotent(t *testing.T) {
	t.Parallel()
	comments := []source.Comment{
		{ID: "c1", CreatedUTC: 100},
		{ID: "c2", CreatedUTC: 200},
	}
	seen := map[string]bool{"c1": true}
	first, cur1 := SelectNew(comments, seen, 0)
	second, cur2 := SelectNew(comments, seen, 0)
	if !reflect.DeepEqual(ids(first), ids(second)) || cur1 != cur2 {
		t.Fatalf("not idempotent: %v/%v vs %v/%v", ids(first), cur1, ids(second), cur2)
	}
}

func TestSelectNewCursorNeverRegresses(t *testing.T) {
	t.Parallel()
	got, cursor := SelectNew([]source.Comment{{ID: "old", CreatedUTC: 50}}, nil, 500)
	if len(got) != 0 {
		t.Fatalf("got %v", ids(got))
	}
	if cursor != 500 {
		t.Fatalf("cursor = %v, want unchanged 500", cursor)
	}
}
