package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/source"
)

func TestCheckSafety(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		text string
		safe bool
	}{
		{"ok", "honestly that matches what i've seen in production too", true},
		{"empty", "   ", false},
		{"too short", "yes", false},
		{"too long", strings.Repeat("a", MaxReplyLength+1), false},
		{"url", "check this out https://spam.example/deal", false},
		{"sales", "Buy now and save big on everything.", false},
		{"promo", "use my code SAVE20 today, it really works", false},
		{"leak ai", "as an AI I cannot really say much here", false},
		{"leak model", "here's a suggested reply you could use today", false},
		{"leak sure", "Sure, here you go with the reply text", false},
		{"slur", "that idea is retarded honestly speaking", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := !IsUnsafe(tc.text); got != tc.safe {
				t.Errorf("IsUnsafe(%q): safe = %v, want %v (reason %q)", tc.text, got, tc.safe, CheckSafety(tc.text))
			}
		})
	}
}

func TestFallbackIsSafe(t *testing.T) {
	t.Parallel()
	if IsUnsafe(Fallback) {
		t.Fatalf("fallback must pass safety: %q", CheckSafety(Fallback))
	}
}

func TestSignatureNormalizes(t *testing.T) {
	t.Parallel()
	a := Signature("  Good   Point\tthere ")
	b := Signature("good point there")
	if a != b {
		t.Fatalf("%q != %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("len = %d", len(a))
	}
	if a == Signature("different text entirely") {
		t.Fatal("distinct texts should not collide")
	}
}

func TestLowercaseStart(t *testing.T) {
	t.Parallel()
	if got := lowercaseStart("Yeah that works"); got != "yeah that works" {
		t.Fatalf("got %q", got)
	}
	if got := lowercaseStart("  already fine"); got != "already fine" {
		t.Fatalf("got %q", got)
	}
}

func testGenerator(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIForTest(srv.URL, "test-model", srv.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func completion(text string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": text}},
		},
	})
	return string(b)
}

func sampleInput() (*source.PostContext, source.Comment) {
	return &source.PostContext{Title: "Launch thread", Body: "We shipped."},
		source.Comment{Author: "bob", Body: "does it scale?"}
}

func TestGenerateSuccess(t *testing.T) {
	t.Parallel()
	var reqBody map[string]any
	g := testGenerator(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", req.URL.Path)
		}
		if auth := req.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("auth = %q", auth)
		}
		_ = json.NewDecoder(req.Body).Decode(&reqBody)
		fmt.Fprint(w, completion("Honestly it held up fine for us under real load"))
	})
	post, comment := sampleInput()
	got := g.Generate(context.Background(), post, comment, []string{"earlier suggestion"})
	if got != "honestly it held up fine for us under real load" {
		t.Fatalf("got %q", got)
	}
	if reqBody["model"] != "test-model" {
		t.Fatalf("model = %v", reqBody["model"])
	}
	msgs := reqBody["messages"].([]any)
	user := msgs[1].(map[string]any)["content"].(string)
	if !strings.Contains(user, "does it scale?") || !strings.Contains(user, "earlier suggestion") {
		t.Fatalf("prompt missing context: %s", user)
	}
}

func TestGenerateRegeneratesOnUnsafe(t *testing.T) {
	t.Parallel()
	calls := 0
	g := testGenerator(t, func(w http.ResponseWriter, req *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, completion("buy now at https://spam.example"))
			return
		}
		fmt.Fprint(w, completion("fair point, we hit the same wall last quarter"))
	})
	post, comment := sampleInput()
	got := g.Generate(context.Background(), post, comment, nil)
	if got != "fair point, we hit the same wall last quarter" {
		t.Fatalf("got %q", got)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestGenerateGivesUpAfterAttempts(t *testing.T) {
	t.Parallel()
	calls := 0
	g := testGenerator(t, func(w http.ResponseWriter, req *http.Request) {
		calls++
		fmt.Fprint(w, completion("visit https://spam.example for the answer"))
	})
	post, comment := sampleInput()
	if got := g.Generate(context.Background(), post, comment, nil); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
	if calls != maxGenerationAttempts {
		t.Fatalf("calls = %d, want %d", calls, maxGenerationAttempts)
	}
}

func TestGenerateStopsOnAuthFailure(t *testing.T) {
	t.Parallel()
	calls := 0
	g := testGenerator(t, func(w http.ResponseWriter, req *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	post, comment := sampleInput()
	if got := g.Generate(context.Background(), post, comment, nil); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on auth)", calls)
	}
}

func TestGenerateNoKey(t *testing.T) {
	t.Parallel()
	g := NewOpenAI("", "", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	post, comment := sampleInput()
	if got := g.Generate(context.Background(), post, comment, nil); got != "" {
		t.Fatalf("got %q, want empty without key", got)
	}
}
