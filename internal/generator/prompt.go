package generator

import (
	"fmt"
	"strings"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/source"
)

const systemPrompt = "You are a Reddit user crafting authentic, casual replies. " +
	"Always start replies with lowercase letters. " +
	"Never include URLs, never mention AI or ChatGPT, " +
	"never use hateful language."

// buildPrompt assembles the user prompt from post and comment context plus
// the last few suggestions to steer away from repetition.
func buildPrompt(post *source.PostContext, comment source.Comment, recent []string) string {
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	var recentBlock strings.Builder
	for _, r := range recent {
		fmt.Fprintf(&recentBlock, "- %s\n", r)
	}
	if recentBlock.Len() == 0 {
		recentBlock.WriteString("- (none)\n")
	}
	var title, body string
	if post != nil {
		title, body = post.Title, post.Body
	}
	return strings.TrimSpace(fmt.Sprintf(`
You are crafting a Reddit comment reply. Make it sound like a real Reddit user - casual, authentic, and conversational.

CRITICAL REQUIREMENTS:
- ALWAYS start with a lowercase letter (Reddit style)
- Vary the length: sometimes 1-2 sentences, sometimes 3-4, keep it dynamic
- Sound natural and conversational, not formal or corporate
- Use Reddit-typical phrases: "yeah", "honestly", "tbh", "imo", "that's fair", "good point", etc.
- Keep it short and punchy - avoid long paragraphs
- No sales language, no promotion, no marketing speak
- Don't repeat the comment text verbatim
- Vary wording compared to prior suggestions
- Match the tone: if comment is casual, be casual; if technical, be technical but still Reddit-style
- NEVER include URLs or links
- NEVER mention AI, ChatGPT, or language models
- NEVER use hateful, discriminatory, or violent language

Post context:
Title: %s
Body:
%s

Comment by u/%s:
%s

Recent replies to avoid repeating:
%s
Generate ONE reply that sounds like a real Reddit user wrote it. Start with lowercase.`,
		title, body, comment.Author, comment.Body, recentBlock.String()))
}

// lowercaseStart enforces the Reddit-style lowercase opener.
func lowercaseStart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] = r[0] + ('a' - 'A')
	}
	return string(r)
}
