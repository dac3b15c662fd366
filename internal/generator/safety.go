package generator

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Reply length bounds in characters. Too short reads as broken output,
// too long reads as an essay nobody asked for.
const (
	MinReplyLength = 10
	MaxReplyLength = 1500
)

// blocklistPatterns must never appear in a dispatched reply.
var blocklistPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(buy now|click here|use (my|this) (link|code))\b`),
	regexp.MustCompile(`(?i)\b(discount code|promo code|affiliate)\b`),
	regexp.MustCompile(`(?i)https?://\S+`),
	regexp.MustCompile(`(?i)\b(kys|kill yourself|neck yourself)\b`),
	regexp.MustCompile(`(?i)\b(retard(ed)?|f[a@]gg?[o0]t|n[i1]gg?[e3a]r)\b`),
	regexp.MustCompile(`(?i)\b(stfu|gtfo|go die)\b`),
}

// leakPatterns indicate the model broke character or echoed instructions.
var leakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)as an ai|as a language model|i'?m an ai`),
	regexp.MustCompile(`(?i)i cannot|i can'?t .*(generate|help|assist)`),
	regexp.MustCompile(`(?i)(openai|chatgpt|gpt-4|gpt-3)`),
	regexp.MustCompile(`(?i)here'?s (a|the) (suggested|generated) (reply|response)`),
	regexp.MustCompile(`(?i)^\s*sure[,!]?\s*(here|i)`),
}

// CheckSafety returns a non-empty reason when text must not be dispatched.
func CheckSafety(text string) string {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return "empty_reply"
	}
	if len(stripped) < MinReplyLength {
		return "too_short"
	}
	if len(stripped) > MaxReplyLength {
		return "too_long"
	}
	for _, p := range blocklistPatterns {
		if p.MatchString(stripped) {
			return "blocklist_match: " + p.String()
		}
	}
	for _, p := range leakPatterns {
		if p.MatchString(stripped) {
			return "instruction_leak: " + p.String()
		}
	}
	return ""
}

// IsUnsafe is the dispatch-gate predicate over CheckSafety.
func IsUnsafe(text string) bool { return CheckSafety(text) != "" }

// Fallback is dispatched when generation fails or never passes safety.
const Fallback = "yeah that's a good point. in my experience the practical impact " +
	"shows up when you test it with real constraints. curious how you'd approach it?"

// Signature normalizes a suggestion for duplicate detection.
func Signature(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(text))), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}
