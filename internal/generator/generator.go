// Package generator produces candidate reply text through an
// OpenAI-compatible chat-completions API and gates it with content
// safety checks. Generation may fail; callers substitute Fallback.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/retry"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/source"
)

// maxGenerationAttempts bounds regeneration when output fails safety.
const maxGenerationAttempts = 3

// Generator produces candidate reply text. An empty result means
// generation failed; the caller decides on fallback.
type Generator interface {
	Generate(ctx context.Context, post *source.PostContext, comment source.Comment, recent []string) string
}

// OpenAI calls an OpenAI-compatible chat-completions endpoint.
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	policy  retry.Policy
	logger  *slog.Logger
}

// NewOpenAI returns a generator for the given endpoint. model defaults
// to gpt-4o-mini.
func NewOpenAI(baseURL, apiKey, model string, logger *slog.Logger) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
		policy:  retry.DefaultPolicy,
		logger:  logger,
	}
}

// NewOpenAIForTest returns a generator pointed at a test server.
func NewOpenAIForTest(baseURL, model string, client *http.Client, logger *slog.Logger) *OpenAI {
	g := NewOpenAI(baseURL, "test-key", model, logger)
	g.policy = retry.Policy{Attempts: 2, Delay: time.Millisecond}
	if client != nil {
		g.client = client
	}
	return g
}

// Generate builds the prompt and asks the model, regenerating up to
// maxGenerationAttempts times when output fails safety. Returns "" when
// no safe reply was produced.
func (g *OpenAI) Generate(ctx context.Context, post *source.PostContext, comment source.Comment, recent []string) string {
	if g.apiKey == "" {
		g.logger.Warn("generator disabled, no api key")
		return ""
	}
	prompt := buildPrompt(post, comment, recent)
	for attempt := 1; attempt <= maxGenerationAttempts; attempt++ {
		reply, err := g.complete(ctx, prompt)
		if err != nil {
			g.logger.Warn("generation failed", "attempt", attempt, "error", err)
			if retry.KindOf(err) == retry.KindPermanent {
				return ""
			}
			continue
		}
		reply = lowercaseStart(reply)
		reason := CheckSafety(reply)
		if reason == "" {
			return reply
		}
		g.logger.Warn("generated reply failed safety", "attempt", attempt, "reason", reason)
		prompt += fmt.Sprintf("\n\n(Previous attempt was rejected: %s. Try again differently.)", reason)
	}
	return ""
}

func (g *OpenAI) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.8,
		"max_tokens":  200,
	}
	var reply string
	err := retry.Do(ctx, g.policy, func() error {
		body, err := json.Marshal(reqBody)
		if err != nil {
			return retry.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
		resp, err := g.client.Do(req)
		if err != nil {
			return retry.Transient(err)
		}
		defer func() { _ = resp.Body.Close() }()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return retry.Transient(err)
		}
		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return retry.Transient(fmt.Errorf("llm status %d", resp.StatusCode))
		default:
			// Auth, quota, bad request: retrying cannot help.
			return retry.Permanent(fmt.Errorf("llm status %d: %s", resp.StatusCode, bytes.TrimSpace(raw)))
		}
		var apiResp struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(raw, &apiResp); err != nil {
			return retry.Permanent(fmt.Errorf("decode llm response: %w", err))
		}
		if len(apiResp.Choices) == 0 || strings.TrimSpace(apiResp.Choices[0].Message.Content) == "" {
			return retry.Transient(fmt.Errorf("llm returned no content"))
		}
		reply = strings.TrimSpace(apiResp.Choices[0].Message.Content)
		return nil
	})
	return reply, err
}
