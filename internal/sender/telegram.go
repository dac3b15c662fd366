package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/retry"
)

// Telegram talks to the Telegram Bot API.
type Telegram struct {
	base   string // https://api.telegram.org/bot<token>
	client *http.Client
	policy retry.Policy
	logger *slog.Logger
}

// NewTelegram returns a Telegram sender for the given bot token.
func NewTelegram(token string, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		base:   "https://api.telegram.org/bot" + token,
		client: &http.Client{Timeout: 20 * time.Second},
		policy: retry.DefaultPolicy,
		logger: logger,
	}
}

// NewTelegramForTest returns a sender pointed at a test server.
func NewTelegramForTest(baseURL string, client *http.Client, logger *slog.Logger) *Telegram {
	t := NewTelegram("", logger)
	t.base = baseURL
	t.policy = retry.Policy{Attempts: 2, Delay: time.Millisecond}
	if client != nil {
		t.client = client
	}
	return t
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (t *Telegram) call(ctx context.Context, method string, payload any, result any) error {
	return retry.Do(ctx, t.policy, func() error {
		var body io.Reader
		if payload != nil {
			b, err := json.Marshal(payload)
			if err != nil {
				return retry.Permanent(err)
			}
			body = bytes.NewReader(b)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+"/"+method, body)
		if err != nil {
			return retry.Permanent(err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := t.client.Do(req)
		if err != nil {
			return retry.Transient(err)
		}
		defer func() { _ = resp.Body.Close() }()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return retry.Transient(err)
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.Transient(fmt.Errorf("telegram %s: status %d", method, resp.StatusCode))
		}
		var env apiResponse
		if err := json.Unmarshal(raw, &env); err != nil {
			return retry.Permanent(fmt.Errorf("telegram %s: decode: %w", method, err))
		}
		if !env.OK {
			return retry.Permanent(fmt.Errorf("telegram %s: %s", method, env.Description))
		}
		if result != nil {
			if err := json.Unmarshal(env.Result, result); err != nil {
				return retry.Permanent(fmt.Errorf("telegram %s: decode result: %w", method, err))
			}
		}
		return nil
	})
}

// SendSafe delivers text to a chat id. Failures are logged, never raised.
func (t *Telegram) SendSafe(ctx context.Context, recipient, text string) bool {
	if recipient == "" {
		t.logger.Warn("send skipped, empty recipient")
		return false
	}
	err := t.call(ctx, "sendMessage", map[string]any{
		"chat_id":                  recipient,
		"text":                     text,
		"disable_web_page_preview": true,
	}, nil)
	if err != nil {
		t.logger.Error("telegram send failed", "recipient", recipient, "error", err)
		return false
	}
	return true
}

type updateResult struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			Username  string `json:"username"`
			FirstName string `json:"first_name"`
		} `json:"from"`
	} `json:"message"`
}

// Updates fetches inbox messages with update id >= offset. Updates
// without a text message are skipped but still advance the offset.
func (t *Telegram) Updates(ctx context.Context, offset int64) ([]Update, error) {
	payload := map[string]any{"timeout": 0}
	if offset > 0 {
		payload["offset"] = offset
	}
	var raw []updateResult
	if err := t.call(ctx, "getUpdates", payload, &raw); err != nil {
		return nil, err
	}
	out := make([]Update, 0, len(raw))
	for _, u := range raw {
		upd := Update{ID: u.UpdateID}
		if u.Message != nil {
			upd.Text = u.Message.Text
			upd.ChatID = strconv.FormatInt(u.Message.Chat.ID, 10)
			upd.Username = u.Message.From.Username
			upd.FirstName = u.Message.From.FirstName
		}
		out = append(out, upd)
	}
	return out, nil
}

// Me returns the authenticated bot account.
func (t *Telegram) Me(ctx context.Context) (*User, error) {
	var u struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := t.call(ctx, "getMe", nil, &u); err != nil {
		return nil, err
	}
	return &User{ID: u.ID, Username: u.Username}, nil
}
