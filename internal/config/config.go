// Package config loads the bot configuration from the environment (with
// optional .env support) and carries the home directory through contexts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration for the reply bot. FromEnv
// validates store settings; the bot token is checked where the sender
// is actually built, so store-only commands work without it.
type Config struct {
	TelegramBotToken string
	RedditUserAgent  string

	// LLM (OpenAI-compatible chat completions API).
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// Supervisor resolution: the roster role "supervisor" wins; this name
	// is an exact-match fallback for rosters that predate the role column.
	SupervisorName string

	// Optional Slack incoming webhook for emergency operator alerts.
	SlackWebhookURL string

	Timezone            string
	DailyHour           int
	DailyMinute         int
	PollInterval        time.Duration
	ReplyTimeout        time.Duration
	MaxReassignAttempts int
	MaxConsecutiveErrs  int
	DryRun              bool

	// Store selection: "sqlite" (default, under home) or "postgres" (DSN or DATABASE_URL).
	DBDriver string
	DBURL    string

	// Table names in the row store.
	TeamsTable     string
	PostsTable     string
	ReplyTable     string
	MetricsTable   string
	TestPostsTable string
}

// LoadEnvFile loads a .env file into the process environment. Missing files
// are not an error; callers opt in explicitly.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// FromEnv builds a Config from the environment. It returns an error listing
// every missing required variable rather than failing on the first one.
func FromEnv() (Config, error) {
	cfg := Config{
		TelegramBotToken: strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		RedditUserAgent:  envOr("REDDIT_USER_AGENT", "replybot/1.0"),

		LLMBaseURL: envOr("BOT_LLM_URL", "https://api.openai.com"),
		LLMAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		LLMModel:   envOr("BOT_REPLY_MODEL", "gpt-4o-mini"),

		SupervisorName:  envOr("BOT_SUPERVISOR_NAME", "Alpha"),
		SlackWebhookURL: strings.TrimSpace(os.Getenv("BOT_SLACK_WEBHOOK_URL")),

		Timezone:            envOr("BOT_TIMEZONE", "Africa/Addis_Ababa"),
		DailyHour:           envInt("BOT_DAILY_HOUR", 8),
		DailyMinute:         envInt("BOT_DAILY_MINUTE", 0),
		PollInterval:        time.Duration(envInt("BOT_POLL_INTERVAL_MINUTES", 10)) * time.Minute,
		ReplyTimeout:        time.Duration(envInt("BOT_REPLY_TIMEOUT_HOURS", 4)) * time.Hour,
		MaxReassignAttempts: envInt("BOT_MAX_REASSIGN_ATTEMPTS", 2),
		MaxConsecutiveErrs:  envInt("BOT_MAX_CONSECUTIVE_ERRORS", 5),
		DryRun:              envBool("BOT_DRY_RUN", false),

		DBDriver: envOr("BOT_DB_DRIVER", "sqlite"),
		DBURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),

		TeamsTable:     envOr("BOT_TEAMS_TAB", "Teams"),
		PostsTable:     envOr("BOT_POSTING_TAB", "PostingPlan"),
		ReplyTable:     envOr("BOT_REPLY_QUEUE_TAB", "ReplyQueue"),
		MetricsTable:   envOr("BOT_METRICS_TAB", "Metrics"),
		TestPostsTable: envOr("BOT_TEST_POSTS_TAB", "TestPosts"),
	}

	if cfg.DBDriver == "postgres" && cfg.DBURL == "" {
		return Config{}, fmt.Errorf("missing required environment variable: DATABASE_URL (BOT_DB_DRIVER=postgres)")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return def
	}
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
