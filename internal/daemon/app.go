package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/alert"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/config"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/engine"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/generator"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/rowstore"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/rowstore/postgres"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/sender"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/source"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/store"
)

// App is the assembled bot: store, integrations, and the engine, ready
// to tick. Built once per process by NewApp.
type App struct {
	Home   string
	Cfg    config.Config
	Store  *store.Store
	Engine *engine.Engine
	Sender sender.Sender
	Source source.Source
	DryRun bool
}

// NewApp wires the configured store driver, the integrations, and the
// engine. In dry-run mode writes no-op at the row store and deliveries
// are logged instead of sent; reads still hit the real backend.
func NewApp(home string, cfg config.Config, dryRun bool) (*App, error) {
	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	st, err := OpenStore(home, cfg, dryRun)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, using UTC", "timezone", cfg.Timezone)
		loc = time.UTC
	}

	var snd sender.Sender = sender.NewTelegram(cfg.TelegramBotToken, slog.Default())
	if dryRun {
		snd = &sender.Dry{Inner: snd, Logger: slog.Default()}
	}

	var notifier alert.Notifier = alert.Noop{}
	if cfg.SlackWebhookURL != "" {
		notifier = &alert.SlackWebhook{WebhookURL: cfg.SlackWebhookURL}
	}

	src := source.NewReddit(cfg.RedditUserAgent)
	eng := engine.New(engine.Options{
		Store:               st,
		Source:              src,
		Sender:              snd,
		Generator:           generator.NewOpenAI(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, slog.Default()),
		Alert:               notifier,
		Logger:              slog.Default(),
		SupervisorName:      cfg.SupervisorName,
		ReplyTimeout:        cfg.ReplyTimeout,
		MaxReassignAttempts: cfg.MaxReassignAttempts,
		Timezone:            loc,
		DailyHour:           cfg.DailyHour,
		DailyMinute:         cfg.DailyMinute,
	})

	return &App{
		Home:   home,
		Cfg:    cfg,
		Store:  st,
		Engine: eng,
		Sender: snd,
		Source: src,
		DryRun: dryRun,
	}, nil
}

// OpenStore opens just the typed store, for commands that do not need
// the integrations. Readonly wires the same no-op write layer dry-run
// uses.
func OpenStore(home string, cfg config.Config, readonly bool) (*store.Store, error) {
	rs, err := openRowStore(home, cfg)
	if err != nil {
		return nil, err
	}
	if readonly {
		rs = rowstore.NewReadOnly(rs)
	}
	st := store.New(rs, store.Tables{
		Teams:     cfg.TeamsTable,
		Posts:     cfg.PostsTable,
		Replies:   cfg.ReplyTable,
		Metrics:   cfg.MetricsTable,
		TestPosts: cfg.TestPostsTable,
	})
	if err := st.Bootstrap(context.Background()); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func openRowStore(home string, cfg config.Config) (rowstore.Store, error) {
	switch cfg.DBDriver {
	case "", "sqlite":
		return rowstore.Open(home)
	case "postgres":
		return postgres.Open(cfg.DBURL)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}

// Close releases the app's store connections.
func (a *App) Close() error {
	return a.Store.Close()
}
