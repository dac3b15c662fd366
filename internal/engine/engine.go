// Package engine is the reply-task orchestration core: comment dedup,
// round-robin assignment, the approval/dispatch state machine, timeout
// reassignment, and supervisor escalation, composed into one idempotent
// tick over the row store.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/alert"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/generator"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/metrics"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/sender"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/source"
	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/store"
)

// engagementEvery gates engagement collection to every Nth tick.
const engagementEvery = 3

// Options configures an Engine.
type Options struct {
	Store     *store.Store
	Source    source.Source
	Sender    sender.Sender
	Generator generator.Generator
	Alert     alert.Notifier // optional ops channel for emergencies
	Logger    *slog.Logger

	SupervisorName      string // fallback roster name for escalations
	ReplyTimeout        time.Duration
	MaxReassignAttempts int
	Timezone            *time.Location // local day for reminders
	DailyHour           int
	DailyMinute         int

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Engine runs the orchestration tick.
type Engine struct {
	store  *store.Store
	source source.Source
	sender sender.Sender
	gen    generator.Generator
	alert  alert.Notifier
	log    *slog.Logger

	supervisorName string
	replyTimeout   time.Duration
	maxReassign    int
	loc            *time.Location
	dailyHour      int
	dailyMinute    int

	now   func() time.Time
	newID func() string
}

// New builds an Engine from Options, filling in defaults.
func New(opts Options) *Engine {
	e := &Engine{
		store:          opts.Store,
		source:         opts.Source,
		sender:         opts.Sender,
		gen:            opts.Generator,
		alert:          opts.Alert,
		log:            opts.Logger,
		supervisorName: opts.SupervisorName,
		replyTimeout:   opts.ReplyTimeout,
		maxReassign:    opts.MaxReassignAttempts,
		loc:            opts.Timezone,
		dailyHour:      opts.DailyHour,
		dailyMinute:    opts.DailyMinute,
		now:            opts.Now,
		newID:          opts.NewID,
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.alert == nil {
		e.alert = alert.Noop{}
	}
	if e.replyTimeout <= 0 {
		e.replyTimeout = 4 * time.Hour
	}
	if e.maxReassign <= 0 {
		e.maxReassign = 2
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// TickStats summarizes one tick for logging and status reporting.
type TickStats struct {
	InboxProcessed   int
	RemindersSent    int
	TasksCreated     int
	TestCommentsSent int
	ApprovedSent     int
	TimeoutActions   int
	MetricsAdded     int
}

// RunTick runs one full orchestration pass. Item-level failures are
// logged and skipped; only store-level failures abort the tick. Safe to
// re-run after a crash: all writes are idempotent upserts keyed by ids.
func (e *Engine) RunTick(ctx context.Context) (TickStats, error) {
	start := e.now()
	var stats TickStats
	err := e.runTick(ctx, &stats)
	metrics.RecordTick(ctx, err == nil, e.now().Sub(start))
	if err != nil {
		return stats, err
	}
	e.log.Info("tick complete",
		"inbox", stats.InboxProcessed,
		"reminders", stats.RemindersSent,
		"tasks_created", stats.TasksCreated,
		"test_comments", stats.TestCommentsSent,
		"approved_sent", stats.ApprovedSent,
		"timeout_actions", stats.TimeoutActions,
		"metrics_added", stats.MetricsAdded,
	)
	return stats, nil
}

func (e *Engine) runTick(ctx context.Context, stats *TickStats) error {
	n, err := e.processInbox(ctx)
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	stats.InboxProcessed = n

	n, err = e.runDailyReminders(ctx)
	if err != nil {
		return fmt.Errorf("reminders: %w", err)
	}
	stats.RemindersSent = n

	n, err = e.pollAndDispatch(ctx)
	if err != nil {
		return fmt.Errorf("poll: %w", err)
	}
	stats.TasksCreated = n

	n, err = e.pollTestPosts(ctx)
	if err != nil {
		return fmt.Errorf("test posts: %w", err)
	}
	stats.TestCommentsSent = n

	n, err = e.processApprovals(ctx)
	if err != nil {
		return fmt.Errorf("approvals: %w", err)
	}
	stats.ApprovedSent = n

	n, err = e.checkTimeouts(ctx)
	if err != nil {
		return fmt.Errorf("timeouts: %w", err)
	}
	stats.TimeoutActions = n

	cycle, err := e.store.MetricsCycle(ctx)
	if err != nil {
		return fmt.Errorf("metrics cycle: %w", err)
	}
	cycle++
	if err := e.store.SetMetricsCycle(ctx, cycle); err != nil {
		return fmt.Errorf("metrics cycle: %w", err)
	}
	if cycle%engagementEvery == 0 {
		n, err = e.collectEngagement(ctx)
		if err != nil {
			return fmt.Errorf("engagement: %w", err)
		}
		stats.MetricsAdded = n
	}
	return nil
}

// validRecipient reports whether a roster handle looks like a chat id a
// send could reach. Group chats carry a leading minus.
func validRecipient(id string) bool {
	if id == "" {
		return false
	}
	for i, r := range id {
		if r == '-' && i == 0 && len(id) > 1 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (e *Engine) todayLocal() string {
	return e.now().In(e.loc).Format("2006-01-02")
}
