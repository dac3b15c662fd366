package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/engine"
)

// budgetCadence is the tick interval used when the daemon runs under a
// wall-clock budget, so the final tick lands close to the deadline.
const budgetCadence = 90 * time.Second

const defaultMaxConsecutiveErrs = 5

// loopState is shared between the tick loop and the ops endpoints.
type loopState struct {
	mu        sync.Mutex
	startedAt time.Time
	ticks     int
	failures  int
	lastTick  time.Time
	lastStats engine.TickStats
	lastErr   string
}

func (s *loopState) record(at time.Time, stats engine.TickStats, err error) (failures int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	s.lastTick = at
	s.lastStats = stats
	if err != nil {
		s.failures++
		s.lastErr = err.Error()
	} else {
		s.failures = 0
		s.lastErr = ""
	}
	return s.failures
}

func (s *loopState) snapshot() (ticks, failures int, lastTick time.Time, stats engine.TickStats, lastErr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks, s.failures, s.lastTick, s.lastStats, s.lastErr
}

// runLoop ticks the engine until the context is cancelled or the
// wall-clock budget runs out. After maxErrs consecutive failures it
// fires an emergency escalation and resets the counter, so a persistent
// outage alerts once per streak rather than every tick.
func runLoop(ctx context.Context, app *App, opts StartOptions, state *loopState) {
	interval := opts.Interval
	if interval <= 0 {
		interval = app.Cfg.PollInterval
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	maxErrs := app.Cfg.MaxConsecutiveErrs
	if maxErrs <= 0 {
		maxErrs = defaultMaxConsecutiveErrs
	}

	var deadline time.Time
	if opts.RunFor > 0 {
		deadline = time.Now().Add(opts.RunFor)
		if interval > budgetCadence {
			interval = budgetCadence
		}
	}

	tick := func() {
		stats, err := app.Engine.RunTick(ctx)
		failures := state.record(time.Now(), stats, err)
		if err != nil {
			slog.Error("tick failed", "consecutive", failures, "err", err)
			if failures >= maxErrs {
				app.Engine.EmergencyEscalate(ctx, failures, err)
				state.mu.Lock()
				state.failures = 0
				state.mu.Unlock()
			}
		}
	}

	tick()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !deadline.IsZero() && now.After(deadline) {
				slog.Info("run budget exhausted, stopping")
				return
			}
			tick()
		}
	}
}
