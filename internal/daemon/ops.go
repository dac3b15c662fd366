package daemon

import (
	"encoding/json"
	"net/http"
	"time"
)

// opsMux serves the operational endpoints: Prometheus metrics, a
// liveness check, and a JSON status snapshot of the tick loop.
func opsMux(app *App, state *loopState, metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		ticks, failures, lastTick, stats, lastErr := state.snapshot()
		payload := map[string]any{
			"dry_run":              app.DryRun,
			"ticks":                ticks,
			"consecutive_failures": failures,
			"uptime_seconds":       int(time.Since(state.startedAt).Seconds()),
			"last_tick": map[string]any{
				"at":              formatTickTime(lastTick),
				"inbox_processed": stats.InboxProcessed,
				"reminders_sent":  stats.RemindersSent,
				"tasks_created":   stats.TasksCreated,
				"test_comments":   stats.TestCommentsSent,
				"approved_sent":   stats.ApprovedSent,
				"timeout_actions": stats.TimeoutActions,
				"metrics_added":   stats.MetricsAdded,
			},
			"last_error": lastErr,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	})
	return mux
}

func formatTickTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
