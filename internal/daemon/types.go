package daemon

import (
	"time"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/config"
)

// StartOptions configures the daemon (home, config, cadence, ops server).
type StartOptions struct {
	Home   string
	Config config.Config

	// Interval overrides Config.PollInterval when positive.
	Interval time.Duration
	// RunFor bounds the daemon's wall-clock lifetime; zero means run
	// until signalled. With a budget, ticks run on a short cadence so
	// the final tick lands close to the deadline.
	RunFor time.Duration
	// Once runs a single tick and exits.
	Once   bool
	DryRun bool

	OpsPort   int
	PprofAddr string
}

// StatusInfo is the result of Status (running or not, PID, ops addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
