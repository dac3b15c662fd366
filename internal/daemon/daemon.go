// Package daemon runs the reply bot as a long-lived process: a
// singleton flock-guarded tick loop with pid/addr files, an ops HTTP
// server, and start/stop/status process management.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/metrics"
)

const defaultOpsPort = 8318

// StartForeground runs the daemon in the current process until the
// context is cancelled, the wall-clock budget expires, or (with Once)
// the single tick completes.
func StartForeground(ctx context.Context, opts StartOptions) error {
	if opts.Home == "" {
		return errors.New("home is required")
	}
	if opts.OpsPort == 0 {
		opts.OpsPort = defaultOpsPort
	}

	if err := os.MkdirAll(runDir(opts.Home), 0o755); err != nil {
		return err
	}

	// Singleton lock, released on exit.
	lock, err := acquireLock(lockPath(opts.Home))
	if err != nil {
		return err
	}
	defer lock.release()

	startPprof(opts.PprofAddr)

	app, err := NewApp(opts.Home, opts.Config, opts.DryRun)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	metricsHandler, err := metrics.InitMeterProvider(ctx, "replybot")
	if err != nil {
		slog.Warn("metrics init failed, /metrics disabled", "err", err)
		metricsHandler = nil
	} else if err := metrics.Init(ctx); err != nil {
		slog.Warn("metric instruments init failed", "err", err)
	}

	if opts.Once {
		stats, err := app.Engine.RunTick(ctx)
		if err != nil {
			return err
		}
		slog.Info("single tick complete", "tasks_created", stats.TasksCreated)
		return nil
	}

	// Write PID + addr files.
	pid := os.Getpid()
	if err := os.WriteFile(pidPath(opts.Home), []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return err
	}
	addr := fmt.Sprintf("0.0.0.0:%d", opts.OpsPort)
	_ = os.WriteFile(addrPath(opts.Home), []byte(addr+"\n"), 0o644)
	defer func() {
		_ = os.Remove(pidPath(opts.Home))
		_ = os.Remove(addrPath(opts.Home))
	}()

	// Early port check for clearer error.
	if err := checkPortAvailable(opts.OpsPort); err != nil {
		return err
	}

	state := &loopState{startedAt: time.Now()}
	srv := &http.Server{Addr: addr, Handler: opsMux(app, state, metricsHandler)}

	slog.Info("daemon starting", "addr", addr, "home", opts.Home, "dry_run", opts.DryRun)
	loopDone := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	go func() {
		runLoop(ctx, app, opts, state)
		close(loopDone)
	}()

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	select {
	case <-ctx.Done():
		shutdown()
		return ctx.Err()
	case <-loopDone:
		// Budget exhausted; a clean exit.
		shutdown()
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// StartBackground spawns the daemon as a detached child process and
// returns its pid.
func StartBackground(ctx context.Context, opts StartOptions) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(runDir(opts.Home), 0o755); err != nil {
		return 0, err
	}

	// Best-effort: refuse to start if already running.
	if st, _ := Status(ctx, opts.Home); st.Running {
		return 0, fmt.Errorf("replybot already running (pid %d)", st.PID)
	}

	logFile := filepath.Join(runDir(opts.Home), "replybot.log")
	stderr, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	// Kept open for child lifetime; closing here may break writes on some platforms.

	args := []string{
		"run",
		"--home", opts.Home,
		"--ops-port", strconv.Itoa(opts.OpsPort),
	}
	if opts.Interval > 0 {
		args = append(args, "--interval", opts.Interval.String())
	}
	if opts.RunFor > 0 {
		args = append(args, "--for", opts.RunFor.String())
	}
	if opts.DryRun {
		args = append(args, "--dry-run")
	}
	if opts.PprofAddr != "" {
		args = append(args, "--pprof", opts.PprofAddr)
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	setDaemonSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	// Wait briefly for pid file to appear or process to die.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := Status(ctx, opts.Home); st.Running {
			return st.PID, nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	// Fallback to started pid even if status isn't ready yet.
	return cmd.Process.Pid, nil
}

// Stop signals the running daemon and waits for it to exit. Returns
// false when no daemon is running.
func Stop(ctx context.Context, home string) (bool, error) {
	st, err := Status(ctx, home)
	if err != nil {
		return false, err
	}
	if !st.Running {
		return false, nil
	}

	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return false, err
	}
	if err := signalTerm(proc); err != nil {
		return false, err
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if st2, _ := Status(ctx, home); !st2.Running {
			return true, nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	_ = proc.Kill()
	return true, nil
}

// Status reads the pid file and checks the process is alive.
func Status(_ context.Context, home string) (StatusInfo, error) {
	pb, err := os.ReadFile(pidPath(home))
	if err != nil {
		return StatusInfo{Running: false}, nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(pb)))
	if err != nil || pid <= 0 {
		return StatusInfo{Running: false}, nil
	}

	if !processExists(pid) {
		_ = os.Remove(pidPath(home))
		return StatusInfo{Running: false}, nil
	}

	addr := ""
	if ab, err := os.ReadFile(addrPath(home)); err == nil {
		addr = strings.TrimSpace(string(ab))
	}
	if addr == "" {
		addr = "unknown"
	}
	return StatusInfo{Running: true, PID: pid, Addr: addr}, nil
}

func checkPortAvailable(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return fmt.Errorf("port %d is already in use", port)
	}
	_ = ln.Close()
	return nil
}
