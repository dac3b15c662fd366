//go:build linux || darwin

package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// setDaemonSysProcAttr detaches the child into its own session so it
// outlives the terminal that spawned it.
func setDaemonSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// processExists checks the pid with a null signal.
func processExists(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func signalTerm(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
