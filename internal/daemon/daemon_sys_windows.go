//go:build windows

package daemon

import (
	"os"
	"os/exec"
)

func setDaemonSysProcAttr(_ *exec.Cmd) {}

func processExists(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = proc
	return true
}

func signalTerm(proc *os.Process) error {
	return proc.Kill()
}
