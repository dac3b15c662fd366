//go:build windows

package daemon

import (
	"fmt"
	"os"
	"path/filepath"
)

type daemonLock struct {
	path string
	f    *os.File
}

// Windows has no flock; an exclusively-created lock file approximates it.
func acquireLock(lockFile string) (*daemonLock, error) {
	if err := os.MkdirAll(filepath.Dir(lockFile), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("replybot is already running (lock file %s exists)", lockFile)
		}
		return nil, err
	}
	return &daemonLock{path: lockFile, f: f}, nil
}

func (l *daemonLock) release() {
	if l == nil {
		return
	}
	if l.f != nil {
		_ = l.f.Close()
	}
	_ = os.Remove(l.path)
}
