package daemon

import "path/filepath"

// runDir holds the singleton's runtime artifacts: pid file, lock file,
// ops listen address, and the background daemon's log.
func runDir(home string) string {
	return filepath.Join(home, "run")
}

func pidPath(home string) string {
	return filepath.Join(runDir(home), "replybot.pid")
}

func lockPath(home string) string {
	return filepath.Join(runDir(home), "replybot.lock")
}

func addrPath(home string) string {
	return filepath.Join(runDir(home), "replybot.addr")
}
