package daemon

import (
	"log/slog"
	"net/http"

	_ "net/http/pprof"
)

// startPprof serves the profiling endpoints on addr when set. The blank
// import registers them on http.DefaultServeMux, which this listener
// uses as-is; the ops server runs on its own mux.
func startPprof(addr string) {
	if addr == "" {
		return
	}
	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			slog.Info("pprof listener stopped", "addr", addr, "err", err)
		}
	}()
}
