// Package pidfile manages the daemon-mode PID file lifecycle and the
// signal handling described in spec §5/§6: HUP ignored, INT/TERM
// unlink the PID file and exit 255, CHLD reaped implicitly.
package pidfile

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
)

// File represents a written PID file, removed once on shutdown.
type File struct {
	path string
}

// Write creates path containing the current process's PID. An empty
// path is a no-op (the -p flag is optional).
func Write(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("pidfile: write %s: %w", path, err)
	}
	return &File{path: path}, nil
}

// Remove deletes the PID file if one was written. Safe to call on a
// no-op File.
func (f *File) Remove() {
	if f == nil || f.path == "" {
		return
	}
	_ = os.Remove(f.path)
}

// WatchSignals installs the process-wide signal policy of spec §6:
// HUP is ignored, INT/TERM remove the PID file and terminate the
// process with exit code 255, CHLD is left to the runtime (Go's
// goroutine-per-connection model has no child processes to reap).
// It blocks until a terminating signal arrives, then exits the
// process — callers run it in its own goroutine.
func WatchSignals(pid *File) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for sig := range ch {
		switch sig {
		case syscall.SIGHUP:
			continue
		case syscall.SIGINT, syscall.SIGTERM:
			pid.Remove()
			os.Exit(255)
		}
	}
}
