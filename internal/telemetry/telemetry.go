// Package telemetry sets up the process-wide structured logger (spec
// §6, SPEC_FULL §6): stderr by default, a rotated file when
// Config.LogFile is set.
package telemetry

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how the process logs.
type Config struct {
	// LogFile is the rotated log file path for daemon mode. Empty
	// means log to stderr (foreground/inetd mode, where stdout/stdin
	// may be the accepted socket itself).
	LogFile string

	// Debug enables debug-level logging.
	Debug bool

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds the process logger per Config.
func New(cfg Config) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := logrus.InfoLevel
	if cfg.Debug {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize == 0 {
			maxSize = 100
		}
		maxBackups := cfg.MaxBackups
		if maxBackups == 0 {
			maxBackups = 5
		}
		maxAge := cfg.MaxAgeDays
		if maxAge == 0 {
			maxAge = 28
		}
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
		}
	}
	log.SetOutput(out)

	return log
}
