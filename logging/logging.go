// Package logging - Structured logging setup shared by all services.
//
// Every component obtains a *slog.Logger through ForService and tags its
// records with a "service" attribute. Init wires a JSON handler to stdout
// and, when a file path is configured, mirrors records into a rotated log
// file. Before Init is called ForService returns the default slog logger,
// which keeps tests free of global setup.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu   sync.RWMutex
	base *slog.Logger
)

// Config controls the process-wide logging setup.
type Config struct {
	// Level is the minimum level emitted.
	Level slog.Level
	// FilePath, when non-empty, enables a rotated log file next to the
	// console output.
	FilePath string
	// MaxSizeMB is the rotation threshold for the log file.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept on disk.
	MaxBackups int
}

// Init installs the process-wide logger. Safe to call once at startup;
// subsequent ForService calls derive from the installed logger.
func Init(cfg Config) {
	var w io.Writer = os.Stdout
	if cfg.FilePath != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		rotated := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stdout, rotated)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level})

	mu.Lock()
	base = slog.New(handler)
	mu.Unlock()
}

// ForService returns a logger tagged with the given service name.
func ForService(name string) *slog.Logger {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l == nil {
		l = slog.Default()
	}
	return l.With("service", name)
}
