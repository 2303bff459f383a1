package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
)

// Setup routes the default slog logger to a rotating JSON log file.
func Setup(logFile string, debug bool, level string) {
	initOnce.Do(func() {
		logRotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10,    // Max size in MB
			MaxBackups: 0,     // Number of backups
			MaxAge:     30,    // Days
			Compress:   false, // Enable compression
		}
		slog.SetDefault(slog.New(NewHandler(logRotator, debug, level)))
		initialized.Store(true)
	})
}

// NewHandler returns the JSON handler Setup installs, writing to w.
func NewHandler(w io.Writer, debug bool, level string) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(level, debug),
		AddSource: true,
	})
}

// ParseLevel maps a config level name to a slog level. debug forces
// slog.LevelDebug.
func ParseLevel(level string, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Initialized() bool {
	return initialized.Load()
}

// RecoverPanic logs a panic with its stack trace, writes the report next to
// the working directory and runs cleanup.
func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		stack := debug.Stack()
		slog.Error("Panic recovered", "name", name, "panic", r, "stack", string(stack))

		timestamp := time.Now().Format("20060102-150405")
		filename := fmt.Sprintf("vlist-panic-%s-%s.log", name, timestamp)
		if file, err := os.Create(filename); err == nil {
			defer file.Close()
			fmt.Fprintf(file, "Panic in %s: %v\n\n", name, r)
			fmt.Fprintf(file, "Time: %s\n\n", time.Now().Format(time.RFC3339))
			fmt.Fprintf(file, "Stack Trace:\n%s\n", stack)
		}

		if cleanup != nil {
			cleanup()
		}
	}
}
