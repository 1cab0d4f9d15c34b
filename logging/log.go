// Package logging wraps charmbracelet/log with printf-style helpers shared by
// every command. Output goes to stderr so the stdio MCP transport keeps
// stdout for protocol frames.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, "memorygame")
)

func newLogger(w io.Writer, prefix string) *log.Logger {
	l := log.New(w)
	l.SetPrefix(prefix)
	l.SetReportTimestamp(true)
	l.SetTimeFormat(time.DateTime)
	l.SetLevel(log.InfoLevel)
	return l
}

// Init configures the process logger. An empty level means info.
func Init(appName string, level string) {
	InitWithWriter(os.Stderr, appName, level)
}

// InitWithWriter is Init with an explicit destination
func InitWithWriter(w io.Writer, appName string, level string) {
	l := newLogger(w, appName)
	l.SetLevel(ParseLevel(level))
	if l.GetLevel() == log.DebugLevel {
		l.SetReportCaller(true)
	}

	mu.Lock()
	logger = l
	mu.Unlock()
}

// ParseLevel maps debug/warn/error to their level; anything else is info
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Logger returns the current logger for structured key/value calls
func Logger() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Fatal(format string, args ...any) {
	Logger().Fatalf(format, args...)
}

func Info(format string, args ...any) {
	Logger().Infof(format, args...)
}

func Warn(format string, args ...any) {
	Logger().Warnf(format, args...)
}

func Error(format string, args ...any) {
	Logger().Errorf(format, args...)
}

func Debug(format string, args ...any) {
	Logger().Debugf(format, args...)
}
