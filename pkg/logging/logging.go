// pkg/logging/logging.go
package logging

import (
	"fmt"
	"io"
	stdLog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	writerMu  sync.Mutex
	logWriter io.Writer = os.Stderr
)

// stdLogWriter turns stdlib log lines ("file.go:12: message" with
// log.Lshortfile) into zerolog debug events.
type stdLogWriter struct {
	logger zerolog.Logger
}

func (w stdLogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	ev := w.logger.Debug().Str("source", "stdlog")
	if file, rest, ok := strings.Cut(msg, ": "); ok && strings.Contains(file, ".go:") && !strings.Contains(file, " ") {
		ev = ev.Str("file", file)
		msg = rest
	}
	ev.Msg(msg)
	return len(p), nil
}

func init() {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
}

// Configure sets up the global logger. format is "json" or "text"; anything
// else falls back to text. A nil w keeps the current writer (stderr by default).
func Configure(levelStr, format string, w io.Writer) error {
	level, err := ParseLevel(levelStr)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	writerMu.Lock()
	if w != nil {
		logWriter = w
	}
	out := logWriter
	writerMu.Unlock()

	if format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logContext := zerolog.New(out).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}

	log.Logger = logContext.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	stdLog.SetFlags(stdLog.Lshortfile)
	stdLog.SetOutput(stdLogWriter{logger: log.Logger})
	return nil
}

// ParseLevel converts a level name to zerolog.Level. Empty means error.
func ParseLevel(levelString string) (zerolog.Level, error) {
	if levelString == "" {
		return zerolog.ErrorLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelString))
	if err != nil {
		return zerolog.ErrorLevel, fmt.Errorf("invalid log level %q: %w", levelString, err)
	}
	return level, nil
}

// OpenFile opens path for appending log lines.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
