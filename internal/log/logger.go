package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// maxTracebackBytes caps the traceback attached to a single failure record.
const maxTracebackBytes = 64 * 1024

var (
	once   sync.Once
	logger *slog.Logger
	output io.Writer = os.Stderr
)

// SetOutput redirects the writer used by Setup. It must be called before Setup.
func SetOutput(w io.Writer) {
	output = w
}

// Setup initializes the global logger.
// Level defaults to INFO when invalid; format is "json" (default) or "text".
func Setup(level string, format ...string) {
	once.Do(func() {
		opts := &slog.HandlerOptions{
			Level: parseLevel(level),
		}

		var handler slog.Handler
		if len(format) > 0 && strings.EqualFold(format[0], "text") {
			handler = slog.NewTextHandler(output, opts)
		} else {
			handler = slog.NewJSONHandler(output, opts)
		}
		logger = slog.New(handler)
		slog.SetDefault(logger)
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	if logger == nil {
		Setup("INFO")
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithModule returns a logger with the handler module field set.
func WithModule(name string) *slog.Logger {
	return Get().With(slog.String("module", name))
}

// WithPart annotates l with a part's content type and filename. A nil l uses
// the global logger.
func WithPart(l *slog.Logger, contentType, filename string) *slog.Logger {
	if l == nil {
		l = Get()
	}
	return l.With(slog.String("content_type", contentType), slog.String("filename", filename))
}

// Exc logs a suppressed failure at ERROR level together with its traceback.
// It is the single sink for failures that are contained rather than returned.
func Exc(l *slog.Logger, msg string, err error, traceback string, args ...any) {
	if l == nil {
		l = Get()
	}
	if len(traceback) > maxTracebackBytes {
		traceback = traceback[:maxTracebackBytes]
	}
	attrs := make([]any, 0, len(args)+4)
	attrs = append(attrs, args...)
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	attrs = append(attrs, "traceback", traceback)
	l.Error(msg, attrs...)
}
