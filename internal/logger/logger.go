package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
)

var (
	globalLogger = slog.New(&silentHandler{})
	errorLogger  = newTextLogger(os.Stderr, slog.LevelError)
	verboseMode  bool
)

// OAuth material that must never reach a log line
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(access_token|refresh_token|client_secret|code_verifier)(["':=\s]+)([A-Za-z0-9\-._~+/]+=*)`),
	regexp.MustCompile(`(?i)(Bearer\s+)([A-Za-z0-9\-._~+/]+=*)`),
	regexp.MustCompile(`([?&](?:code|state|code_challenge)=)([^&\s]*)`),
}

// Init initializes the global logger with verbose mode setting
func Init(verbose bool) {
	InitWithWriter(verbose, os.Stderr)
}

// InitWithWriter is Init with an explicit destination
func InitWithWriter(verbose bool, w io.Writer) {
	verboseMode = verbose
	errorLogger = newTextLogger(w, slog.LevelError)

	if verbose {
		globalLogger = newTextLogger(w, slog.LevelDebug)
	} else {
		// Silent logger for non-verbose mode
		globalLogger = slog.New(&silentHandler{})
	}
	slog.SetDefault(globalLogger)
}

func newTextLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Value.Kind() {
			case slog.KindString:
				a.Value = slog.StringValue(Redact(a.Value.String()))
			case slog.KindAny:
				if err, ok := a.Value.Any().(error); ok && err != nil {
					a.Value = slog.StringValue(Redact(err.Error()))
				}
			}
			return a
		},
	}))
}

// silentHandler discards all log messages when verbose mode is disabled
type silentHandler struct{}

func (h *silentHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return false
}

func (h *silentHandler) Handle(_ context.Context, _ slog.Record) error {
	return nil
}

func (h *silentHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *silentHandler) WithGroup(_ string) slog.Handler {
	return h
}

// Debug logs debug messages only in verbose mode
func Debug(msg string, args ...any) {
	globalLogger.Debug(msg, args...)
}

// Info logs info messages only in verbose mode
func Info(msg string, args ...any) {
	globalLogger.Info(msg, args...)
}

// Warn logs warning messages only in verbose mode
func Warn(msg string, args ...any) {
	globalLogger.Warn(msg, args...)
}

// Error always logs error messages regardless of verbose mode
func Error(msg string, args ...any) {
	if verboseMode {
		globalLogger.Error(msg, args...)
		return
	}
	errorLogger.Error(msg, args...)
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return verboseMode
}

// Redact masks tokens, secrets and authorization codes in s
func Redact(s string) string {
	for _, pattern := range sensitivePatterns {
		s = pattern.ReplaceAllStringFunc(s, func(match string) string {
			sub := pattern.FindStringSubmatch(match)
			switch len(sub) {
			case 4:
				return sub[1] + sub[2] + "[REDACTED]"
			case 3:
				return sub[1] + "[REDACTED]"
			default:
				return "[REDACTED]"
			}
		})
	}
	return s
}
