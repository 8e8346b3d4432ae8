package common

import (
	"io"
	"log/slog"
	"os"
)

// LogLevel represents logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelDebug:
		return "debug"
	default:
		return "info"
	}
}

// ToSlogLevel converts LogLevel to slog.Level
func (l LogLevel) ToSlogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Logger is the structured logger shared by every pushprobe component.
// Logs go to stderr so the run report on stdout stays machine-readable.
type Logger struct {
	*slog.Logger
	level LogLevel
}

var logOutput io.Writer = os.Stderr

// maskingOptions masks every attribute through the global masker as it is
// written, including attributes attached with With.
func maskingOptions(level LogLevel) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level.ToSlogLevel(),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return maskAttr(GetGlobalMasker(), a)
		},
	}
}

// NewLogger creates a plain text logger with masking applied.
func NewLogger(level LogLevel) *Logger {
	return newLogger(slog.NewTextHandler(logOutput, maskingOptions(level)), level)
}

// NewJSONLogger creates a logger emitting one JSON object per record, with
// masking applied.
func NewJSONLogger(level LogLevel) *Logger {
	return newLogger(slog.NewJSONHandler(logOutput, maskingOptions(level)), level)
}

// NewColorLogger creates a logger using ColorHandler with masking applied.
func NewColorLogger(level LogLevel) *Logger {
	h := NewColorHandler(logOutput, &slog.HandlerOptions{Level: level.ToSlogLevel()})
	h.SetColorEnabled(true)
	return newLogger(h, level)
}

// NewLoggerWithWriter builds a text logger on w; used by tests to capture output.
func NewLoggerWithWriter(w io.Writer, level LogLevel) *Logger {
	h := NewColorHandler(w, &slog.HandlerOptions{Level: level.ToSlogLevel()})
	return newLogger(h, level)
}

func newLogger(h slog.Handler, level LogLevel) *Logger {
	return &Logger{Logger: slog.New(h), level: level}
}

// Level returns the current log level
func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// WithComponent returns a logger with component context
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// WithSuite tags records with the suite being run.
func (l *Logger) WithSuite(name string) *Logger {
	return l.with("suite", name)
}

// WithStep tags records with a step name.
func (l *Logger) WithStep(name string) *Logger {
	return l.with("step", name)
}

// WithService tags records with the supervised command and its pid.
func (l *Logger) WithService(command string, pid int) *Logger {
	return l.with("service", command, "pid", pid)
}

// WithStore tags records with the history store driver.
func (l *Logger) WithStore(driver string) *Logger {
	return l.with("component", "store", "driver", driver)
}

// WithRequest returns a logger with HTTP request context
func (l *Logger) WithRequest(method, url string) *Logger {
	return l.with("method", method, "url", url)
}

// EnableMasking toggles masking on the global masker used by ColorHandler.
func (l *Logger) EnableMasking(enabled bool) {
	EnableMasking(enabled)
}

var defaultLogger = NewLogger(LogLevelInfo)

// SetDefaultLogger sets the global default logger
func SetDefaultLogger(logger *Logger) {
	if logger != nil {
		defaultLogger = logger
	}
}

// GetLogger returns the default logger
func GetLogger() *Logger {
	return defaultLogger
}

// LogError logs an error with context
func LogError(msg string, err error, attrs ...any) {
	defaultLogger.Error(msg, append([]any{"error", err}, attrs...)...)
}

// LogInfo logs informational message
func LogInfo(msg string, attrs ...any) {
	defaultLogger.Info(msg, attrs...)
}

// LogDebug logs debug message
func LogDebug(msg string, attrs ...any) {
	defaultLogger.Debug(msg, attrs...)
}

// LogWarn logs warning message
func LogWarn(msg string, attrs ...any) {
	defaultLogger.Warn(msg, attrs...)
}
