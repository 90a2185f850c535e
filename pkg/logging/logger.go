package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// levelFatal sits above slog.LevelError so handlers still render it as an error.
const levelFatal = slog.Level(12)

// String returns string representation of log level
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	case FatalLevel:
		return levelFatal
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a configuration string to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("invalid log level %q (allowed: debug, info, warn, error)", s)
	}
}

// Output formats understood by NewStructuredLoggerWithOptions.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Fields represents structured log fields
type Fields map[string]interface{}

// Options configures a StructuredLogger.
type Options struct {
	Service string
	Version string
	Level   LogLevel
	Format  string
	Output  io.Writer
}

// StructuredLogger provides structured logging with context on top of log/slog.
// Records carry service, version and hostname; fields are grouped under "fields".
type StructuredLogger struct {
	mu       sync.RWMutex
	slog     *slog.Logger
	level    *slog.LevelVar
	format   string
	service  string
	version  string
	hostname string
	exit     func(int)
}

// NewStructuredLogger creates a JSON logger writing to stdout.
func NewStructuredLogger(service, version string, level LogLevel) *StructuredLogger {
	return NewStructuredLoggerWithOptions(Options{
		Service: service,
		Version: version,
		Level:   level,
		Format:  FormatJSON,
	})
}

// NewStructuredLoggerWithOptions creates a logger for the given format and output.
func NewStructuredLoggerWithOptions(opts Options) *StructuredLogger {
	hostname, _ := os.Hostname()

	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Format == "" {
		opts.Format = FormatJSON
	}

	lv := new(slog.LevelVar)
	lv.Set(opts.Level.slogLevel())

	l := &StructuredLogger{
		level:    lv,
		format:   opts.Format,
		service:  opts.Service,
		version:  opts.Version,
		hostname: hostname,
		exit:     os.Exit,
	}
	l.slog = l.build(opts.Output)
	return l
}

func (l *StructuredLogger) build(w io.Writer) *slog.Logger {
	var h slog.Handler
	if l.format == FormatText {
		h = tint.NewHandler(w, &tint.Options{
			Level:      l.level,
			TimeFormat: time.Kitchen,
		})
	} else {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: l.level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.LevelKey && len(groups) == 0 {
					if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= levelFatal {
						return slog.String(slog.LevelKey, FatalLevel.String())
					}
				}
				return a
			},
		})
	}
	return slog.New(h).With(
		"service", l.service,
		"version", l.version,
		"hostname", l.hostname,
	)
}

// SetOutput sets the output destination for logs
func (l *StructuredLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slog = l.build(w)
}

// SetLevel sets the minimum log level
func (l *StructuredLogger) SetLevel(level LogLevel) {
	l.level.Set(level.slogLevel())
}

// Slog exposes the underlying slog.Logger for libraries that expect one.
func (l *StructuredLogger) Slog() *slog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.slog
}

// Debug logs a debug message with structured fields
func (l *StructuredLogger) Debug(ctx context.Context, message string, fields Fields) {
	l.log(ctx, DebugLevel, message, fields, nil)
}

// Info logs an info message with structured fields
func (l *StructuredLogger) Info(ctx context.Context, message string, fields Fields) {
	l.log(ctx, InfoLevel, message, fields, nil)
}

// Warn logs a warning message with structured fields
func (l *StructuredLogger) Warn(ctx context.Context, message string, fields Fields) {
	l.log(ctx, WarnLevel, message, fields, nil)
}

// Error logs an error message with structured fields and error details
func (l *StructuredLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	l.log(ctx, ErrorLevel, message, fields, err)
}

// Fatal logs a fatal message and exits the program
func (l *StructuredLogger) Fatal(ctx context.Context, message string, fields Fields, err error) {
	l.log(ctx, FatalLevel, message, fields, err)
	l.exit(1)
}

func (l *StructuredLogger) log(ctx context.Context, level LogLevel, message string, fields Fields, err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := l.Slog()
	sl := level.slogLevel()
	if !logger.Enabled(ctx, sl) {
		return
	}

	attrs := make([]slog.Attr, 0, 6)
	if len(fields) > 0 {
		group := make([]any, 0, len(fields))
		for k, v := range fields {
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("fields", group...))
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}

	if level >= ErrorLevel {
		if pc, file, line, ok := runtime.Caller(2); ok {
			attrs = append(attrs, slog.String("file", file), slog.Int("line", line))
			if fn := runtime.FuncForPC(pc); fn != nil {
				attrs = append(attrs, slog.String("function", fn.Name()))
			}
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			if level == FatalLevel {
				attrs = append(attrs, slog.String("stack_trace", captureStackTrace()))
			}
		}
	}

	logger.LogAttrs(ctx, sl, message, attrs...)
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

type requestIDKey struct{}

// WithRequestID returns a context whose log records carry the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithFields creates a new logger with additional fields
func (l *StructuredLogger) WithFields(fields Fields) *ContextLogger {
	return &ContextLogger{
		logger: l,
		fields: fields,
	}
}

// ContextLogger wraps StructuredLogger with additional context fields
type ContextLogger struct {
	logger *StructuredLogger
	fields Fields
}

func (c *ContextLogger) Debug(ctx context.Context, message string, fields Fields) {
	c.logger.Debug(ctx, message, c.mergeFields(fields))
}

func (c *ContextLogger) Info(ctx context.Context, message string, fields Fields) {
	c.logger.Info(ctx, message, c.mergeFields(fields))
}

func (c *ContextLogger) Warn(ctx context.Context, message string, fields Fields) {
	c.logger.Warn(ctx, message, c.mergeFields(fields))
}

func (c *ContextLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	c.logger.Error(ctx, message, c.mergeFields(fields), err)
}

// mergeFields merges context fields with provided fields; provided fields win.
func (c *ContextLogger) mergeFields(fields Fields) Fields {
	merged := make(Fields, len(c.fields)+len(fields))
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}
