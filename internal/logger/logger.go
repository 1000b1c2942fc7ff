// Package logger builds the log/slog loggers of the command line tools from
// config.LoggingConfig. File output rotates through lumberjack, and records
// logged with a context pick up the job, exchange and symbol stored in it.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/johnayoung/go-crypto-datautil/internal/config"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
)

type ctxKey int

const (
	jobIDKey ctxKey = iota
	exchangeKey
	symbolKey
)

// ctxFields lists the context values copied onto records, in output order.
var ctxFields = []struct {
	key  ctxKey
	name string
}{
	{jobIDKey, "job_id"},
	{exchangeKey, "exchange"},
	{symbolKey, "symbol"},
}

// WithJobID stores a download or scheduler job ID in ctx.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// WithExchange stores an exchange name in ctx.
func WithExchange(ctx context.Context, exchange string) context.Context {
	return context.WithValue(ctx, exchangeKey, exchange)
}

// WithSymbol stores an instrument symbol in ctx.
func WithSymbol(ctx context.Context, symbol string) context.Context {
	return context.WithValue(ctx, symbolKey, symbol)
}

// JobID returns the job ID stored in ctx, if any.
func JobID(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey).(string)
	return id
}

// contextHandler adds the ctxFields found in the record's context.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		for _, f := range ctxFields {
			if v, ok := ctx.Value(f.key).(string); ok && v != "" {
				r.AddAttrs(slog.String(f.name, v))
			}
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// LoggerManager owns the log output and hands out per-component loggers.
type LoggerManager struct {
	cfg  config.LoggingConfig
	out  io.WriteCloser
	base *slog.Logger

	mu         sync.Mutex
	components map[string]*ComponentLogger
}

// ComponentLogger is a logger tagged with a component attribute.
type ComponentLogger struct {
	*slog.Logger
	name string
}

// Component returns the component name.
func (c *ComponentLogger) Component() string { return c.name }

// NewLoggerManager opens the output named by cfg.Output: stderr by default so
// stdout stays free for command output, stdout, or a rotating file.
func NewLoggerManager(cfg config.LoggingConfig) (*LoggerManager, error) {
	out, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}
	return newManager(cfg, out), nil
}

// NewLoggerManagerWithWriter logs to w whatever cfg.Output says.
func NewLoggerManagerWithWriter(cfg config.LoggingConfig, w io.Writer) *LoggerManager {
	return newManager(cfg, nopCloser{w})
}

func newManager(cfg config.LoggingConfig, out io.WriteCloser) *LoggerManager {
	return &LoggerManager{
		cfg:        cfg,
		out:        out,
		base:       slog.New(newHandler(cfg, out)),
		components: make(map[string]*ComponentLogger),
	}
}

func newHandler(cfg config.LoggingConfig, w io.Writer) slog.Handler {
	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level <= slog.LevelDebug,
		ReplaceAttr: utcTime,
	}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	if len(cfg.ContextFields) > 0 {
		attrs := make([]slog.Attr, 0, len(cfg.ContextFields))
		for k, v := range cfg.ContextFields {
			attrs = append(attrs, slog.String(k, v))
		}
		h = h.WithAttrs(attrs)
	}
	return contextHandler{h}
}

// utcTime writes record times in UTC with millisecond precision.
func utcTime(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format("2006-01-02T15:04:05.000Z"))
		}
	}
	return a
}

func openOutput(cfg config.LoggingConfig) (io.WriteCloser, error) {
	switch cfg.Output {
	case "stdout":
		return nopCloser{os.Stdout}, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, apperrors.Newf(apperrors.ErrorTypeConfiguration, "logger", "open_output",
				"logging.file_path is required for file output")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, apperrors.New(apperrors.ErrorTypeIO, "logger", "open_output",
				fmt.Errorf("log directory: %w", err))
		}
		return &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}, nil
	default:
		return nopCloser{os.Stderr}, nil
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// ParseLevel maps a level name to slog.Level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// GetLogger returns the root logger.
func (lm *LoggerManager) GetLogger() *slog.Logger { return lm.base }

// GetComponentLogger returns the logger for component, creating it once.
func (lm *LoggerManager) GetComponentLogger(component string) *ComponentLogger {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if cl, ok := lm.components[component]; ok {
		return cl
	}
	cl := &ComponentLogger{Logger: lm.base.With("component", component), name: component}
	lm.components[component] = cl
	return cl
}

// Close flushes and closes a file output.
func (lm *LoggerManager) Close() error {
	if lm.out == nil {
		return nil
	}
	return lm.out.Close()
}

// OrDefault returns l, or slog.Default() when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
