package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config captures logging configuration options.
type Config struct {
	Level    string `yaml:"level" json:"level"`
	Dir      string `yaml:"dir" json:"dir"`
	Filename string `yaml:"filename" json:"filename"`
}

// Logger writes structured records to the console, a JSON log file and an
// in-memory ring buffer that backs the admin log endpoint.
type Logger struct {
	cfg     Config
	slogger *slog.Logger
	ring    *Ring

	mu      sync.Mutex
	logFile *os.File
}

// New creates a Logger. The log directory is created if missing.
func New(cfg Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	logPath := filepath.Join(cfg.Dir, cfg.Filename)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	level := parseLevel(cfg.Level)
	ring := NewRing(DefaultRingCapacity)

	jsonHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	textHandler := &consoleHandler{writer: os.Stdout, level: level}
	ringHandler := &ringHandler{ring: ring, level: level}

	l := &Logger{
		cfg:     cfg,
		slogger: slog.New(fanoutHandler{jsonHandler, textHandler, ringHandler}),
		ring:    ring,
		logFile: file,
	}
	return l, nil
}

// Slog exposes the structured logger.
func (l *Logger) Slog() *slog.Logger { return l.slogger }

// Ring exposes the in-memory log buffer.
func (l *Logger) Ring() *Ring { return l.ring }

// Close closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile == nil {
		return nil
	}
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// fanoutHandler duplicates every record to each child handler.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	children := make(fanoutHandler, len(f))
	for i, h := range f {
		children[i] = h.WithAttrs(attrs)
	}
	return children
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	children := make(fanoutHandler, len(f))
	for i, h := range f {
		children[i] = h.WithGroup(name)
	}
	return children
}

const categoryKey = "category"

// Known log categories.
const (
	CategoryAuth      = "auth"
	CategoryScheduler = "scheduler"
	CategoryAI        = "ai"
	CategoryDrive     = "drive"
	CategoryHTTP      = "http"
	CategoryStorage   = "storage"
	CategoryCanteen   = "canteen"
)

// Category returns the slog attribute that routes a record into a log
// category. Categories drive console coloring and ring buffer filtering.
func Category(name string) slog.Attr {
	return slog.String(categoryKey, name)
}

func recordCategory(r slog.Record) string {
	var cat string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == categoryKey {
			cat = a.Value.String()
			return false
		}
		return true
	})
	return cat
}

var categoryColors = map[string]string{
	CategoryAuth:      "\x1b[94m",
	CategoryScheduler: "\x1b[96m",
	CategoryAI:        "\x1b[34m",
	CategoryDrive:     "\x1b[95m",
	CategoryHTTP:      "\x1b[92m",
	CategoryStorage:   "\x1b[35m",
	CategoryCanteen:   "\x1b[33m",
}

var (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

// consoleHandler renders records for the terminal with per-category colors.
type consoleHandler struct {
	writer io.Writer
	level  slog.Level
	mu     sync.Mutex
}

func (h *consoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := r.Time.Format("2006-01-02 15:04:05.000")

	var levelColor string
	switch r.Level {
	case slog.LevelDebug:
		levelColor = colorDebug
	case slog.LevelWarn:
		levelColor = colorWarn
	case slog.LevelError:
		levelColor = colorError
	default:
		levelColor = colorInfo
	}

	var output string
	if cat := recordCategory(r); cat != "" {
		moduleColor, ok := categoryColors[cat]
		if !ok {
			moduleColor = colorReset
		}
		output = fmt.Sprintf("%s[%s]%s %s[%s] %s%s",
			colorTime, timeStr, colorReset,
			moduleColor, strings.ToUpper(cat), r.Message, colorReset)
	} else {
		output = fmt.Sprintf("%s[%s]%s %s[%s]%s %s",
			colorTime, timeStr, colorReset,
			levelColor, r.Level.String(), colorReset,
			r.Message)
	}

	if r.NumAttrs() > 0 {
		attrs := ""
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == categoryKey {
				return true
			}
			attrs += fmt.Sprintf(" %s=%v", a.Key, a.Value)
			return true
		})
		if attrs != "" {
			output += " {" + attrs + " }"
		}
	}
	output += "\n"

	_, err := h.writer.Write([]byte(output))
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }

func (h *consoleHandler) WithGroup(name string) slog.Handler { return h }

// ringHandler appends records to the in-memory ring.
type ringHandler struct {
	ring  *Ring
	level slog.Level
}

func (h *ringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *ringHandler) Handle(ctx context.Context, r slog.Record) error {
	msg := r.Message
	var details []string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == categoryKey {
			return true
		}
		details = append(details, fmt.Sprintf("%s=%v", a.Key, a.Value))
		return true
	})
	if len(details) > 0 {
		msg = msg + " " + strings.Join(details, " ")
	}

	h.ring.Append(Entry{
		Time:     r.Time,
		Level:    strings.ToLower(r.Level.String()),
		Category: recordCategory(r),
		Message:  msg,
	})
	return nil
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	for _, a := range attrs {
		if a.Key == categoryKey {
			return &boundRingHandler{ringHandler: h, category: a.Value.String()}
		}
	}
	return h
}

func (h *ringHandler) WithGroup(name string) slog.Handler { return h }

// boundRingHandler carries a category attached via Logger.With.
type boundRingHandler struct {
	*ringHandler
	category string
}

func (h *boundRingHandler) Handle(ctx context.Context, r slog.Record) error {
	if recordCategory(r) == "" {
		r.AddAttrs(slog.String(categoryKey, h.category))
	}
	return h.ringHandler.Handle(ctx, r)
}
