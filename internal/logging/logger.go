// Package logging provides structured logging with file and console output.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogEntry is one retained log line, for status endpoints and tests.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
	Data      string `json:"data,omitempty"`
}

// Logger wraps zerolog with file output and log history
type Logger struct {
	zlog    zerolog.Logger
	file    *os.File
	logPath string

	mu      sync.RWMutex
	history []LogEntry
	maxHist int
	onLog   func(LogEntry)
}

// Config holds logger configuration
type Config struct {
	Dir        string `mapstructure:"dir"`   // empty disables the log file
	Level      string `mapstructure:"level"` // zerolog level name (default: info)
	MaxHistory int    `mapstructure:"max_history"`
	Console    bool   `mapstructure:"console"`
}

func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Dir:        filepath.Join(home, ".avatarcore", "logs"),
		Level:      "info",
		MaxHistory: 500,
		Console:    true,
	}
}

// New creates a Logger writing to a dated file under cfg.Dir and,
// optionally, the console.
func New(cfg Config) (*Logger, error) {
	var writers []io.Writer
	var file *os.File
	var logPath string

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		logPath = filepath.Join(cfg.Dir, fmt.Sprintf("avatarcore_%s.log", time.Now().Format("2006-01-02")))

		var err error
		file, err = os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
	}

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}

	l, err := NewWithWriter(io.MultiWriter(writers...), cfg)
	if err != nil {
		if file != nil {
			file.Close()
		}
		return nil, err
	}
	l.file = file
	l.logPath = logPath

	l.Info("logging", "Logger initialized", map[string]any{
		"logFile": logPath,
		"level":   l.zlog.GetLevel().String(),
	})
	return l, nil
}

// NewWithWriter builds a Logger on an arbitrary writer, without a file.
func NewWithWriter(w io.Writer, cfg Config) (*Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultConfig().MaxHistory
	}

	zlog := zerolog.New(w).Level(level).With().
		Timestamp().
		Str("app", "avatarcore").
		Logger()

	return &Logger{
		zlog:    zlog,
		history: make([]LogEntry, 0, cfg.MaxHistory),
		maxHist: cfg.MaxHistory,
	}, nil
}

// SetOnLog sets a callback for real-time log streaming
func (l *Logger) SetOnLog(fn func(LogEntry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLog = fn
}

func (l *Logger) addToHistory(entry LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append(l.history, entry)
	if len(l.history) > l.maxHist {
		l.history = l.history[len(l.history)-l.maxHist:]
	}

	if l.onLog != nil {
		go l.onLog(entry)
	}
}

// GetHistory returns up to limit of the most recent entries; limit <= 0
// returns all of them.
func (l *Logger) GetHistory(limit int) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.history) {
		limit = len(l.history)
	}

	result := make([]LogEntry, limit)
	copy(result, l.history[len(l.history)-limit:])
	return result
}

func (l *Logger) GetLogPath() string {
	return l.logPath
}

// Close closes the log file
func (l *Logger) Close() error {
	l.Info("logging", "Logger shutting down", nil)
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// formatData renders data with sorted keys so history lines are stable.
func formatData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, ", ")
}

func (l *Logger) log(event *zerolog.Event, level, component, msg string, err error, data map[string]any) {
	event = event.Str("component", component)
	if err != nil {
		event = event.Err(err)
	}
	for k, v := range data {
		event = event.Interface(k, v)
	}
	event.Msg(msg)

	text := formatData(data)
	if err != nil {
		text = strings.TrimSpace(text + " error=" + err.Error())
	}
	l.addToHistory(LogEntry{
		Timestamp: time.Now().Format("15:04:05.000"),
		Level:     level,
		Component: component,
		Message:   msg,
		Data:      text,
	})
}

func (l *Logger) Debug(component, msg string, data map[string]any) {
	if l.zlog.GetLevel() > zerolog.DebugLevel {
		return
	}
	l.log(l.zlog.Debug(), "debug", component, msg, nil, data)
}

func (l *Logger) Info(component, msg string, data map[string]any) {
	l.log(l.zlog.Info(), "info", component, msg, nil, data)
}

func (l *Logger) Warn(component, msg string, data map[string]any) {
	l.log(l.zlog.Warn(), "warn", component, msg, nil, data)
}

func (l *Logger) Error(component, msg string, err error, data map[string]any) {
	l.log(l.zlog.Error(), "error", component, msg, err, data)
}

// Component returns a zerolog.Logger with the component field set, for
// packages that log through zerolog directly.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}
