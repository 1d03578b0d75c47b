// Package output provides revstack's console logger and styles. Console
// messages go to stdout; everything is mirrored with timestamps into a
// rotated debug log file.
package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"
)

// simpleHandler writes console messages without timestamps or level
// prefixes.
type simpleHandler struct {
	writer    io.Writer
	debugMode bool
}

func (h *simpleHandler) Enabled(_ context.Context, level slog.Level) bool {
	if level == slog.LevelDebug {
		return h.debugMode
	}
	return true
}

func (h *simpleHandler) Handle(_ context.Context, record slog.Record) error {
	_, err := fmt.Fprintln(h.writer, record.Message)
	return err
}

func (h *simpleHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *simpleHandler) WithGroup(_ string) slog.Handler      { return h }

// multiHandler fans out log records to multiple handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// createLumberjackLogger builds the rotated file writer, with sizes
// overridable through the environment.
func createLumberjackLogger(logFilePath string) *lumberjack.Logger {
	logger := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    1,
		MaxBackups: 2,
		MaxAge:     30,
	}

	if v := os.Getenv("REVSTACK_LOG_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			logger.MaxSize = n
		}
	}
	if v := os.Getenv("REVSTACK_LOG_MAX_BACKUPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			logger.MaxBackups = n
		}
	}
	if v := os.Getenv("REVSTACK_LOG_MAX_AGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			logger.MaxAge = n
		}
	}

	return logger
}

// Splog provides structured logging and console output.
type Splog struct {
	logger    *slog.Logger
	writer    io.Writer
	logWriter io.WriteCloser
}

// NewSplog creates a console-only logger. Debug messages are enabled when
// the DEBUG environment variable is set.
func NewSplog() *Splog {
	splog, _ := NewSplogWithLogFile("")
	return splog
}

// DefaultLogFilePath returns the debug log location under the user cache
// directory, or "" when no cache directory is available.
func DefaultLogFilePath() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(cacheDir, "revstack", "revstack.log")
}

// NewSplogWithLogFile creates a logger that also mirrors everything into a
// rotated debug log file when logFilePath is non-empty.
func NewSplogWithLogFile(logFilePath string) (*Splog, error) {
	splog := &Splog{writer: os.Stdout}

	handlers := []slog.Handler{&simpleHandler{
		writer:    splog.writer,
		debugMode: os.Getenv("DEBUG") != "",
	}}

	if logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0750); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		fileWriter := createLumberjackLogger(logFilePath)
		splog.logWriter = fileWriter
		handlers = append(handlers, slog.NewTextHandler(fileWriter, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	splog.logger = slog.New(&multiHandler{handlers: handlers})
	return splog, nil
}

func (s *Splog) logMessage(level slog.Level, format string, args ...interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	s.logger.Log(context.Background(), level, msg)
}

// Info writes an info message.
func (s *Splog) Info(format string, args ...interface{}) {
	s.logMessage(slog.LevelInfo, format, args...)
}

// Warn writes a warning message.
func (s *Splog) Warn(format string, args ...interface{}) {
	s.logMessage(slog.LevelWarn, WarnStyle.Render("⚠")+" "+format, args...)
}

// Error writes an error message.
func (s *Splog) Error(format string, args ...interface{}) {
	s.logMessage(slog.LevelError, ErrorStyle.Render("✗")+" "+format, args...)
}

// Tip writes a hint about a useful follow-up.
func (s *Splog) Tip(format string, args ...interface{}) {
	s.logMessage(slog.LevelInfo, TipStyle.Render("tip:")+" "+format, args...)
}

// Debug writes a message only visible with DEBUG set (and in the file log).
func (s *Splog) Debug(format string, args ...interface{}) {
	s.logMessage(slog.LevelDebug, format, args...)
}

// Page writes raw pre-formatted content.
func (s *Splog) Page(content string) {
	_, _ = fmt.Fprint(s.writer, content)
}

// Newline writes a blank line.
func (s *Splog) Newline() {
	_, _ = fmt.Fprintln(s.writer)
}

// Close closes the debug log file if one was opened.
func (s *Splog) Close() error {
	if s.logWriter != nil {
		return s.logWriter.Close()
	}
	return nil
}
