// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.

// Package logging provides structured logging for the FIR analysis services.
//
// The package layers multi-destination output on top of the standard
// library slog package:
//
//   - Default: stderr output for CLI compatibility (Unix conventions)
//   - Optional: file logging with automatic directory creation
//   - Optional: export via the LogExporter interface for log shipping
//
// # Basic Usage
//
// For simple CLI usage with stderr output:
//
//	logger := logging.Default()
//	logger.Info("workflow started", "workflow_id", id)
//	logger.Error("upload failed", "error", err)
//
// # File Logging
//
// To enable file logging alongside stderr:
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.fir/logs", // Supports ~ expansion
//	    Service: "fir-cli",
//	})
//	defer logger.Close() // Flushes and closes the file
//
// Log files are named `{service}_{date}.log` and always use JSON format.
//
// # Log Levels
//
// Four levels are supported, matching slog conventions: Debug for
// development troubleshooting, Info for normal operations, Warn for
// recoverable issues (retry attempts, degraded mode), Error for operation
// failures the system survives.
//
// # Thread Safety
//
// Logger is safe for concurrent use. Internal state is protected by a
// mutex and the underlying slog.Logger is thread-safe.
//
// # Security Considerations
//
// This package does NOT automatically redact FIR content or PII. Callers
// must sanitize complainant names, phone numbers, and document text before
// logging; see the policy engine's scan support.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity, ordered Debug < Info < Warn < Error.
// Setting a minimum level filters out all records below it.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages such as workflow
	// lifecycle events and corpus ingestion progress.
	LevelInfo

	// LevelWarn is for unexpected but recoverable situations, e.g. a
	// retry attempt or a disabled translator.
	LevelWarn

	// LevelError is for failed operations. The process continues.
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// toSlogLevel bridges Level to the standard library's slog.Level.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures Logger behavior. The zero value produces a logger
// that writes Info+ records to stderr in text format.
type Config struct {
	// Level sets the minimum log level. Records below it are discarded.
	// Default: LevelInfo
	Level Level

	// LogDir enables file logging to the given directory. When set,
	// records go to both stderr and a `{Service}_{YYYY-MM-DD}.log` file
	// in JSON format. The directory is created with 0750 permissions.
	// Supports ~ expansion. Default: "" (file logging disabled).
	LogDir string

	// Service identifies the component generating logs and is attached
	// to every record as the "service" attribute.
	// Recommended values: "fir-cli", "orchestrator".
	Service string

	// JSON switches stderr output to JSON. File logs are always JSON
	// regardless of this setting.
	JSON bool

	// Quiet disables stderr output. Records still reach the file (if
	// LogDir is set) and the Exporter (if configured).
	Quiet bool

	// Exporter optionally receives every record asynchronously for
	// shipping to an external system. Export failures are dropped so
	// they cannot disrupt normal logging. Default: nil.
	Exporter LogExporter
}

// =============================================================================
// Exporter Interface
// =============================================================================

// LogExporter ships log entries to an external destination (object
// storage, a log aggregator, an OTel collector).
//
// Implementations must be non-blocking in Export: buffer internally and
// flush in batches. Flush is called during graceful shutdown and should
// block until pending entries are delivered; Close releases resources
// afterwards.
type LogExporter interface {
	// Export sends one entry. Called asynchronously per record with a
	// short-lived context.
	Export(ctx context.Context, entry LogEntry) error

	// Flush delivers all buffered entries. Called during shutdown.
	Flush(ctx context.Context) error

	// Close releases connections and files after Flush.
	Close() error
}

// LogEntry is the structured record handed to LogExporter implementations.
type LogEntry struct {
	// Timestamp when the record was generated (local time).
	Timestamp time.Time

	// Level of the record.
	Level Level

	// Message is the primary log message.
	Message string

	// Service comes from Config.Service.
	Service string

	// Attrs holds the record's key-value attributes.
	Attrs map[string]any
}

// =============================================================================
// Logger
// =============================================================================

// Logger wraps slog.Logger with multi-destination output (stderr, file,
// exporter) and cleanup via Close.
//
// # Thread Safety
//
// Safe for concurrent use from multiple goroutines.
//
// # Resource Management
//
// Call Close when done with a logger that has file logging or an
// exporter configured.
type Logger struct {
	// slog is the underlying structured logger.
	slog *slog.Logger

	// config stores the configuration for reference.
	config Config

	// file is the optional log file handle (nil when disabled).
	file *os.File

	// exporter is the optional log exporter.
	exporter LogExporter

	// mu protects mutable state (file, exporter).
	mu sync.Mutex
}

// New creates a Logger from config: a stderr handler unless Quiet, a file
// handler when LogDir is set, and the exporter hookup when provided. The
// returned Logger must be closed with Close to release resources.
func New(config Config) *Logger {
	var handlers []slog.Handler

	opts := &slog.HandlerOptions{
		Level: config.Level.toSlogLevel(),
	}

	if !config.Quiet {
		var stderrHandler slog.Handler
		if config.JSON {
			stderrHandler = slog.NewJSONHandler(os.Stderr, opts)
		} else {
			stderrHandler = slog.NewTextHandler(os.Stderr, opts)
		}
		handlers = append(handlers, stderrHandler)
	}

	logger := &Logger{
		config:   config,
		exporter: config.Exporter,
	}

	if config.LogDir != "" {
		logDir := expandPath(config.LogDir)
		if err := os.MkdirAll(logDir, 0750); err == nil {
			serviceName := config.Service
			if serviceName == "" {
				serviceName = "fir"
			}
			filename := fmt.Sprintf("%s_%s.log", serviceName, time.Now().Format("2006-01-02"))
			logPath := filepath.Join(logDir, filename)

			file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
			if err == nil {
				logger.file = file
				// File logs are always JSON (machine-parseable).
				fileHandler := slog.NewJSONHandler(file, opts)
				handlers = append(handlers, fileHandler)
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		// Fallback: at least write to stderr.
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("service", config.Service),
		})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Default returns a logger with Info level, stderr text output, and
// service "fir". Suitable for simple CLI paths that don't need file
// logging or export.
func Default() *Logger {
	return New(Config{
		Level:   LevelInfo,
		Service: "fir",
	})
}

// Debug logs a message at Debug level with key-value attributes.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, msg, args...)
}

// Info logs a message at Info level with key-value attributes.
func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a message at Warn level with key-value attributes.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, msg, args...)
}

// Error logs a message at Error level with key-value attributes.
func (l *Logger) Error(msg string, args ...any) {
	l.log(LevelError, msg, args...)
}

// With returns a new Logger carrying additional attributes; the parent is
// not modified. Useful for workflow-scoped context:
//
//	wfLogger := logger.With("workflow_id", id)
//	wfLogger.Info("node completed", "node", name)
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:     l.slog.With(args...),
		config:   l.config,
		file:     l.file,     // Share file handle
		exporter: l.exporter, // Share exporter
	}
}

// Slog returns the underlying slog.Logger for features this wrapper does
// not expose (LogAttrs, custom Record handling).
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes the exporter, closes it, then syncs and closes the log
// file. Returns the first error encountered.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error

	if l.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.exporter.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush exporter: %w", err))
		}
		if err := l.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close exporter: %w", err))
		}
	}

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync log file: %w", err))
		}
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// log writes to all destinations.
func (l *Logger) log(level Level, msg string, args ...any) {
	switch level {
	case LevelDebug:
		l.slog.Debug(msg, args...)
	case LevelInfo:
		l.slog.Info(msg, args...)
	case LevelWarn:
		l.slog.Warn(msg, args...)
	case LevelError:
		l.slog.Error(msg, args...)
	}

	if l.exporter != nil && level >= l.config.Level {
		entry := LogEntry{
			Timestamp: time.Now(),
			Level:     level,
			Message:   msg,
			Service:   l.config.Service,
			Attrs:     argsToMap(args),
		}
		// Async export so the log call never blocks on the exporter.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = l.exporter.Export(ctx, entry)
		}()
	}
}

// =============================================================================
// Multi-Handler (Internal)
// =============================================================================

// multiHandler fans out records to multiple slog handlers, enabling
// simultaneous stderr and file output with different formats.
type multiHandler struct {
	handlers []slog.Handler
}

// Enabled returns true if any handler is enabled for the level.
func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle sends the record to all enabled handlers.
func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WithAttrs returns a new handler with additional attributes.
func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

// WithGroup returns a new handler with a group name.
func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// =============================================================================
// Helper Functions
// =============================================================================

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// argsToMap converts slog-style key-value args to a map for LogEntry.Attrs.
func argsToMap(args []any) map[string]any {
	result := make(map[string]any)
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			result[key] = args[i+1]
		}
	}
	return result
}

// =============================================================================
// Built-in Exporters
// =============================================================================

// NopExporter discards all entries. Useful for tests or when export is
// disabled.
type NopExporter struct{}

// Export discards the entry.
func (e *NopExporter) Export(ctx context.Context, entry LogEntry) error { return nil }

// Flush is a no-op.
func (e *NopExporter) Flush(ctx context.Context) error { return nil }

// Close is a no-op.
func (e *NopExporter) Close() error { return nil }

var _ LogExporter = (*NopExporter)(nil)

// BufferedExporter collects entries in memory, letting tests verify what
// was logged:
//
//	exporter := logging.NewBufferedExporter()
//	logger := logging.New(logging.Config{Exporter: exporter})
//	logger.Info("test message", "key", "value")
//	entries := exporter.Entries()
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewBufferedExporter creates a new BufferedExporter.
func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{
		entries: make([]LogEntry, 0, 100),
	}
}

// Export adds the entry to the buffer.
func (e *BufferedExporter) Export(ctx context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

// Flush is a no-op; entries are already in memory.
func (e *BufferedExporter) Flush(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (e *BufferedExporter) Close() error {
	return nil
}

// Entries returns a copy of all collected entries.
func (e *BufferedExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]LogEntry, len(e.entries))
	copy(result, e.entries)
	return result
}

// WriterExporter writes entries to an io.Writer, one line per entry.
type WriterExporter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewWriterExporter creates a new WriterExporter.
func NewWriterExporter(w io.Writer) *WriterExporter {
	return &WriterExporter{w: w}
}

// Export writes the entry to the writer.
func (e *WriterExporter) Export(ctx context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := fmt.Fprintf(e.w, "[%s] %s: %s %v\n",
		entry.Timestamp.Format(time.RFC3339),
		entry.Level,
		entry.Message,
		entry.Attrs,
	)
	return err
}

// Flush is a no-op; writes are immediate.
func (e *WriterExporter) Flush(ctx context.Context) error { return nil }

// Close is a no-op; the exporter doesn't own the writer.
func (e *WriterExporter) Close() error { return nil }
