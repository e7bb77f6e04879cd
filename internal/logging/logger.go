// Package logging provides config-driven categorized file-based logging for
// casetrail. Logs are written to .casetrail/logs/ with separate files per
// category. Logging is controlled by logging.debug_mode in the workspace
// config - when false, no logs are written.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"casetrail/internal/config"
)

// Category represents a log category/system.
type Category string

const (
	CategoryBoot   Category = "boot"   // Startup, config resolution
	CategoryState  Category = "state"  // Session document load/save
	CategoryMerge  Category = "merge"  // Batch ingestion, score merging
	CategoryLeads  Category = "leads"  // Lead extraction and exploration
	CategoryRefine Category = "refine" // Refinement decisions, candidate ranking
	CategoryQuotes Category = "quotes" // Quote verification runs
	CategoryWatch  Category = "watch"  // Batch drop-directory watcher
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	cfg       config.LoggingConfig
	cfgMu     sync.RWMutex
	logLevel  int
)

// Initialize sets up the logging directory from the loaded config.
// Should be called once at startup with the workspace path. A nil or
// non-debug config makes every logger a silent no-op.
func Initialize(workspace string, lc *config.LoggingConfig) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	cfgMu.Lock()
	if lc != nil {
		cfg = *lc
	}
	switch cfg.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	cfgMu.Unlock()

	if !IsDebugMode() {
		return nil // Silent no-op in production mode
	}

	logsDir = filepath.Join(workspace, ".casetrail", "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== casetrail logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", cfg.Level)
	return nil
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg.IsCategoryEnabled(string(category))
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	path := filepath.Join(logsDir, string(category)+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		logger:   log.New(f, "", log.LstdFlags|log.Lmicroseconds),
		file:     f,
	}
	loggers[category] = l
	return l
}

// Close closes all open log files. Call on shutdown.
func Close() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			_ = l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

func (l *Logger) logf(level int, prefix, format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	cfgMu.RLock()
	threshold := logLevel
	cfgMu.RUnlock()
	if level < threshold {
		return
	}
	l.logger.Printf(prefix+" "+format, args...)
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LevelDebug, "[DEBUG]", format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LevelInfo, "[INFO]", format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LevelWarn, "[WARN]", format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LevelError, "[ERROR]", format, args...)
}

// Timer measures elapsed time for an operation within a category.
type Timer struct {
	category Category
	name     string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, name string) *Timer {
	return &Timer{category: category, name: name, start: time.Now()}
}

// Stop logs the elapsed time at debug level.
func (t *Timer) Stop() {
	Get(t.category).Debug("%s took %s", t.name, time.Since(t.start))
}
