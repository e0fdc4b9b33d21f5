// Package logging provides the file-backed application logger and the
// append-only chat audit log used by the relay server.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

const applicationLogName = "application.log"

// Logger writes leveled, timestamped entries to the application log file.
// The underlying log.Logger serializes concurrent writers, so a Logger is
// safe to share across goroutines.
type Logger struct {
	file   *os.File
	logger *log.Logger
}

// NewLogger creates the log directory if needed and opens the application
// log file for appending.
func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, applicationLogName)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{
		file:   file,
		logger: log.New(file, "", 0),
	}, nil
}

func (l *Logger) write(level, msg string) {
	l.logger.Printf("[%s] [%s] %s", time.Now().Format("02.01.2006 15:04:05"), level, msg)
}

// Info logs an informational message.
func (l *Logger) Info(msg string) {
	l.write("INFO", msg)
}

// Warning logs a warning message.
func (l *Logger) Warning(msg string) {
	l.write("WARNING", msg)
}

// Error logs an error message.
func (l *Logger) Error(msg string) {
	l.write("ERROR", msg)
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	return l.file.Close()
}
