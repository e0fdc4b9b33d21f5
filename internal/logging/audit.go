package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const auditLogName = "chat_log.txt"

// AuditLog is the durable chat transcript: one newline-terminated line per
// accepted message. A mutex serializes appends so concurrent publishers never
// interleave partial lines.
type AuditLog struct {
	mu   sync.Mutex
	path string
}

// NewAuditLog creates the log directory if needed and returns an audit log
// backed by chat_log.txt inside it.
func NewAuditLog(dir string) (*AuditLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	return &AuditLog{path: filepath.Join(dir, auditLogName)}, nil
}

// Append writes one transcript line in the form
// "<local-timestamp>: <user>: <content>". The file is opened per append so a
// transient filesystem fault affects a single message, not the whole session.
func (a *AuditLog) Append(ts time.Time, user, content string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s: %s: %s\n", ts.Local().Format("2006-01-02 15:04:05"), user, content); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// Path returns the location of the transcript file.
func (a *AuditLog) Path() string {
	return a.path
}
