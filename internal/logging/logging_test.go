package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesLeveledEntries(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	require.NoError(t, err)

	logger.Info("server started")
	logger.Warning("something odd")
	logger.Error("something broke")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "application.log"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "[INFO] server started")
	assert.Contains(t, lines[1], "[WARNING] something odd")
	assert.Contains(t, lines[2], "[ERROR] something broke")

	// Every entry carries a bracketed timestamp.
	for _, line := range lines {
		assert.Regexp(t, `^\[\d{2}\.\d{2}\.\d{4} \d{2}:\d{2}:\d{2}\] `, line)
	}
}

func TestAuditLogAppendFormat(t *testing.T) {
	audit, err := NewAuditLog(t.TempDir())
	require.NoError(t, err)

	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local)
	require.NoError(t, audit.Append(ts, "alice", "hi"))

	data, err := os.ReadFile(audit.Path())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15 10:30:00: alice: hi\n", string(data))
}

func TestAuditLogConcurrentAppendsDoNotInterleave(t *testing.T) {
	audit, err := NewAuditLog(t.TempDir())
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, audit.Append(time.Now(), "user", fmt.Sprintf("message %d", n)))
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(audit.Path())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, writers)
	for _, line := range lines {
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}: user: message \d+$`, line)
	}
}

func TestAuditLogAppendFailsWhenDirectoryGone(t *testing.T) {
	dir := t.TempDir()
	audit, err := NewAuditLog(filepath.Join(dir, "logs"))
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(dir, "logs")))
	assert.Error(t, audit.Append(time.Now(), "alice", "hi"))
}
