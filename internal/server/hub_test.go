package server

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/logging"
)

func newTestLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

// newTestHubAt builds a hub whose audit log lives in dir.
func newTestHubAt(t *testing.T, dir string) *Hub {
	t.Helper()
	audit, err := logging.NewAuditLog(dir)
	require.NoError(t, err)
	return NewHub(*NewConfig(), NewRegistry(), audit, newTestLogger(t))
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return newTestHubAt(t, t.TempDir())
}

func registerSessions(t *testing.T, hub *Hub, n int) []*Client {
	t.Helper()
	clients := make([]*Client, n)
	for i := range clients {
		clients[i] = NewClient(nil, hub, "127.0.0.1:9000")
		hub.Registry().Register(clients[i])
	}
	return clients
}

func readAudit(t *testing.T, hub *Hub) string {
	t.Helper()
	data, err := os.ReadFile(hub.audit.Path())
	require.NoError(t, err)
	return string(data)
}

func TestPublishEchoesToEverySessionIncludingSender(t *testing.T) {
	hub := newTestHub(t)
	clients := registerSessions(t, hub, 3)
	sender := clients[0]

	frame := []byte(`{"User":"alice","Content":"hi","Timestamp":"2024-01-15T10:30:00Z"}`)
	require.NoError(t, hub.Publish(sender, frame))

	for _, c := range clients {
		select {
		case got := <-c.SendQueue():
			// The original bytes go out verbatim, sender included.
			assert.Equal(t, frame, got)
		default:
			t.Fatalf("session %s did not receive the broadcast", c.ID())
		}
	}

	// Exactly one audit line, already durable when Publish returned.
	audit := readAudit(t, hub)
	assert.Equal(t, 1, strings.Count(audit, "\n"))
	assert.Contains(t, audit, "alice: hi")
}

func TestPublishBindsDisplayNameToSender(t *testing.T) {
	hub := newTestHub(t)
	clients := registerSessions(t, hub, 1)

	frame := []byte(`{"User":"alice","Content":"hi"}`)
	require.NoError(t, hub.Publish(clients[0], frame))

	assert.Equal(t, "alice", hub.Registry().DisplayName(clients[0]))
}

func TestPublishWithoutUserLogsUnknown(t *testing.T) {
	hub := newTestHub(t)
	clients := registerSessions(t, hub, 1)

	require.NoError(t, hub.Publish(clients[0], []byte(`{"Content":"anonymous hello"}`)))

	assert.Contains(t, readAudit(t, hub), "Unknown: anonymous hello")
	assert.Equal(t, "", hub.Registry().DisplayName(clients[0]))
}

func TestPublishPreservesPerSenderOrder(t *testing.T) {
	hub := newTestHub(t)
	clients := registerSessions(t, hub, 2)

	require.NoError(t, hub.Publish(clients[0], []byte(`{"User":"alice","Content":"first"}`)))
	require.NoError(t, hub.Publish(clients[0], []byte(`{"User":"alice","Content":"second"}`)))

	for _, c := range clients {
		first := <-c.SendQueue()
		second := <-c.SendQueue()
		assert.Contains(t, string(first), "first")
		assert.Contains(t, string(second), "second")
	}

	audit := readAudit(t, hub)
	assert.Less(t, strings.Index(audit, "first"), strings.Index(audit, "second"))
}

func TestMalformedFrameProducesNoAuditWriteAndNoBroadcast(t *testing.T) {
	hub := newTestHub(t)
	clients := registerSessions(t, hub, 2)

	err := hub.Publish(clients[0], []byte(`{not json`))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)

	_, statErr := os.Stat(hub.audit.Path())
	assert.True(t, os.IsNotExist(statErr), "malformed frame must not reach the audit log")

	for _, c := range clients {
		assert.Empty(t, c.SendQueue())
	}

	// The sender stays registered; a bad frame never ends the session.
	assert.Equal(t, 2, hub.Registry().Len())
}

func TestPersistFailureDoesNotBlockDelivery(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audit")
	hub := newTestHubAt(t, dir)
	clients := registerSessions(t, hub, 2)

	// Make the append fail after setup.
	require.NoError(t, os.RemoveAll(dir))

	frame := []byte(`{"User":"alice","Content":"hi"}`)
	err := hub.Publish(clients[0], frame)
	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)

	for _, c := range clients {
		select {
		case got := <-c.SendQueue():
			assert.Equal(t, frame, got)
		default:
			t.Fatal("delivery was blocked by the audit log fault")
		}
	}
}

func TestPublishEvictsSessionsWithFullQueues(t *testing.T) {
	hub := newTestHub(t)
	clients := registerSessions(t, hub, 2)
	stuck := clients[1]

	for i := 0; i < sendQueueSize; i++ {
		stuck.send <- []byte("backlog")
	}

	require.NoError(t, hub.Publish(clients[0], []byte(`{"User":"alice","Content":"hi"}`)))

	// The healthy session got the message; the stuck one was dropped.
	assert.Equal(t, 1, hub.Registry().Len())
	assert.Equal(t, "alice", hub.Registry().DisplayName(clients[0]))
	found := false
	for payload := range stuck.SendQueue() {
		if strings.Contains(string(payload), "hi") {
			found = true
		}
	}
	assert.False(t, found, "evicted session must not receive the new message")
}

func TestEndSessionIsSafeToCallTwice(t *testing.T) {
	hub := newTestHub(t)
	clients := registerSessions(t, hub, 1)

	hub.EndSession(clients[0])
	hub.EndSession(clients[0])
	assert.Equal(t, 0, hub.Registry().Len())
}

func TestHubShutdownWithIdleSessions(t *testing.T) {
	hub := newTestHub(t)
	registerSessions(t, hub, 3)

	require.NoError(t, hub.Shutdown(time.Second))
	assert.Equal(t, 0, hub.Registry().Len())
}

func TestParseAndPersistErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")
	assert.ErrorIs(t, &ParseError{Err: cause}, cause)
	assert.ErrorIs(t, &PersistError{Err: cause}, cause)
}
