// Package messaging provides the SSE broadcaster for live version updates.
package messaging

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
)

// LiveBroadcaster fans version-clock advances out to connected SSE clients.
type LiveBroadcaster struct {
	clients map[chan string]bool
	mu      sync.Mutex
	logger  *logging.ChanneledLogger
}

// NewLiveBroadcaster creates the broadcaster instance.
func NewLiveBroadcaster(logger *logging.ChanneledLogger) *LiveBroadcaster {
	return &LiveBroadcaster{
		clients: make(map[chan string]bool),
		logger:  logger,
	}
}

// AddClient registers a new SSE client and returns its message channel.
func (b *LiveBroadcaster) AddClient() chan string {
	ch := make(chan string, 10)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[ch] = true

	b.logger.SSE().Debug("SSE client registered", "clientCount", len(b.clients))
	return ch
}

// RemoveClient unregisters an SSE client.
func (b *LiveBroadcaster) RemoveClient(ch chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.clients[ch] {
		delete(b.clients, ch)
		close(ch)
	}
	b.logger.SSE().Debug("SSE client unregistered", "clientCount", len(b.clients))
}

// ClientCount returns the number of connected clients.
func (b *LiveBroadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// BroadcastVersion pushes a version advance to every connected client. Slow
// clients with a full channel miss the event; they catch up on the next one.
func (b *LiveBroadcaster) BroadcastVersion(hash string, sessionCount int) {
	payload, _ := json.Marshal(map[string]any{
		"hash":     hash,
		"sessions": sessionCount,
	})
	message := fmt.Sprintf("event: version\ndata: %s\n\n", payload)

	b.mu.Lock()
	defer b.mu.Unlock()

	for client := range b.clients {
		select {
		case client <- message:
		default:
		}
	}

	if len(b.clients) > 0 {
		b.logger.SSE().Debug("Version broadcast", "hash", hash, "clientCount", len(b.clients))
	}
}
