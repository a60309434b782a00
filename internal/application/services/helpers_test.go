package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/persistence/docstore"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: false,
		DefaultLevel:    slog.LevelError + 4,
	})
	require.NoError(t, err)
	return logger
}

func newTestEngine(t *testing.T, nextID int64) *Engine {
	t.Helper()
	logger := newTestLogger(t)
	engine := NewEngine(nextID, messaging.NewLiveBroadcaster(logger), logger, EngineOptions{
		SessionExpiry:      time.Minute,
		UpdateExpiry:       5 * time.Second,
		UpdateFrequency:    10 * time.Millisecond,
		WritebackFrequency: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go engine.Run(ctx)
	return engine
}

func mustStatus(t *testing.T, e *Engine) EngineStatus {
	t.Helper()
	status, ok := e.Status()
	require.True(t, ok)
	return status
}

func contextWithCleanup(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx, cancel
}

// outcome is one resolved request, success or failure.
type outcome struct {
	body any
	err  error
}

func recordingContext(t *testing.T) (*RequestContext, chan outcome) {
	t.Helper()
	results := make(chan outcome, 1)
	rctx := NewRequestContext(newTestLogger(t), logging.ChannelDebug, func(body any, err error) {
		results <- outcome{body: body, err: err}
	})
	return rctx, results
}

func awaitOutcome(t *testing.T, results chan outcome) outcome {
	t.Helper()
	select {
	case got := <-results:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("request was not resolved")
		return outcome{}
	}
}

// memStore is an in-memory docstore.Store with the same optimistic write
// semantics as the SQLite implementation.
type memStore struct {
	mu       sync.Mutex
	docs     map[string]docstore.Document
	revs     int
	conflict map[string]bool

	findFrom   time.Time
	findTo     time.Time
	findResult []json.RawMessage
	findErr    error
}

func newMemStore() *memStore {
	return &memStore{
		docs:     make(map[string]docstore.Document),
		conflict: make(map[string]bool),
	}
}

func (m *memStore) Get(ctx context.Context, key string) (docstore.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, exists := m.docs[key]; exists {
		return doc, nil
	}
	return docstore.Document{Key: key}, nil
}

func (m *memStore) Set(ctx context.Context, key, expectedRev string, body json.RawMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conflict[key] {
		return "", docstore.ErrRevConflict
	}

	current, exists := m.docs[key]
	if expectedRev == "" {
		if exists {
			return "", docstore.ErrRevConflict
		}
	} else if !exists || current.Rev != expectedRev {
		return "", docstore.ErrRevConflict
	}

	m.revs++
	rev := fmt.Sprintf("rev-%d", m.revs)
	m.docs[key] = docstore.Document{
		Key:  key,
		Rev:  rev,
		Body: append(json.RawMessage(nil), body...),
	}
	return rev, nil
}

func (m *memStore) FindSessionsByStart(ctx context.Context, from, to time.Time) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findFrom, m.findTo = from, to
	return m.findResult, m.findErr
}

func (m *memStore) put(t *testing.T, key string, body any) string {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	rev, err := m.Set(context.Background(), key, m.currentRev(key), raw)
	require.NoError(t, err)
	return rev
}

func (m *memStore) currentRev(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[key].Rev
}

func (m *memStore) counterValue(t *testing.T, bucket, action string) int64 {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, exists := m.docs[docstore.CounterKey(bucket)]
	if !exists {
		return 0
	}
	var record docstore.CounterRecord
	require.NoError(t, json.Unmarshal(doc.Body, &record))
	return record.Data[action]
}
