// Package docstore provides the revisioned document store the engine
// persists into. Every document carries an opaque revision token; a write
// succeeds only when the caller presents the token obtained from its read,
// giving per-key optimistic concurrency. The engine never retries a
// conflicting write.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrRevConflict reports that a Set lost the optimistic-concurrency race.
var ErrRevConflict = errors.New("document revision conflict")

// Document is one stored key/body pair with its current revision token.
// An absent key reads back as an empty shell: zero Rev and nil Body.
type Document struct {
	Key  string
	Rev  string
	Body json.RawMessage
}

// Store is the boundary interface to the revisioned document store.
type Store interface {
	// Get returns the document for key, or an empty shell when absent.
	Get(ctx context.Context, key string) (Document, error)

	// Set writes body under key. expectedRev must match the stored revision
	// (empty for a first write) or ErrRevConflict is returned. On success the
	// newly minted revision token is returned.
	Set(ctx context.Context, key, expectedRev string, body json.RawMessage) (string, error)

	// FindSessionsByStart returns persisted session documents whose start
	// falls within [from, to).
	FindSessionsByStart(ctx context.Context, from, to time.Time) ([]json.RawMessage, error)
}

// BootstrapKey is the document holding the id allocator state.
const BootstrapKey = "sessions.bootstrap"

// SessionKey returns the document key for a persisted session.
func SessionKey(id int64) string {
	return fmt.Sprintf("sessions.%d", id)
}

// CounterKey returns the document key for a counter bucket.
func CounterKey(bucket string) string {
	return "counters." + bucket
}

// BootstrapRecord is the body of the bootstrap document.
type BootstrapRecord struct {
	NextID int64 `json:"nextid"`
}

// CounterRecord is the body of a counter bucket document.
type CounterRecord struct {
	Data map[string]int64 `json:"data"`
}
