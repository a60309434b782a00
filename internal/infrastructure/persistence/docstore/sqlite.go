package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/security"
)

// SQLiteStore implements Store on a single documents table. It works against
// both the sqlite3 and libsql drivers. Revision tokens are ULIDs minted on
// every successful write.
type SQLiteStore struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLiteStore creates a store over an established connection.
func NewSQLiteStore(db *database.DB, logger *logging.ChanneledLogger) *SQLiteStore {
	return &SQLiteStore{db: db, logger: logger}
}

// EnsureSchema creates the documents table if it does not exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS documents (
			doc_key TEXT PRIMARY KEY,
			rev TEXT NOT NULL,
			body TEXT NOT NULL,
			start_at INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_documents_start_at ON documents(start_at);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create documents schema: %w", err)
	}
	return nil
}

// Get returns the document for key, or an empty shell when absent.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Document, error) {
	start := time.Now()

	var rev, body string
	err := s.db.QueryRowContext(ctx,
		`SELECT rev, body FROM documents WHERE doc_key = ?`, key).Scan(&rev, &body)
	if err == sql.ErrNoRows {
		if s.logger != nil {
			s.logger.LogStoreOperation("get", key, "absent", time.Since(start))
		}
		return Document{Key: key}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to read document %s: %w", key, err)
	}

	if s.logger != nil {
		s.logger.LogStoreOperation("get", key, "ok", time.Since(start))
	}
	return Document{Key: key, Rev: rev, Body: json.RawMessage(body)}, nil
}

// Set writes body under key with optimistic-concurrency protection.
func (s *SQLiteStore) Set(ctx context.Context, key, expectedRev string, body json.RawMessage) (string, error) {
	start := time.Now()
	newRev := security.GenerateULID()
	startAt := sessionStartMillis(key, body)

	var res sql.Result
	var err error
	if expectedRev == "" {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO documents (doc_key, rev, body, start_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(doc_key) DO NOTHING`,
			key, newRev, string(body), startAt)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE documents SET rev = ?, body = ?, start_at = ? WHERE doc_key = ? AND rev = ?`,
			newRev, string(body), startAt, key, expectedRev)
	}
	if err != nil {
		return "", fmt.Errorf("failed to write document %s: %w", key, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to confirm write for %s: %w", key, err)
	}
	if affected == 0 {
		if s.logger != nil {
			s.logger.LogStoreOperation("set", key, "conflict", time.Since(start))
		}
		return "", ErrRevConflict
	}

	if s.logger != nil {
		s.logger.LogStoreOperation("set", key, "ok", time.Since(start))
	}
	return newRev, nil
}

// FindSessionsByStart returns session documents with start in [from, to).
func (s *SQLiteStore) FindSessionsByStart(ctx context.Context, from, to time.Time) ([]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM documents
		 WHERE doc_key LIKE 'sessions.%' AND doc_key != ?
		   AND start_at IS NOT NULL AND start_at >= ? AND start_at < ?
		 ORDER BY start_at`,
		BootstrapKey, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions by start: %w", err)
	}
	defer rows.Close()

	var results []json.RawMessage
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan session document: %w", err)
		}
		results = append(results, json.RawMessage(body))
	}
	return results, rows.Err()
}

// sessionStartMillis extracts the start timestamp from session documents so
// day queries can range over an indexed column. Non-session documents and
// the bootstrap record carry NULL.
func sessionStartMillis(key string, body json.RawMessage) any {
	if key == BootstrapKey || !strings.HasPrefix(key, "sessions.") {
		return nil
	}

	var probe struct {
		Start time.Time `json:"start"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.Start.IsZero() {
		return nil
	}
	return probe.Start.UnixMilli()
}
