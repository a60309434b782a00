package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/persistence/database"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.NewConnection("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewSQLiteStore(db, nil)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestGetAbsentReturnsEmptyShell(t *testing.T) {
	store := newTestStore(t)

	doc, err := store.Get(context.Background(), "sessions.99")
	require.NoError(t, err)
	require.Equal(t, "sessions.99", doc.Key)
	require.Empty(t, doc.Rev)
	require.Nil(t, doc.Body)
}

func TestSetCreateAndReadBack(t *testing.T) {
	store := newTestStore(t)

	rev, err := store.Set(context.Background(), "counters.2024y", "", json.RawMessage(`{"data":{"read":1}}`))
	require.NoError(t, err)
	require.NotEmpty(t, rev)

	doc, err := store.Get(context.Background(), "counters.2024y")
	require.NoError(t, err)
	require.Equal(t, rev, doc.Rev)
	require.JSONEq(t, `{"data":{"read":1}}`, string(doc.Body))
}

func TestSetCreateConflictsWhenKeyExists(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Set(context.Background(), "counters.2024y", "", json.RawMessage(`{}`))
	require.NoError(t, err)

	_, err = store.Set(context.Background(), "counters.2024y", "", json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrRevConflict)
}

func TestSetUpdateRequiresMatchingRev(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rev, err := store.Set(ctx, "counters.2024y", "", json.RawMessage(`{"data":{"read":1}}`))
	require.NoError(t, err)

	newRev, err := store.Set(ctx, "counters.2024y", rev, json.RawMessage(`{"data":{"read":2}}`))
	require.NoError(t, err)
	require.NotEqual(t, rev, newRev)

	// The revision from before the overwrite no longer wins.
	_, err = store.Set(ctx, "counters.2024y", rev, json.RawMessage(`{"data":{"read":3}}`))
	require.ErrorIs(t, err, ErrRevConflict)

	doc, err := store.Get(ctx, "counters.2024y")
	require.NoError(t, err)
	require.JSONEq(t, `{"data":{"read":2}}`, string(doc.Body))
}

func TestSetUpdateAbsentKeyConflicts(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Set(context.Background(), "sessions.1", "01ARZ3NDEKTSV4RRFFQ69G5FAV", json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrRevConflict)
}

func TestFindSessionsByStartRangesHalfOpen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	putSession := func(id int64, start time.Time) {
		body, err := json.Marshal(map[string]any{"id": id, "user": fmt.Sprintf("u%d", id), "start": start})
		require.NoError(t, err)
		_, err = store.Set(ctx, SessionKey(id), "", body)
		require.NoError(t, err)
	}

	putSession(1, day.Add(-time.Millisecond)) // before the window
	putSession(2, day)                        // inclusive lower bound
	putSession(3, day.Add(23*time.Hour))      // inside
	putSession(4, day.Add(24*time.Hour))      // exclusive upper bound

	// The bootstrap record never shows up in day queries.
	_, err := store.Set(ctx, BootstrapKey, "", json.RawMessage(`{"nextid":5}`))
	require.NoError(t, err)

	results, err := store.FindSessionsByStart(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, results, 2)

	var ids []int64
	for _, raw := range results {
		var probe struct {
			ID int64 `json:"id"`
		}
		require.NoError(t, json.Unmarshal(raw, &probe))
		ids = append(ids, probe.ID)
	}
	require.Equal(t, []int64{2, 3}, ids)
}

func TestSessionStartMillis(t *testing.T) {
	start := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	body, err := json.Marshal(map[string]any{"start": start})
	require.NoError(t, err)

	require.Equal(t, start.UnixMilli(), sessionStartMillis("sessions.7", body))
	require.Nil(t, sessionStartMillis(BootstrapKey, body))
	require.Nil(t, sessionStartMillis("counters.2024y", body))
	require.Nil(t, sessionStartMillis("sessions.7", json.RawMessage(`{}`)))
	require.Nil(t, sessionStartMillis("sessions.7", json.RawMessage(`not json`)))
}
