package services

import (
	"testing"
	"time"

	"github.com/AtRiskMedia/cohort-go/internal/domain/entities/session"
	"github.com/stretchr/testify/require"
)

func TestAwaitStaleHashResolvesImmediately(t *testing.T) {
	engine := newTestEngine(t, 1)
	svc := NewLiveService(engine, newTestLogger(t))
	rctx, results := recordingContext(t)

	svc.Await(rctx, &LiveRequest{Hash: "something-old"})

	got := awaitOutcome(t, results)
	require.NoError(t, got.err)
	result := got.body.(session.LiveResult)
	require.Equal(t, session.VersionSeed, result.Hash)
	require.Empty(t, result.Sessions)
}

func TestAwaitEmptyHashTreatedAsStale(t *testing.T) {
	engine := newTestEngine(t, 1)
	engine.DoWait(func() {
		engine.registry.Touch("alice", "mobile", time.Now().UTC())
	})

	svc := NewLiveService(engine, newTestLogger(t))
	rctx, results := recordingContext(t)

	svc.Await(rctx, &LiveRequest{})

	got := awaitOutcome(t, results)
	result := got.body.(session.LiveResult)
	require.Contains(t, result.Sessions, "alice")
}

func TestAwaitCurrentHashStaysPending(t *testing.T) {
	engine := newTestEngine(t, 1)
	svc := NewLiveService(engine, newTestLogger(t))
	rctx, results := recordingContext(t)

	svc.Await(rctx, &LiveRequest{Hash: session.VersionSeed})

	select {
	case <-results:
		t.Fatal("waiter should stay pending while the version is current")
	case <-time.After(100 * time.Millisecond):
	}
	require.Equal(t, 1, mustStatus(t, engine).Waiters)
}

func TestAwaitTimesOutWithBareVersion(t *testing.T) {
	engine := newTestEngine(t, 1)
	engine.opts.UpdateExpiry = 30 * time.Millisecond

	ctx, cancel := contextWithCleanup(t)
	go engine.StartResolver(ctx)
	defer cancel()

	svc := NewLiveService(engine, newTestLogger(t))
	rctx, results := recordingContext(t)

	svc.Await(rctx, &LiveRequest{Hash: session.VersionSeed})

	got := awaitOutcome(t, results)
	require.NoError(t, got.err)
	result := got.body.(session.LiveResult)
	require.Equal(t, session.VersionSeed, result.Hash)
	require.Nil(t, result.Sessions)
}
