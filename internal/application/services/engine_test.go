package services

import (
	"context"
	"testing"
	"time"

	"github.com/AtRiskMedia/cohort-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/messaging"
	"github.com/stretchr/testify/require"
)

func TestStatusReflectsFreshEngine(t *testing.T) {
	engine := newTestEngine(t, 12)

	status := mustStatus(t, engine)
	require.Equal(t, session.VersionSeed, status.Hash)
	require.Equal(t, 0, status.Sessions)
	require.Equal(t, 0, status.Waiters)
	require.Equal(t, int64(12), status.NextID)
}

func TestDoWaitRunsOnStateLoop(t *testing.T) {
	engine := newTestEngine(t, 1)

	ran := false
	engine.DoWait(func() { ran = true })
	require.True(t, ran)
}

func TestAdvanceMovesClockAndBroadcasts(t *testing.T) {
	engine := newTestEngine(t, 1)
	client := engine.broadcaster.AddClient()

	var version string
	engine.DoWait(func() {
		version = engine.clock.Advance("event")
		engine.broadcaster.BroadcastVersion(version, engine.registry.Len())
	})

	require.NotEqual(t, session.VersionSeed, version)
	frame := <-client
	require.Contains(t, frame, "event: version")
	require.Contains(t, frame, version)
}

func TestStatusCountsSSEClients(t *testing.T) {
	engine := newTestEngine(t, 1)

	require.Equal(t, 0, mustStatus(t, engine).SSEClients)

	client := engine.broadcaster.AddClient()
	require.Equal(t, 1, mustStatus(t, engine).SSEClients)

	engine.broadcaster.RemoveClient(client)
	require.Equal(t, 0, mustStatus(t, engine).SSEClients)
}

func TestRunDrainsQueuedTasksOnCancel(t *testing.T) {
	logger := newTestLogger(t)
	engine := NewEngine(1, messaging.NewLiveBroadcaster(logger), logger, EngineOptions{
		SessionExpiry:      time.Minute,
		UpdateExpiry:       5 * time.Second,
		UpdateFrequency:    time.Hour,
		WritebackFrequency: time.Hour,
	})

	ran := 0
	for i := 0; i < 5; i++ {
		engine.Do(func() { ran++ })
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine.Run(ctx)

	require.Equal(t, 5, ran)
	require.True(t, engine.Stopped())
}

func TestDoWaitReturnsFalseAfterStop(t *testing.T) {
	logger := newTestLogger(t)
	engine := NewEngine(1, messaging.NewLiveBroadcaster(logger), logger, EngineOptions{
		SessionExpiry:      time.Minute,
		UpdateExpiry:       5 * time.Second,
		UpdateFrequency:    time.Hour,
		WritebackFrequency: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine.Run(ctx)

	done := make(chan bool, 1)
	go func() { done <- engine.DoWait(func() {}) }()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("DoWait blocked after the state loop stopped")
	}

	_, ok := engine.Status()
	require.False(t, ok)
}
