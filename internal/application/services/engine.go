package services

import (
	"context"
	"time"

	"github.com/AtRiskMedia/cohort-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cohort-go/pkg/config"
)

// EngineOptions holds the engine timers.
type EngineOptions struct {
	SessionExpiry      time.Duration // inactivity threshold for the expiry sweep
	UpdateExpiry       time.Duration // how long a current-version waiter stays queued
	UpdateFrequency    time.Duration // waiter resolution tick
	WritebackFrequency time.Duration // persistence cycle tick
}

// DefaultEngineOptions returns the configured engine timers.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		SessionExpiry:      config.SessionExpiry,
		UpdateExpiry:       config.UpdateExpiry,
		UpdateFrequency:    config.UpdateFrequency,
		WritebackFrequency: config.WritebackFrequency,
	}
}

// Engine owns the mutable core state: the session registry, the version
// clock, and the waiter queue. All mutation funnels through a single task
// loop, so no two mutations ever interleave. Store and bus I/O run on their
// own goroutines and re-enter the loop via Do when they need shared state.
type Engine struct {
	registry *session.Registry
	clock    *session.Clock
	waiters  *session.WaiterQueue

	broadcaster *messaging.LiveBroadcaster
	logger      *logging.ChanneledLogger
	opts        EngineOptions

	tasks     chan func()
	stopped   chan struct{}
	startedAt time.Time
}

// NewEngine creates the engine with the id allocator resuming at nextID.
func NewEngine(nextID int64, broadcaster *messaging.LiveBroadcaster, logger *logging.ChanneledLogger, opts EngineOptions) *Engine {
	return &Engine{
		registry:    session.NewRegistry(nextID),
		clock:       session.NewClock(),
		waiters:     session.NewWaiterQueue(),
		broadcaster: broadcaster,
		logger:      logger,
		opts:        opts,
		tasks:       make(chan func(), 256),
		stopped:     make(chan struct{}),
		startedAt:   time.Now().UTC(),
	}
}

// Run consumes the task queue until ctx is canceled, then drains tasks
// already queued so no DoWait caller is stranded. It must run on exactly one
// goroutine.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.stopped)

	e.logger.System().Info("Engine state loop started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Shutdown().Info("Engine state loop stopping")
			for {
				select {
				case task := <-e.tasks:
					task()
				default:
					return
				}
			}
		case task := <-e.tasks:
			task()
		}
	}
}

// Do schedules a task onto the state loop without waiting for it.
func (e *Engine) Do(task func()) {
	e.tasks <- task
}

// DoWait schedules a task onto the state loop and blocks until it ran. It
// reports false without running the task once the loop has stopped.
func (e *Engine) DoWait(task func()) bool {
	done := make(chan struct{})
	wrapped := func() {
		task()
		close(done)
	}

	select {
	case e.tasks <- wrapped:
	case <-e.stopped:
		return false
	}

	select {
	case <-done:
		return true
	case <-e.stopped:
		// The loop exited between enqueue and pickup; the drain pass may
		// still have run the task.
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

// Stopped reports whether the state loop has exited.
func (e *Engine) Stopped() bool {
	select {
	case <-e.stopped:
		return true
	default:
		return false
	}
}

// StartResolver runs the periodic waiter resolution tick so a waiter is
// never starved even with no new events.
func (e *Engine) StartResolver(ctx context.Context) {
	ticker := time.NewTicker(e.opts.UpdateFrequency)
	defer ticker.Stop()

	e.logger.Live().Info("Waiter resolver started", "interval", e.opts.UpdateFrequency)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Do(func() {
				e.resolveWaiters(time.Now().UTC())
			})
		}
	}
}

// advance chains next into the version clock and fans the new version out to
// SSE clients. Loop-only.
func (e *Engine) advance(next string) {
	version := e.clock.Advance(next)
	e.broadcaster.BroadcastVersion(version, e.registry.Len())
}

// resolveWaiters runs one resolution pass against the current version.
// Loop-only.
func (e *Engine) resolveWaiters(now time.Time) {
	resolved := e.waiters.Resolve(e.clock.Current(), e.registry.Snapshot, now, e.opts.UpdateExpiry)
	if resolved > 0 {
		e.logger.Live().Debug("Waiters resolved", "resolved", resolved, "pending", e.waiters.Len(), "hash", e.clock.Current())
	}
}

// EngineStatus is a point-in-time snapshot of the engine for the operator
// surface.
type EngineStatus struct {
	Hash       string `json:"hash"`
	Sessions   int    `json:"sessions"`
	Waiters    int    `json:"waiters"`
	SSEClients int    `json:"sseClients"`
	NextID     int64  `json:"nextId"`
	UptimeSec  int64  `json:"uptimeSec"`
}

// Status captures a consistent snapshot via the state loop. It reports false
// once the loop has stopped.
func (e *Engine) Status() (EngineStatus, bool) {
	var status EngineStatus
	ok := e.DoWait(func() {
		status = EngineStatus{
			Hash:       e.clock.Current(),
			Sessions:   e.registry.Len(),
			Waiters:    e.waiters.Len(),
			SSEClients: e.broadcaster.ClientCount(),
			NextID:     e.registry.NextID(),
			UptimeSec:  int64(time.Since(e.startedAt).Seconds()),
		}
	})
	return status, ok
}
