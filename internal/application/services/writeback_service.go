package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/AtRiskMedia/cohort-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/persistence/docstore"
)

// WritebackService is the periodic reconciliation task. Each cycle persists
// the id allocator, evicts sessions inactive past the threshold, and flushes
// every session (evicted and live) to the store with optimistic writes.
// There is no cross-session atomicity: every flush is an independent
// read-overwrite-write, and a conflict drops that flush until the next
// cycle re-flushes the survivors.
type WritebackService struct {
	engine *Engine
	store  docstore.Store
	logger *logging.ChanneledLogger
}

// NewWritebackService creates the scheduler.
func NewWritebackService(engine *Engine, store docstore.Store, logger *logging.ChanneledLogger) *WritebackService {
	return &WritebackService{
		engine: engine,
		store:  store,
		logger: logger,
	}
}

// Start runs writeback cycles on the configured interval until ctx is
// canceled, then runs one final cycle so a graceful shutdown flushes state.
func (s *WritebackService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.engine.opts.WritebackFrequency)
	defer ticker.Stop()

	s.logger.Writeback().Info("Writeback scheduler started",
		"interval", s.engine.opts.WritebackFrequency,
		"sessionExpiry", s.engine.opts.SessionExpiry,
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Shutdown().Info("Running final writeback cycle")
			s.RunCycle(context.Background())
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle executes one writeback cycle. The registry sweep happens on the
// state loop; all store I/O happens on this goroutine afterwards.
func (s *WritebackService) RunCycle(ctx context.Context) {
	start := time.Now()

	var (
		nextID  int64
		removed map[string]*session.Session
		active  map[string]*session.Session
	)
	ok := s.engine.DoWait(func() {
		now := time.Now().UTC()
		nextID = s.engine.registry.NextID()
		removed = s.engine.registry.RemoveExpired(now, s.engine.opts.SessionExpiry)
		for range removed {
			s.engine.advance(session.RemovalSentinel)
		}
		if len(removed) > 0 {
			s.engine.resolveWaiters(now)
		}
		active = s.engine.registry.Snapshot()
	})
	if !ok {
		s.logger.Writeback().Error("Writeback cycle skipped, engine loop already stopped")
		return
	}

	s.persistBootstrap(ctx, nextID)

	for user, sess := range removed {
		s.flushSession(ctx, user, sess, true)
	}
	for user, sess := range active {
		s.flushSession(ctx, user, sess, false)
	}

	s.logger.Writeback().Debug("Writeback cycle finished",
		"expired", len(removed),
		"active", len(active),
		"duration", time.Since(start),
	)
}

// persistBootstrap rewrites the bootstrap record with the current allocator
// value.
func (s *WritebackService) persistBootstrap(ctx context.Context, nextID int64) {
	doc, err := s.store.Get(ctx, docstore.BootstrapKey)
	if err != nil {
		s.logger.Writeback().Error("Bootstrap read failed", "error", err.Error())
		return
	}

	body, err := json.Marshal(docstore.BootstrapRecord{NextID: nextID})
	if err != nil {
		s.logger.Writeback().Error("Bootstrap encode failed", "error", err.Error())
		return
	}

	if _, err := s.store.Set(ctx, docstore.BootstrapKey, doc.Rev, body); err != nil {
		if errors.Is(err, docstore.ErrRevConflict) {
			s.logger.Writeback().Warn("Bootstrap write dropped on conflict", "nextId", nextID)
			return
		}
		s.logger.Writeback().Error("Bootstrap write failed", "error", err.Error())
	}
}

// flushSession persists one session with the read-overwrite-write sequence.
// A conflict is logged and dropped; the next cycle retries implicitly for
// sessions still live.
func (s *WritebackService) flushSession(ctx context.Context, user string, sess *session.Session, expired bool) {
	key := docstore.SessionKey(sess.ID)

	doc, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Writeback().Error("Session read failed", "sessionId", sess.ID, "user", user, "error", err.Error())
		return
	}

	body, err := json.Marshal(sess)
	if err != nil {
		s.logger.Writeback().Error("Session encode failed", "sessionId", sess.ID, "user", user, "error", err.Error())
		return
	}

	status := "ok"
	if _, err := s.store.Set(ctx, key, doc.Rev, body); err != nil {
		if errors.Is(err, docstore.ErrRevConflict) {
			status = "conflict"
		} else {
			s.logger.Writeback().Error("Session write failed", "sessionId", sess.ID, "user", user, "error", err.Error())
			return
		}
	}

	s.logger.Writeback().Debug("Session writeback",
		"sessionId", sess.ID,
		"user", user,
		"expired", expired,
		"status", status,
	)
}
