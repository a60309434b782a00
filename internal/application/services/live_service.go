package services

import (
	"time"

	"github.com/AtRiskMedia/cohort-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
)

// LiveRequest carries the last version the client has seen. An absent hash
// always reads as stale, so first-time clients get the full snapshot.
type LiveRequest struct {
	Hash string `json:"hash"`
}

// LiveService answers long-poll live queries against the version clock.
type LiveService struct {
	engine *Engine
	logger *logging.ChanneledLogger
}

// NewLiveService creates a live query service.
func NewLiveService(engine *Engine, logger *logging.ChanneledLogger) *LiveService {
	return &LiveService{engine: engine, logger: logger}
}

// Await registers a waiter for the request. Registration never blocks the
// caller: resolution is asynchronous through the request context, either on
// the immediate pass (stale hash), on a later mutation, or on timeout.
func (s *LiveService) Await(rctx *RequestContext, req *LiveRequest) {
	s.engine.Do(func() {
		now := time.Now().UTC()
		s.engine.waiters.Add(&session.Waiter{
			LastSeen:     req.Hash,
			RegisteredAt: now,
			Respond: func(result session.LiveResult) {
				rctx.Finish(result)
			},
		})
		s.engine.resolveWaiters(now)
	})
}
