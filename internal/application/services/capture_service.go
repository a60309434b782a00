package services

import (
	"encoding/json"
	"time"

	"github.com/AtRiskMedia/cohort-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
)

// CaptureRequest is one inbound activity event addressed to a single user.
// User and Device come from the envelope; the rest is the request body.
type CaptureRequest struct {
	User   string `json:"-"`
	Device string `json:"-"`

	Action  string          `json:"action"`
	Data    json.RawMessage `json:"data,omitempty"`
	Loc     []float64       `json:"loc,omitempty"`
	LocType string          `json:"loctype,omitempty"`
}

// CaptureResult acknowledges an accepted capture.
type CaptureResult struct {
	Status string `json:"status"`
}

// CaptureService applies capture events to the session registry and fans the
// side effects out: counter increments, version clock advance, waiter
// resolution.
type CaptureService struct {
	engine   *Engine
	counters *CounterService
	logger   *logging.ChanneledLogger
}

// NewCaptureService creates a capture service.
func NewCaptureService(engine *Engine, counters *CounterService, logger *logging.ChanneledLogger) *CaptureService {
	return &CaptureService{
		engine:   engine,
		counters: counters,
		logger:   logger,
	}
}

// Capture validates and applies one event. Validation failures resolve the
// request before any state is touched; the registry, clock, and counters
// stay unchanged.
func (s *CaptureService) Capture(rctx *RequestContext, req *CaptureRequest) {
	if req.User == "" {
		rctx.Fail(invalidRequest("targets must be length one array"))
		return
	}
	if req.Action == "" {
		rctx.Fail(invalidRequest("action missing"))
		return
	}

	s.engine.Do(func() {
		now := time.Now().UTC()
		sess := s.engine.registry.Touch(req.User, req.Device, now)

		item := session.ActivityItem{
			Action: req.Action,
			Date:   now,
			Data:   req.Data,
		}
		// Coordinates count only when supplied as exactly two values.
		if len(req.Loc) == 2 {
			item.Loc = req.Loc
		}
		if req.LocType != "" {
			item.LocType = req.LocType
		}
		sess.Append(item)

		s.logger.Capture().Debug("Event captured",
			"user", req.User,
			"action", req.Action,
			"sessionId", sess.ID,
			"logLength", len(sess.Log),
		)

		s.counters.IncrementAll(&item, req.User)

		s.engine.advance(session.ItemHash(&item))
		s.engine.resolveWaiters(now)

		rctx.Finish(CaptureResult{Status: "DONE"})
	})
}
