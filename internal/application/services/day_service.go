package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/persistence/docstore"
)

// DayResult lists the persisted session documents for one calendar day.
type DayResult struct {
	Sessions []json.RawMessage `json:"sessions"`
}

// DayService answers historical day queries from the revisioned store.
type DayService struct {
	store  docstore.Store
	logger *logging.ChanneledLogger
}

// NewDayService creates a day query service.
func NewDayService(store docstore.Store, logger *logging.ChanneledLogger) *DayService {
	return &DayService{store: store, logger: logger}
}

// Query returns persisted sessions whose start falls within the requested
// day, [00:00, next day 00:00) UTC. The month is zero-based like the counter
// bucket keys.
func (s *DayService) Query(rctx *RequestContext, req *CounterRequest) {
	if err := req.Validate(); err != nil {
		rctx.Fail(err)
		return
	}

	begin := time.Date(*req.Year, time.Month(*req.Month+1), *req.Day, 0, 0, 0, 0, time.UTC)
	end := begin.Add(24 * time.Hour)

	go func() {
		sessions, err := s.store.FindSessionsByStart(context.Background(), begin, end)
		if err != nil {
			rctx.Fail(fmt.Errorf("day query failed: %w", err))
			return
		}
		if sessions == nil {
			sessions = []json.RawMessage{}
		}
		rctx.Finish(DayResult{Sessions: sessions})
	}()
}
