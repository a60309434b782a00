package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AtRiskMedia/cohort-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/persistence/docstore"
)

// BucketKeys derives the three counter bucket keys for a timestamp. The
// month is zero-based (March is 2), matching the persisted key format:
// 2024-03-05 maps to 5d2m2024y, 2m2024y, 2024y.
func BucketKeys(t time.Time) (day, month, year string) {
	t = t.UTC()
	day = fmt.Sprintf("%dd%dm%dy", t.Day(), int(t.Month())-1, t.Year())
	month = fmt.Sprintf("%dm%dy", int(t.Month())-1, t.Year())
	year = fmt.Sprintf("%dy", t.Year())
	return day, month, year
}

// CounterRequest selects a calendar day; month is zero-based. Pointer fields
// distinguish missing from zero.
type CounterRequest struct {
	Day   *int `json:"day"`
	Month *int `json:"month"`
	Year  *int `json:"year"`
}

// Validate reports the first missing field, mirroring the request contract.
func (r *CounterRequest) Validate() error {
	if r.Day == nil {
		return invalidRequest("day missing")
	}
	if r.Month == nil {
		return invalidRequest("month missing")
	}
	if r.Year == nil {
		return invalidRequest("year missing")
	}
	return nil
}

// CounterQueryResult maps action to count per granularity.
type CounterQueryResult struct {
	Day   map[string]int64 `json:"day"`
	Month map[string]int64 `json:"month"`
	Year  map[string]int64 `json:"year"`
}

// CounterService aggregates activity into day/month/year counter buckets in
// the revisioned store.
type CounterService struct {
	store  docstore.Store
	logger *logging.ChanneledLogger
}

// NewCounterService creates a counter service.
func NewCounterService(store docstore.Store, logger *logging.ChanneledLogger) *CounterService {
	return &CounterService{store: store, logger: logger}
}

// IncrementAll bumps the item's action in all three buckets tied to the
// item's timestamp. The three increments run as independent fire-and-forget
// writes; a revision conflict drops that increment.
func (s *CounterService) IncrementAll(item *session.ActivityItem, user string) {
	dayKey, monthKey, yearKey := BucketKeys(item.Date)
	for _, bucket := range []string{dayKey, monthKey, yearKey} {
		go s.Increment(context.Background(), bucket, item.Action, user)
	}
}

// Increment reads the bucket document, bumps the action count, and writes it
// back with the revision from the read. No retry on conflict.
func (s *CounterService) Increment(ctx context.Context, bucket, action, user string) {
	log := s.logger.WithOperation(logging.ChannelCounter, "increment")
	key := docstore.CounterKey(bucket)

	doc, err := s.store.Get(ctx, key)
	if err != nil {
		log.Error("Counter read failed", "bucket", bucket, "action", action, "error", err.Error())
		return
	}

	record, err := decodeCounter(doc)
	if err != nil {
		log.Error("Counter document malformed", "bucket", bucket, "error", err.Error())
		return
	}
	record.Data[action]++

	body, err := json.Marshal(record)
	if err != nil {
		log.Error("Counter encode failed", "bucket", bucket, "error", err.Error())
		return
	}

	_, err = s.store.Set(ctx, key, doc.Rev, body)
	switch {
	case errors.Is(err, docstore.ErrRevConflict):
		// Lost the race; the increment is dropped, not retried.
		log.Warn("Counter increment dropped on conflict", "bucket", bucket, "action", action, "user", user)
	case err != nil:
		log.Error("Counter write failed", "bucket", bucket, "action", action, "error", err.Error())
	default:
		log.Debug("Counter incremented", "bucket", bucket, "action", action, "user", user)
	}
}

// Query fetches the three bucket documents for the requested date
// concurrently and assembles the combined mapping once all three complete.
func (s *CounterService) Query(rctx *RequestContext, req *CounterRequest) {
	if err := req.Validate(); err != nil {
		rctx.Fail(err)
		return
	}

	dayKey := fmt.Sprintf("%dd%dm%dy", *req.Day, *req.Month, *req.Year)
	monthKey := fmt.Sprintf("%dm%dy", *req.Month, *req.Year)
	yearKey := fmt.Sprintf("%dy", *req.Year)

	go func() {
		ctx := context.Background()
		result := CounterQueryResult{}
		errs := make([]error, 3)

		var wg sync.WaitGroup
		fetch := func(bucket string, dst *map[string]int64, errSlot *error) {
			defer wg.Done()
			doc, err := s.store.Get(ctx, docstore.CounterKey(bucket))
			if err != nil {
				*errSlot = err
				return
			}
			record, err := decodeCounter(doc)
			if err != nil {
				*errSlot = err
				return
			}
			*dst = record.Data
		}

		wg.Add(3)
		go fetch(dayKey, &result.Day, &errs[0])
		go fetch(monthKey, &result.Month, &errs[1])
		go fetch(yearKey, &result.Year, &errs[2])
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				rctx.Fail(fmt.Errorf("counter query failed: %w", err))
				return
			}
		}
		rctx.Finish(result)
	}()
}

// decodeCounter parses a counter document, yielding an empty record for an
// absent document.
func decodeCounter(doc docstore.Document) (docstore.CounterRecord, error) {
	record := docstore.CounterRecord{}
	if doc.Body != nil {
		if err := json.Unmarshal(doc.Body, &record); err != nil {
			return record, err
		}
	}
	if record.Data == nil {
		record.Data = make(map[string]int64)
	}
	return record, nil
}
