package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/AtRiskMedia/cohort-go/internal/application/services"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// CounterHandlers serves counter and day queries over HTTP with the same
// request contract as the bus subjects (month is zero-based).
type CounterHandlers struct {
	counter *services.CounterService
	day     *services.DayService
	logger  *logging.ChanneledLogger
}

// NewCounterHandlers creates counter handlers with injected dependencies.
func NewCounterHandlers(counter *services.CounterService, day *services.DayService, logger *logging.ChanneledLogger) *CounterHandlers {
	return &CounterHandlers{
		counter: counter,
		day:     day,
		logger:  logger,
	}
}

// GetCounters returns the day/month/year action counts for a date.
func (h *CounterHandlers) GetCounters(c *gin.Context) {
	req, ok := dateRequest(c)
	if !ok {
		return
	}
	respondQuery(c, h.logger, logging.ChannelCounter, func(rctx *services.RequestContext) {
		h.counter.Query(rctx, req)
	})
}

// GetDaySessions returns the persisted sessions that started on a date.
func (h *CounterHandlers) GetDaySessions(c *gin.Context) {
	req, ok := dateRequest(c)
	if !ok {
		return
	}
	respondQuery(c, h.logger, logging.ChannelStore, func(rctx *services.RequestContext) {
		h.day.Query(rctx, req)
	})
}

// dateRequest parses the day/month/year query parameters, reporting the
// first missing or malformed one.
func dateRequest(c *gin.Context) (*services.CounterRequest, bool) {
	req := &services.CounterRequest{}
	for _, field := range []struct {
		name string
		dst  **int
	}{
		{"day", &req.Day},
		{"month", &req.Month},
		{"year", &req.Year},
	} {
		raw := c.Query(field.name)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + field.name})
			return nil, false
		}
		*field.dst = &value
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return req, true
}

// queryOutcome carries a service resolution back onto the handler goroutine.
type queryOutcome struct {
	body any
	err  error
}

// respondQuery runs a service operation and writes its single resolution as
// the HTTP response.
func respondQuery(c *gin.Context, logger *logging.ChanneledLogger, channel logging.Channel, run func(*services.RequestContext)) {
	resolved := make(chan queryOutcome, 1)
	rctx := services.NewRequestContext(logger, channel, func(body any, err error) {
		resolved <- queryOutcome{body: body, err: err}
	})

	run(rctx)

	select {
	case outcome := <-resolved:
		if outcome.err != nil {
			status := http.StatusInternalServerError
			var invalid *services.InvalidRequestError
			if errors.As(outcome.err, &invalid) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": outcome.err.Error()})
			return
		}
		c.JSON(http.StatusOK, outcome.body)
	case <-c.Request.Context().Done():
	}
}
