// Package services provides the application services of the cohort engine:
// capture handling, live queries, counter aggregation, day queries, the
// writeback/expiry scheduler, and operator authentication.
package services

import (
	"fmt"
	"sync"

	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
)

// InvalidRequestError reports a missing or malformed required field. It is
// surfaced to the caller via the reply body on two-way requests and dropped
// otherwise.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "Invalid req: " + e.Reason
}

// invalidRequest builds an InvalidRequestError.
func invalidRequest(format string, args ...any) error {
	return &InvalidRequestError{Reason: fmt.Sprintf(format, args...)}
}

// NewInvalidRequest builds an InvalidRequestError for callers outside the
// package, such as the dispatcher's envelope validation.
func NewInvalidRequest(reason string) error {
	return &InvalidRequestError{Reason: reason}
}

// RequestContext is the request-scoped context threaded through a single
// operation. It carries the logger and a single-use reporting sink: exactly
// one of Finish or Fail takes effect per request, every later call is a
// no-op. For one-way requests the sink may be nil; failures are then only
// logged.
type RequestContext struct {
	logger  *logging.ChanneledLogger
	channel logging.Channel
	respond func(body any, err error)
	once    sync.Once
}

// NewRequestContext creates a request context reporting on the given logging
// channel. respond may be nil for one-way requests.
func NewRequestContext(logger *logging.ChanneledLogger, channel logging.Channel, respond func(body any, err error)) *RequestContext {
	return &RequestContext{
		logger:  logger,
		channel: channel,
		respond: respond,
	}
}

// Logger returns the channel logger for this request.
func (c *RequestContext) Logger() *logging.ChanneledLogger {
	return c.logger
}

// Finish resolves the request with a success body.
func (c *RequestContext) Finish(body any) {
	c.once.Do(func() {
		if c.respond != nil {
			c.respond(body, nil)
		}
	})
}

// Fail resolves the request with an error.
func (c *RequestContext) Fail(err error) {
	c.once.Do(func() {
		c.logger.GetChannel(c.channel).Warn("Request failed", "error", err.Error())
		if c.respond != nil {
			c.respond(nil, err)
		}
	})
}
