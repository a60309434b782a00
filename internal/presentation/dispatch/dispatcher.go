// Package dispatch routes inbound bus messages to the application services.
package dispatch

import (
	"encoding/json"

	"github.com/AtRiskMedia/cohort-go/internal/application/services"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/bus"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
)

// Subjects consumed from the bus.
const (
	SubjectCapture    = "COH:CAPTURE"
	SubjectGetLive    = "COH:GETLIVE"
	SubjectGetDay     = "COH:GETDAY"
	SubjectGetCounter = "COH:GETCOUNTER"
)

// Dispatcher demultiplexes inbound messages by (subject, kind) and invokes
// the corresponding service. Two-way requests get exactly one reply, either
// a success body or an error body; one-way failures are only logged.
// Unrecognized subjects are logged and otherwise ignored.
type Dispatcher struct {
	capture *services.CaptureService
	live    *services.LiveService
	day     *services.DayService
	counter *services.CounterService
	sender  bus.Sender
	logger  *logging.ChanneledLogger
}

// NewDispatcher wires the dispatcher to the services and the outbound
// sender.
func NewDispatcher(
	capture *services.CaptureService,
	live *services.LiveService,
	day *services.DayService,
	counter *services.CounterService,
	sender bus.Sender,
	logger *logging.ChanneledLogger,
) *Dispatcher {
	return &Dispatcher{
		capture: capture,
		live:    live,
		day:     day,
		counter: counter,
		sender:  sender,
		logger:  logger,
	}
}

// Handle processes one inbound message.
func (d *Dispatcher) Handle(msg *bus.Message) {
	d.logger.Bus().Debug("Message received", "msg", msg.String())

	switch msg.Subject + "-" + string(msg.Kind) {
	case SubjectCapture + "-1w", SubjectCapture + "-2w":
		d.handleCapture(msg)
	case SubjectGetLive + "-2w":
		d.handleGetLive(msg)
	case SubjectGetDay + "-2w":
		d.handleGetDay(msg)
	case SubjectGetCounter + "-2w":
		d.handleGetCounter(msg)
	default:
		d.logger.Bus().Error("Ignored message with unrecognized subject", "msg", msg.String())
	}
}

func (d *Dispatcher) handleCapture(msg *bus.Message) {
	rctx := d.newRequestContext(msg, logging.ChannelCapture)

	if len(msg.Targets) != 1 {
		rctx.Fail(services.NewInvalidRequest("targets must be length one array"))
		return
	}

	req := &services.CaptureRequest{}
	if !d.decodeBody(rctx, msg, req) {
		return
	}
	req.User = msg.Targets[0]
	req.Device = msg.Device()

	d.capture.Capture(rctx, req)
}

func (d *Dispatcher) handleGetLive(msg *bus.Message) {
	rctx := d.newRequestContext(msg, logging.ChannelLive)

	// An empty body is a first-time client with no hash.
	req := &services.LiveRequest{}
	if len(msg.Body) > 0 {
		if err := json.Unmarshal(msg.Body, req); err != nil {
			rctx.Fail(services.NewInvalidRequest("malformed body"))
			return
		}
	}

	d.live.Await(rctx, req)
}

func (d *Dispatcher) handleGetDay(msg *bus.Message) {
	rctx := d.newRequestContext(msg, logging.ChannelStore)

	req := &services.CounterRequest{}
	if !d.decodeBody(rctx, msg, req) {
		return
	}
	d.day.Query(rctx, req)
}

func (d *Dispatcher) handleGetCounter(msg *bus.Message) {
	rctx := d.newRequestContext(msg, logging.ChannelCounter)

	req := &services.CounterRequest{}
	if !d.decodeBody(rctx, msg, req) {
		return
	}
	d.counter.Query(rctx, req)
}

// decodeBody parses the request body, failing the request on an empty or
// malformed payload.
func (d *Dispatcher) decodeBody(rctx *services.RequestContext, msg *bus.Message, into any) bool {
	if len(msg.Body) == 0 {
		rctx.Fail(services.NewInvalidRequest("empty body"))
		return false
	}
	if err := json.Unmarshal(msg.Body, into); err != nil {
		rctx.Fail(services.NewInvalidRequest("malformed body"))
		return false
	}
	return true
}

// newRequestContext builds the request-scoped context for a message. Only
// two-way messages carry a reply sink.
func (d *Dispatcher) newRequestContext(msg *bus.Message, channel logging.Channel) *services.RequestContext {
	var respond func(body any, err error)
	if msg.Kind == bus.TwoWay {
		respond = func(body any, err error) {
			if err != nil {
				body = bus.ErrorBody{Error: err.Error()}
			}
			reply, replyErr := bus.NewReply(msg, body)
			if replyErr != nil {
				d.logger.LogError(logging.ChannelBus, "reply", replyErr, map[string]any{"msg": msg.String()})
				return
			}
			d.sender.Send(reply)
		}
	}
	return services.NewRequestContext(d.logger, channel, respond)
}
