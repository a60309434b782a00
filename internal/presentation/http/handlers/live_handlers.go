package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/AtRiskMedia/cohort-go/internal/application/services"
	"github.com/AtRiskMedia/cohort-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cohort-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// LiveHandlers serves the HTTP mirror of the live query: a long-poll
// endpoint with the same resolve-or-timeout semantics as the bus subject,
// and an SSE stream of version advances.
type LiveHandlers struct {
	live        *services.LiveService
	broadcaster *messaging.LiveBroadcaster
	logger      *logging.ChanneledLogger
}

// NewLiveHandlers creates live handlers with injected dependencies.
func NewLiveHandlers(live *services.LiveService, broadcaster *messaging.LiveBroadcaster, logger *logging.ChanneledLogger) *LiveHandlers {
	return &LiveHandlers{
		live:        live,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// GetLive long-polls until the version clock moves past the supplied hash or
// the update-expiry window elapses.
func (h *LiveHandlers) GetLive(c *gin.Context) {
	resolved := make(chan session.LiveResult, 1)
	rctx := services.NewRequestContext(h.logger, logging.ChannelLive, func(body any, err error) {
		if result, ok := body.(session.LiveResult); ok {
			resolved <- result
		}
	})

	h.live.Await(rctx, &services.LiveRequest{Hash: c.Query("hash")})

	select {
	case result := <-resolved:
		c.JSON(http.StatusOK, result)
	case <-c.Request.Context().Done():
		// Client went away; the waiter retires into the buffered channel on
		// its timeout pass.
	}
}

// Stream pushes version advances to the client as server-sent events.
func (h *LiveHandlers) Stream(c *gin.Context) {
	client := h.broadcaster.AddClient()
	defer h.broadcaster.RemoveClient(client)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	heartbeat := time.NewTicker(time.Duration(config.SSEHeartbeatIntervalSeconds) * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case message, open := <-client:
			if !open {
				return
			}
			fmt.Fprint(c.Writer, message)
			c.Writer.Flush()
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}
