package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/gorilla/websocket"
)

// subscribeFrame is the control frame announcing which tag this process
// consumes messages for.
type subscribeFrame struct {
	Op  string `json:"op"`
	Tag string `json:"tag"`
}

// ClientConfig tunes the websocket bus client.
type ClientConfig struct {
	URL            string
	Tag            string
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	ReconnectDelay time.Duration
}

// Client is a websocket connection to the message bus. Inbound frames are
// handed to the registered handler; outbound frames are queued on a buffered
// channel drained by a single write pump, so Send never blocks the caller.
type Client struct {
	config  ClientConfig
	handler Handler
	logger  *logging.ChanneledLogger

	send chan *Message

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a bus client. The handler runs on the read-pump
// goroutine, one message at a time.
func NewClient(config ClientConfig, handler Handler, logger *logging.ChanneledLogger) *Client {
	return &Client{
		config:  config,
		handler: handler,
		logger:  logger,
		send:    make(chan *Message, 256),
	}
}

// Send queues a message for delivery. A full queue drops the message and
// reports a transport error; the bus is best-effort.
func (c *Client) Send(msg *Message) error {
	select {
	case c.send <- msg:
		return nil
	default:
		err := errors.New("bus send queue full, message dropped")
		c.logger.Bus().Error("Transport error", "error", err.Error(), "subject", msg.Subject)
		return err
	}
}

// Run connects, subscribes, and pumps frames until ctx is canceled. A broken
// connection is re-dialed after the configured delay.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Bus().Error("Bus connection lost", "error", err.Error(), "reconnectIn", c.config.ReconnectDelay)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.config.ReconnectDelay):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial bus at %s: %w", c.config.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(subscribeFrame{Op: "subscribe", Tag: c.config.Tag}); err != nil {
		return fmt.Errorf("failed to subscribe with tag %q: %w", c.config.Tag, err)
	}
	c.logger.Bus().Info("Subscribed to bus", "url", c.config.URL, "tag", c.config.Tag)

	errc := make(chan error, 2)
	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() { errc <- c.writePump(pumpCtx, conn) }()
	go func() { errc <- c.readPump(conn) }()

	select {
	case <-ctx.Done():
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.config.WriteTimeout))
		return nil
	case err := <-errc:
		return err
	}
}

func (c *Client) readPump(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Bus().Warn("Discarding malformed bus frame", "error", err.Error())
			continue
		}
		c.handler(&msg)
	}
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				c.logger.Bus().Error("Transport error", "error", err.Error(), "subject", msg.Subject)
				return err
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}
