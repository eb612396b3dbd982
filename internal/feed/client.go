package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout   = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongTimeout    = 60 * time.Second
	maxMessageSize = 32 * 1024
	sendBufferSize = 64
)

// Client is one connected WebSocket consumer of the execution feed.
type Client struct {
	ID     string
	conn   *websocket.Conn
	broker *Broker

	mu     sync.RWMutex
	hookID string // empty means the full stream

	sendCh chan []byte
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(conn *websocket.Conn, broker *Broker) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:     uuid.New().String(),
		conn:   conn,
		broker: broker,
		sendCh: make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run starts the client's write and ping loops and blocks on reads
// until the connection drops.
func (c *Client) Run() {
	go c.writePump()
	go c.pingPump()
	c.readPump()
}

// Close terminates the connection and removes the client from the
// broker.
func (c *Client) Close() {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return
	default:
		close(c.done)
	}
	c.mu.Unlock()

	c.cancel()
	c.broker.unregister(c.ID)
	c.conn.Close(websocket.StatusNormalClosure, "closing")
}

// closeForShutdown terminates the connection without broker cleanup.
// Used while the broker tears itself down.
func (c *Client) closeForShutdown() {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return
	default:
		close(c.done)
	}
	c.mu.Unlock()

	c.cancel()
	c.conn.Close(websocket.StatusGoingAway, "server shutting down")
}

// wants reports whether the client's filter admits a result for the
// given hook.
func (c *Client) wants(hookID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hookID == "" || c.hookID == hookID
}

// Send queues a message. A slow consumer loses messages rather than
// stalling the broker.
func (c *Client) Send(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.sendCh <- data:
		return nil
	case <-c.done:
		return context.Canceled
	default:
		log.Warn().Str("client_id", c.ID).Msg("Client send buffer full, dropping message")
		return nil
	}
}

func (c *Client) sendError(msgID, code, message string) {
	payload, _ := json.Marshal(&ErrorPayload{Code: code, Message: message})
	_ = c.Send(&Message{ID: msgID, Type: MessageTypeError, Payload: payload})
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("WebSocket read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", errorCodeInvalidMessage, "Invalid JSON message")
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) writePump() {
	for {
		select {
		case data := <-c.sendCh:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("WebSocket write error")
				return
			}
		case <-c.done:
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) pingPump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, pongTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("Ping failed")
				c.Close()
				return
			}
		case <-c.done:
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.handleSubscribe(msg)
	case MessageTypePing:
		_ = c.Send(&Message{ID: msg.ID, Type: MessageTypePong})
	default:
		c.sendError(msg.ID, errorCodeInvalidMessage, "Unknown message type")
	}
}

// handleSubscribe narrows (or widens) the client's stream and answers
// with a snapshot of recent history under the new filter.
func (c *Client) handleSubscribe(msg *Message) {
	var payload SubscribePayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError(msg.ID, errorCodeInvalidPayload, "Invalid subscribe payload")
			return
		}
	}

	c.mu.Lock()
	c.hookID = payload.HookID
	c.mu.Unlock()

	snapshot, _ := json.Marshal(&SnapshotPayload{
		HookID:     payload.HookID,
		Executions: c.broker.snapshot(payload.HookID, payload.Limit),
	})
	_ = c.Send(&Message{ID: msg.ID, Type: MessageTypeSnapshot, Payload: snapshot})
}
