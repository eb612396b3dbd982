package feed

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/watzon/relay/internal/engine"
)

// HistorySource answers snapshot queries. Satisfied by
// *engine.History.
type HistorySource interface {
	Recent(limit int) []*engine.ExecutionResult
	ByHook(hookID string, limit int) []*engine.ExecutionResult
}

// Broker fans execution results out to connected WebSocket clients.
// Its Publish method matches the engine's listener signature, so it is
// wired with engine.AddListener(broker.Publish).
type Broker struct {
	history HistorySource

	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
}

func NewBroker(history HistorySource) *Broker {
	return &Broker{
		history: history,
		clients: make(map[string]*Client),
	}
}

// Publish broadcasts one execution result to every client whose filter
// admits it.
func (b *Broker) Publish(res *engine.ExecutionResult) {
	payload, err := json.Marshal(res)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode execution result")
		return
	}
	msg := &Message{Type: MessageTypeExecution, Payload: payload}

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		if c.wants(res.HookID) {
			clients = append(clients, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range clients {
		_ = c.Send(msg)
	}
}

// HandleWebSocket upgrades the request and serves the client until the
// connection drops.
func (b *Broker) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to accept WebSocket connection")
		return
	}

	client := NewClient(conn, b)
	if !b.register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	payload, _ := json.Marshal(&ConnectedPayload{ClientID: client.ID})
	_ = client.Send(&Message{Type: MessageTypeConnected, Payload: payload})

	client.Run()
}

// Stop disconnects every client and refuses new ones.
func (b *Broker) Stop() {
	b.mu.Lock()
	b.closed = true
	clients := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[string]*Client)
	b.mu.Unlock()

	for _, c := range clients {
		c.closeForShutdown()
	}
}

// ClientCount reports how many clients are connected.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broker) register(c *Client) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	b.clients[c.ID] = c
	log.Debug().Str("client_id", c.ID).Int("total_clients", len(b.clients)).Msg("Feed client connected")
	return true
}

func (b *Broker) unregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[id]; !ok {
		return
	}
	delete(b.clients, id)
	log.Debug().Str("client_id", id).Int("total_clients", len(b.clients)).Msg("Feed client disconnected")
}

func (b *Broker) snapshot(hookID string, limit int) []*engine.ExecutionResult {
	if b.history == nil {
		return []*engine.ExecutionResult{}
	}
	if hookID != "" {
		return b.history.ByHook(hookID, limit)
	}
	return b.history.Recent(limit)
}
