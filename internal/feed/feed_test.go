package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/watzon/relay/internal/engine"
)

func startFeed(t *testing.T, history *engine.History) (*Broker, *websocket.Conn) {
	t.Helper()

	broker := NewBroker(history)
	server := httptest.NewServer(http.HandlerFunc(broker.HandleWebSocket))
	t.Cleanup(server.Close)
	t.Cleanup(broker.Stop)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.Dial(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() {
		conn.Close(websocket.StatusNormalClosure, "test done")
	})

	return broker, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode message: %v", err)
	}
	return &msg
}

func writeMessage(t *testing.T, conn *websocket.Conn, msg *Message) {
	t.Helper()

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("Failed to write message: %v", err)
	}
}

func result(hookID string, success bool) *engine.ExecutionResult {
	return &engine.ExecutionResult{
		HookID:    hookID,
		Success:   success,
		Timestamp: time.Now(),
	}
}

func TestFeed_ConnectAndReceiveExecution(t *testing.T) {
	broker, conn := startFeed(t, engine.NewHistory(10))

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeConnected {
		t.Fatalf("expected connected message, got %s", msg.Type)
	}
	var connected ConnectedPayload
	if err := json.Unmarshal(msg.Payload, &connected); err != nil || connected.ClientID == "" {
		t.Fatal("expected a client id in the connected payload")
	}

	broker.Publish(result("deploy", true))

	msg = readMessage(t, conn)
	if msg.Type != MessageTypeExecution {
		t.Fatalf("expected execution message, got %s", msg.Type)
	}
	var res engine.ExecutionResult
	if err := json.Unmarshal(msg.Payload, &res); err != nil {
		t.Fatalf("decoding execution payload: %v", err)
	}
	if res.HookID != "deploy" || !res.Success {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestFeed_SubscribeFiltersByHook(t *testing.T) {
	broker, conn := startFeed(t, engine.NewHistory(10))
	readMessage(t, conn) // connected

	payload, _ := json.Marshal(&SubscribePayload{HookID: "a"})
	writeMessage(t, conn, &Message{ID: "1", Type: MessageTypeSubscribe, Payload: payload})

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeSnapshot {
		t.Fatalf("expected snapshot reply, got %s", msg.Type)
	}

	broker.Publish(result("b", true))
	broker.Publish(result("a", false))

	msg = readMessage(t, conn)
	if msg.Type != MessageTypeExecution {
		t.Fatalf("expected execution message, got %s", msg.Type)
	}
	var res engine.ExecutionResult
	if err := json.Unmarshal(msg.Payload, &res); err != nil {
		t.Fatal(err)
	}
	if res.HookID != "a" {
		t.Errorf("filter leaked hook %q through", res.HookID)
	}
}

func TestFeed_SnapshotCarriesHistory(t *testing.T) {
	history := engine.NewHistory(10)
	history.Append(result("a", true))
	history.Append(result("b", true))
	history.Append(result("a", false))

	_, conn := startFeed(t, history)
	readMessage(t, conn) // connected

	payload, _ := json.Marshal(&SubscribePayload{HookID: "a"})
	writeMessage(t, conn, &Message{ID: "1", Type: MessageTypeSubscribe, Payload: payload})

	msg := readMessage(t, conn)
	var snapshot SnapshotPayload
	if err := json.Unmarshal(msg.Payload, &snapshot); err != nil {
		t.Fatal(err)
	}
	if len(snapshot.Executions) != 2 {
		t.Fatalf("expected 2 entries for hook a, got %d", len(snapshot.Executions))
	}
	if snapshot.Executions[0].Success {
		t.Error("expected newest (failed) entry first")
	}
}

func TestFeed_PingPong(t *testing.T) {
	_, conn := startFeed(t, engine.NewHistory(10))
	readMessage(t, conn) // connected

	writeMessage(t, conn, &Message{ID: "p1", Type: MessageTypePing})

	msg := readMessage(t, conn)
	if msg.Type != MessageTypePong || msg.ID != "p1" {
		t.Errorf("expected pong with matching id, got %+v", msg)
	}
}

func TestFeed_InvalidMessageReportsError(t *testing.T) {
	_, conn := startFeed(t, engine.NewHistory(10))
	readMessage(t, conn) // connected

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatal(err)
	}

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeError {
		t.Fatalf("expected error message, got %s", msg.Type)
	}
	var errPayload ErrorPayload
	if err := json.Unmarshal(msg.Payload, &errPayload); err != nil {
		t.Fatal(err)
	}
	if errPayload.Code != errorCodeInvalidMessage {
		t.Errorf("unexpected error code %q", errPayload.Code)
	}
}

func TestFeed_StopDisconnectsClients(t *testing.T) {
	broker, conn := startFeed(t, engine.NewHistory(10))
	readMessage(t, conn) // connected

	broker.Stop()

	if broker.ClientCount() != 0 {
		t.Errorf("expected 0 clients after stop, got %d", broker.ClientCount())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, _, err := conn.Read(ctx); err == nil {
		t.Error("expected the connection to be closed")
	}
}
