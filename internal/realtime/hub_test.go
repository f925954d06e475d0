package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/store"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)

	chat := service.NewChatService(store.NewMemoryStore(), hub, broker.NopPublisher{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, chat, w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame.Event, frame.Data
}

func readHistory(t *testing.T, conn *websocket.Conn) []models.Message {
	t.Helper()
	event, data := readFrame(t, conn)
	require.Equal(t, EventMessageLogs, event)
	var messages []models.Message
	require.NoError(t, json.Unmarshal(data, &messages))
	return messages
}

func sendMessage(t *testing.T, conn *websocket.Conn, user, message string) {
	t.Helper()
	data, err := json.Marshal(inboundMessage{User: user, Message: message})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Frame{Event: EventMessage, Data: data}))
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ConnectedClients() == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServeWS_BroadcastsFullHistoryToEveryClient(t *testing.T) {
	srv, hub := newChatServer(t)

	alice := dial(t, srv)
	bob := dial(t, srv)
	waitForClients(t, hub, 2)

	sendMessage(t, alice, "alice", "hola")

	fromAlice := readHistory(t, alice)
	fromBob := readHistory(t, bob)
	require.Len(t, fromAlice, 1)
	assert.Equal(t, "alice", fromAlice[0].User)
	assert.Equal(t, "hola", fromAlice[0].Message)
	assert.Equal(t, fromAlice, fromBob)

	sendMessage(t, bob, "bob", "hey")
	fromAlice = readHistory(t, alice)
	fromBob = readHistory(t, bob)
	require.Len(t, fromAlice, 2)
	assert.Equal(t, "hola", fromAlice[0].Message)
	assert.Equal(t, "bob", fromAlice[1].User)
	assert.Equal(t, fromAlice, fromBob)
}

func TestServeWS_RejectedPostsAreDropped(t *testing.T) {
	srv, hub := newChatServer(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	sendMessage(t, conn, "   ", "anonymous")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteJSON(Frame{Event: "typing", Data: json.RawMessage(`{}`)}))

	// the connection stays usable and the first broadcast carries only the valid post
	sendMessage(t, conn, "alice", "still here")
	history := readHistory(t, conn)
	require.Len(t, history, 1)
	assert.Equal(t, "alice", history[0].User)
	assert.Equal(t, 1, hub.ConnectedClients())
}

func TestServeWS_DisconnectUnregisters(t *testing.T) {
	srv, hub := newChatServer(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}

func TestHub_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	cancel()
	wg.Wait()

	// calls after shutdown must not block
	hub.Broadcast([]models.Message{{User: "alice", Message: "late"}})
	assert.Equal(t, 0, hub.ConnectedClients())
}

// slowFirstHistory stalls the first history read after it has been taken, so
// the post that made it broadcasts after a later post does
type slowFirstHistory struct {
	*store.MemoryStore
	calls atomic.Int32
	delay time.Duration
}

func (s *slowFirstHistory) ListMessages(ctx context.Context) ([]models.Message, error) {
	messages, err := s.MemoryStore.ListMessages(ctx)
	if s.calls.Add(1) == 1 {
		time.Sleep(s.delay)
	}
	return messages, err
}

// attach registers a client without a socket; frames land in its send buffer
func attach(t *testing.T, hub *Hub) *Client {
	t.Helper()
	c := &Client{hub: hub, send: make(chan []byte, sendBuffer), remote: "local"}
	require.True(t, hub.join(c))
	return c
}

func drainHistories(t *testing.T, c *Client) [][]models.Message {
	t.Helper()
	var out [][]models.Message
	for {
		select {
		case payload := <-c.send:
			var frame Frame
			require.NoError(t, json.Unmarshal(payload, &frame))
			var messages []models.Message
			require.NoError(t, json.Unmarshal(frame.Data, &messages))
			out = append(out, messages)
		case <-time.After(200 * time.Millisecond):
			return out
		}
	}
}

func TestHub_OverlappingPostsNeverRollBackHistory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)
	c := attach(t, hub)

	slow := &slowFirstHistory{MemoryStore: store.NewMemoryStore(), delay: 100 * time.Millisecond}
	chat := service.NewChatService(slow, hub, broker.NopPublisher{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := chat.PostMessage(context.Background(), "ana", "a")
		assert.NoError(t, err)
	}()
	time.Sleep(20 * time.Millisecond)
	_, err := chat.PostMessage(context.Background(), "bo", "b")
	require.NoError(t, err)
	wg.Wait()

	history, err := chat.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 2)

	received := drainHistories(t, c)
	require.NotEmpty(t, received)
	assert.Equal(t, history, received[len(received)-1])
	for _, messages := range received {
		assert.Len(t, messages, 2, "a shorter history was delivered after a longer one")
	}
}

func TestHub_DropsStaleSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)
	c := attach(t, hub)

	newer := []models.Message{{User: "ana", Message: "a", Seq: 1}, {User: "bo", Message: "b", Seq: 2}}
	hub.Broadcast(newer)
	hub.Broadcast(newer[:1])
	hub.Broadcast(newer)
	hub.Broadcast(nil)

	received := drainHistories(t, c)
	require.Len(t, received, 1)
	assert.Equal(t, newer, received[0])
}
