package realtime

import (
	"context"
	"encoding/json"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// Event names on the wire
const (
	EventMessage     = "message"
	EventMessageLogs = "messageLogs"
)

// Frame is the envelope of every websocket payload
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// snapshot is an encoded history frame tagged with the seq of its newest message
type snapshot struct {
	seq     int64
	payload []byte
}

// Hub tracks connected chat clients and fans broadcasts out to them. One hub
// is created at startup and shared by reference.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan snapshot
	count      chan chan int
	done       chan struct{}

	// lastSeq is the newest message already fanned out; owned by Run
	lastSeq int64
	logger  *zap.Logger
}

// NewHub creates a hub; call Run before serving connections
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan snapshot, 64),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		logger:     util.GetLogger(),
	}
}

// Run owns the client set until ctx is cancelled, then disconnects everyone
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			h.logger.Info("Chat hub stopped")
			return

		case c := <-h.register:
			h.clients[c] = true
			util.ChatConnections.Inc()
			h.logger.Debug("Chat client connected", zap.String("remote", c.remote))

		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
				h.logger.Debug("Chat client disconnected", zap.String("remote", c.remote))
			}

		case snap := <-h.broadcast:
			// histories can arrive out of order when posts overlap; an older
			// snapshot would roll clients back
			if snap.seq <= h.lastSeq {
				h.logger.Debug("Dropping stale message history",
					zap.Int64("seq", snap.seq),
					zap.Int64("last_seq", h.lastSeq))
				continue
			}
			h.lastSeq = snap.seq

			for c := range h.clients {
				select {
				case c.send <- snap.payload:
				default:
					h.logger.Warn("Chat client too slow, disconnecting", zap.String("remote", c.remote))
					h.drop(c)
				}
			}

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	util.ChatConnections.Dec()
}

// Broadcast sends the full message history to every connected client. A
// history no newer than one already sent is dropped.
func (h *Hub) Broadcast(messages []models.Message) {
	if len(messages) == 0 {
		return
	}

	payload, err := encodeFrame(EventMessageLogs, messages)
	if err != nil {
		h.logger.Error("Failed to encode message history", zap.Error(err))
		return
	}

	snap := snapshot{seq: messages[len(messages)-1].Seq, payload: payload}
	select {
	case h.broadcast <- snap:
	case <-h.done:
	}
}

// ConnectedClients reports how many clients are registered
func (h *Hub) ConnectedClients() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func encodeFrame(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
