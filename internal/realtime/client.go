package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Poster accepts chat messages arriving on a socket
type Poster interface {
	PostMessage(ctx context.Context, author, body string) (*models.Message, error)
}

type inboundMessage struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

// Client is one websocket connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	remote string
	logger *zap.Logger
}

// ServeWS upgrades the request and relays the client's inbound messages to
// chat. Nothing is sent on connect; history comes from the page load.
func ServeWS(hub *Hub, chat Poster, w http.ResponseWriter, r *http.Request) {
	logger := util.GetLogger()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		remote: conn.RemoteAddr().String(),
		logger: logger,
	}
	if !hub.join(c) {
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(chat)
}

// readPump handles inbound frames one at a time, so a connection's events are
// processed in the order it sent them.
func (c *Client) readPump(chat Poster) {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Chat connection closed unexpectedly", zap.Error(err))
			}
			return
		}
		c.handle(chat, data)
	}
}

// handle posts one inbound frame. Malformed frames and rejected posts are
// logged and dropped; the connection stays open.
func (c *Client) handle(chat Poster, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Event != EventMessage {
		util.ChatMessagesRejectedTotal.WithLabelValues("bad_frame").Inc()
		c.logger.Warn("Dropping malformed chat frame", zap.String("remote", c.remote))
		return
	}

	var in inboundMessage
	if err := json.Unmarshal(frame.Data, &in); err != nil {
		util.ChatMessagesRejectedTotal.WithLabelValues("bad_frame").Inc()
		c.logger.Warn("Dropping malformed chat message", zap.String("remote", c.remote), zap.Error(err))
		return
	}

	if _, err := chat.PostMessage(context.Background(), in.User, in.Message); err != nil {
		c.logger.Info("Chat message rejected", zap.String("remote", c.remote), zap.Error(err))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
