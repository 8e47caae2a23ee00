// internal/matchstore/websocket.go

package matchstore

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/auth"
	"github.com/turumi/turumi-match/internal/common/utils"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	maxChatLength = 2000
)

// Frame types sent over /ws.
const (
	FrameNewMatch    = "new_match"
	FrameNewLike     = "new_like"
	FrameChatMessage = "chat_message"
	FrameError       = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Native clients send no Origin header
		return true
	},
}

// Message is one frame pushed to a user.
type Message struct {
	Type   string      `json:"type"`
	UserID int64       `json:"user_id"`
	Data   interface{} `json:"data"`
}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ChatPolicy decides whether two users may chat.
type ChatPolicy interface {
	CanChat(ctx context.Context, a, b int64) (bool, error)
}

// Hub fans frames out to every connection of a user.
type Hub struct {
	clients    map[int64]map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	policy     ChatPolicy
	logger     *zap.Logger
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	userID int64

	// mu guards closing send against replies from the read pump.
	mu     sync.Mutex
	closed bool
}

func NewHub(policy ChatPolicy, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		policy:     policy,
		logger:     logger,
	}
}

// Run owns the client map until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			wsConnectionsActive.Inc()
			h.logger.Debug("websocket connected", zap.Int64("user_id", client.userID))

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			for client := range h.clients[message.UserID] {
				select {
				case client.send <- message:
					wsMessagesTotal.WithLabelValues(message.Type).Inc()
				default:
					h.remove(client)
				}
			}

		case <-ctx.Done():
			close(h.done)
			for _, conns := range h.clients {
				for client := range conns {
					h.remove(client)
				}
			}
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	conns, ok := h.clients[client.userID]
	if !ok || !conns[client] {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.clients, client.userID)
	}
	client.closeSend()
	wsConnectionsActive.Dec()
	h.logger.Debug("websocket disconnected", zap.Int64("user_id", client.userID))
}

// push queues a frame without blocking the caller.
func (h *Hub) push(m Message) {
	select {
	case h.broadcast <- m:
	default:
		h.logger.Warn("websocket queue full, dropping frame",
			zap.String("type", m.Type),
			zap.Int64("user_id", m.UserID),
		)
	}
}

func (h *Hub) NotifyLike(target int64, m *Match) {
	h.push(Message{Type: FrameNewLike, UserID: target, Data: m})
}

// NotifyMatch notifies both users.
func (h *Hub) NotifyMatch(a, b int64, m *Match) {
	h.push(Message{Type: FrameNewMatch, UserID: a, Data: m})
	h.push(Message{Type: FrameNewMatch, UserID: b, Data: m})
}

// ServeWS upgrades an authenticated request.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan Message, 256),
		userID: userID,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// relay delivers a chat line from c to its addressee if they are matched.
func (h *Hub) relay(c *Client, raw json.RawMessage) {
	var msg ChatMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.To <= 0 {
		c.reply("invalid chat message")
		return
	}
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" || len(msg.Text) > maxChatLength {
		c.reply("chat message must be between 1 and 2000 characters")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok, err := h.policy.CanChat(ctx, c.userID, msg.To)
	if err != nil {
		h.logger.Error("chat permission check failed", zap.Error(err))
		c.reply("could not deliver message")
		return
	}
	if !ok {
		c.reply("you can only chat with your matches")
		return
	}

	msg.From = c.userID
	msg.SentAt = time.Now().UTC().Format(time.RFC3339)
	h.push(Message{Type: FrameChatMessage, UserID: msg.To, Data: msg})
	// Echo to the sender's other sessions too.
	h.push(Message{Type: FrameChatMessage, UserID: c.userID, Data: msg})
}

// reply sends an error frame to this connection only. It drops the frame
// when the send buffer is full.
func (c *Client) reply(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- Message{Type: FrameError, UserID: c.userID, Data: map[string]string{"message": text}}:
		wsMessagesTotal.WithLabelValues(FrameError).Inc()
	default:
		c.hub.logger.Warn("websocket send buffer full, dropping reply", zap.Int64("user_id", c.userID))
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame inboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read failed", zap.Int64("user_id", c.userID), zap.Error(err))
			}
			return
		}

		switch frame.Type {
		case FrameChatMessage:
			c.hub.relay(c, frame.Data)
		default:
			c.reply("unknown frame type " + frame.Type)
		}
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
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
