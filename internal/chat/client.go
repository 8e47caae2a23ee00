// internal/chat/client.go
// Websocket client for match notifications and chat

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/identity"
	"github.com/turumi/turumi-match/internal/match"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// The server pings every 54s; give it some slack
	readWait = 75 * time.Second

	opDial = "chat_dial"
)

// Frame types received from the server.
const (
	TypeNewMatch    = "new_match"
	TypeNewLike     = "new_like"
	TypeChatMessage = "chat_message"
	TypeError       = "error"
)

// Frame is one server push.
type Frame struct {
	Type   string          `json:"type"`
	UserID int64           `json:"user_id"`
	Data   json.RawMessage `json:"data"`
}

// Message is a chat line.
type Message struct {
	From   int64  `json:"from"`
	To     int64  `json:"to"`
	Text   string `json:"text"`
	SentAt string `json:"sentAt,omitempty"`
}

// Chat decodes a chat_message frame.
func (f Frame) Chat() (*Message, error) {
	if f.Type != TypeChatMessage {
		return nil, fmt.Errorf("frame %q is not a chat message", f.Type)
	}
	var m Message
	if err := json.Unmarshal(f.Data, &m); err != nil {
		return nil, fmt.Errorf("decode chat message: %w", err)
	}
	return &m, nil
}

// Match decodes a new_match or new_like frame.
func (f Frame) Match() (*match.Record, error) {
	if f.Type != TypeNewMatch && f.Type != TypeNewLike {
		return nil, fmt.Errorf("frame %q carries no match", f.Type)
	}
	var r match.Record
	if err := json.Unmarshal(f.Data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ErrorText returns the message of an error frame.
func (f Frame) ErrorText() string {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(f.Data, &body)
	return body.Message
}

type outbound struct {
	Type string  `json:"type"`
	Data Message `json:"data"`
}

// Client is a single websocket session. Send is safe for concurrent use;
// Run must be called by one goroutine only.
type Client struct {
	conn   *websocket.Conn
	userID int64
	logger *zap.Logger

	writeMu sync.Mutex
}

// Dial opens /ws on the API at baseURL.
func Dial(ctx context.Context, baseURL string, id identity.Identity, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := id.Check(time.Now()); err != nil {
		return nil, &match.RequestError{Kind: match.ErrAuth, Op: opDial, Err: err}
	}

	url := strings.TrimRight(baseURL, "/") + "/ws"
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+id.BearerToken)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && errors.Is(err, websocket.ErrBadHandshake) {
			defer resp.Body.Close()
			if cerr := match.ClassifyResponse(opDial, resp); cerr != nil {
				return nil, cerr
			}
		}
		return nil, &match.RequestError{Kind: match.ErrTransport, Op: opDial, Err: err}
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	logger.Debug("chat connected", zap.Int64("user_id", id.UserID))
	return &Client{conn: conn, userID: id.UserID, logger: logger}, nil
}

// Send writes a chat line to a matched user.
func (c *Client) Send(to int64, text string) error {
	text = strings.TrimSpace(text)
	if to <= 0 || text == "" {
		return fmt.Errorf("chat message needs a recipient and text")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(outbound{Type: TypeChatMessage, Data: Message{From: c.userID, To: to, Text: text}})
}

// Run reads frames and hands them to handle until ctx is cancelled or the
// connection drops. A cancelled ctx returns ctx.Err().
func (c *Client) Run(ctx context.Context, handle func(Frame)) error {
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPingHandler(func(data string) error {
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		}
	}()

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return &match.RequestError{Kind: match.ErrTransport, Op: "chat_read", Err: err}
		}
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		handle(f)
	}
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
