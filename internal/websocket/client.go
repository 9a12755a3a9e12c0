package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"agri-compath/internal/engine/actors"
	"agri-compath/internal/feed"
	"agri-compath/internal/models"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// ViewRouter delivers client commands to a live view.
type ViewRouter interface {
	Send(pid *actor.PID, message interface{})
}

// Client is a middleman between the websocket connection and the live view
// it displays.
type Client struct {
	Hub *Hub

	Session     models.Session
	CommunityID int64

	// The view actor rendering this client's community.
	View   *actor.PID
	Router ViewRouter

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	Logger *slog.Logger

	// Guards Send against a publish racing the hub closing it.
	mu     sync.Mutex
	closed bool
}

// Command is a message from the client to its view.
type Command struct {
	Action string        `json:"action"`
	Topic  *feed.ItemKey `json:"topic,omitempty"`
}

const (
	ActionShowTopics = "show_topics"
	ActionOpenThread = "open_thread"
	ActionReload     = "reload"
)

// Publish queues a view update. Updates are dropped when the client is too
// slow to drain its buffer.
func (c *Client) Publish(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- payload:
	default:
		c.Logger.Warn("send buffer full, dropping view update", "community_id", c.CommunityID, "user_id", c.Session.UserID)
	}
}

// closeSend closes the send channel once. Later publishes are discarded.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// ReadPump forwards commands from the connection to the view. It
// unregisters the client when the connection ends.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Logger.Warn("websocket read error", "user_id", c.Session.UserID, "error", err)
			}
			break
		}

		msg, err := ParseCommand(message)
		if err != nil {
			c.Publish(errorPayload(err.Error()))
			continue
		}
		c.Router.Send(c.View, msg)
	}
}

// WritePump writes queued updates to the connection, one frame each, and
// keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Logger.Warn("websocket write error", "user_id", c.Session.UserID, "error", err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Logger.Warn("websocket ping error", "user_id", c.Session.UserID, "error", err)
				return
			}
		}
	}
}

// ParseCommand turns a client message into a view actor message.
func ParseCommand(message []byte) (interface{}, error) {
	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		return nil, &commandError{"invalid command"}
	}

	switch cmd.Action {
	case ActionShowTopics:
		return &actors.ShowTopicsMsg{}, nil
	case ActionOpenThread:
		if cmd.Topic == nil || (cmd.Topic.Kind != feed.KindPost && cmd.Topic.Kind != feed.KindRecord) {
			return nil, &commandError{"open_thread needs a topic"}
		}
		return &actors.OpenThreadMsg{Topic: *cmd.Topic}, nil
	case ActionReload:
		return &actors.ReloadMsg{}, nil
	default:
		return nil, &commandError{"unknown action: " + cmd.Action}
	}
}

type commandError struct {
	message string
}

func (e *commandError) Error() string {
	return e.message
}

func errorPayload(message string) []byte {
	payload, _ := json.Marshal(actors.ViewUpdate{Event: actors.EventError, Error: message})
	return payload
}
