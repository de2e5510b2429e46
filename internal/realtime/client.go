package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/classpoll/backend/internal/models"
)

const (
	// PingInterval is how often the server pings each connection, seconds.
	PingInterval = 30
	// PongWait is how long to wait for a pong before dropping, seconds.
	PongWait = 60
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is a single WebSocket connection. It satisfies Session so the hub
// and coordinator never touch the connection directly.
type Client struct {
	id          string
	user        models.UserPublic
	hub         *Hub
	coordinator *Coordinator
	conn        *websocket.Conn
	send        chan WSMessage
	logger      *zap.Logger
}

func (c *Client) ID() string              { return c.id }
func (c *Client) User() models.UserPublic { return c.user }

// Emit queues an event for the connection. Drops the message when the send
// buffer is full rather than blocking the caller.
func (c *Client) Emit(event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("marshal outbound event", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: raw}:
	default:
		c.logger.Warn("send buffer full, dropping message",
			zap.String("client_id", c.id), zap.String("event", event))
	}
}

// ServeWs handles the WebSocket upgrade and runs the client loop. identify
// resolves the token query param to the connecting user.
func ServeWs(hub *Hub, coordinator *Coordinator, logger *zap.Logger, identify func(token string) (models.UserPublic, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		user, err := identify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			id:          uuid.New().String(),
			user:        user,
			hub:         hub,
			coordinator: coordinator,
			conn:        conn,
			send:        make(chan WSMessage, 256),
			logger:      logger,
		}
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveSession(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		ctx := context.Background()
		switch msg.Event {
		case EventCreateRoom:
			c.coordinator.CreateRoom(ctx, c, msg.Data)
		case EventJoinRoom:
			c.coordinator.JoinRoom(ctx, c, msg.Data)
		case EventPostQuestion:
			c.coordinator.PostQuestion(ctx, c, msg.Data)
		case EventPollSubmit:
			c.coordinator.SubmitResponse(ctx, c, msg.Data)
		case EventEndPoll:
			c.coordinator.EndPoll(ctx, c, msg.Data)
		case EventLeaveRoom:
			c.coordinator.LeaveRoom(ctx, c, msg.Data)
		default:
			// ignore
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
