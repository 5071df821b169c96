package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/SAP-F-2025/learning-service/internal/config"
	"github.com/SAP-F-2025/learning-service/internal/models"
)

const sendBuffer = 64

// outbound is a queued write. A non-zero closeCode ends the connection after earlier frames are flushed.
type outbound struct {
	payload   []byte
	closeCode int
	reason    string
}

// Connection is one authenticated websocket client. Writes go through a single writer goroutine.
type Connection struct {
	id     string
	user   *models.User
	ws     *websocket.Conn
	cfg    config.WebSocketConfig
	logger *slog.Logger

	send      chan outbound
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(ws *websocket.Conn, user *models.User, cfg config.WebSocketConfig, logger *slog.Logger) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:     id,
		user:   user,
		ws:     ws,
		cfg:    cfg,
		logger: logger.With("conn_id", id, "user_id", user.ID),
		send:   make(chan outbound, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) User() *models.User {
	return c.user
}

func (c *Connection) Deliver(payload []byte) bool {
	return c.enqueue(outbound{payload: payload})
}

func (c *Connection) enqueue(o outbound) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- o:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Emit queues a frame for this connection only
func (c *Connection) Emit(event string, data interface{}) {
	c.reply(event, data, "")
}

func (c *Connection) reply(event string, data interface{}, ack string) {
	payload, err := encodeFrame(event, data, ack)
	if err != nil {
		c.logger.Error("Failed to encode frame", "event", event, "error", err)
		return
	}
	if !c.Deliver(payload) {
		c.logger.Warn("Dropped frame", "event", event)
	}
}

// CloseAfterFlush ends the connection once the frames queued so far are written
func (c *Connection) CloseAfterFlush(code int, reason string) {
	if !c.enqueue(outbound{closeCode: code, reason: reason}) {
		c.Close()
	}
}

// Close tears the connection down immediately. Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Done is closed when the connection is torn down
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// readPump reads frames until the peer goes away and hands each one to handle, in order
func (c *Connection) readPump(handle func(Frame)) {
	defer c.Close()

	c.ws.SetReadLimit(c.cfg.MaxMessageBytes)
	if err := c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout)); err != nil {
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Debug("Connection closed unexpectedly", "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			c.Emit(EventError, map[string]string{"message": "malformed frame"})
			continue
		}
		handle(frame)
	}
}

// writePump is the only writer of data frames and pings
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case o := <-c.send:
			if o.closeCode != 0 {
				c.writeClose(o.closeCode, o.reason)
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, o.payload); err != nil {
				c.logger.Debug("Write failed", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Connection) writeClose(code int, reason string) {
	writeClose(c.ws, code, reason, c.cfg.WriteTimeout)
}

func writeClose(ws *websocket.Conn, code int, reason string, timeout time.Duration) {
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(timeout))
}
