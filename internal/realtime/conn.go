package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/graphstudio/engine/pkg/logger"
)

// Conn is one realtime connection. Its state machine is
// Unjoined -> Joined(project) -> Unjoined; projectID is "" while
// unjoined and is guarded by the hub's mutex.
type Conn struct {
	hub *Hub
	ws  *websocket.Conn

	projectID string

	mu     sync.Mutex
	sendCh chan []byte
	closed bool
}

func newConn(h *Hub, ws *websocket.Conn) *Conn {
	return &Conn{
		hub:    h,
		ws:     ws,
		sendCh: make(chan []byte, h.settings.SendBufferSize),
	}
}

// send queues a pre-encoded frame. A connection that cannot drain its
// buffer is dropped rather than allowed to block a broadcast.
func (c *Conn) send(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.sendCh <- frame:
	default:
		logger.L().Warn("dropping slow realtime connection")
		c.closed = true
		close(c.sendCh)
	}
}

func (c *Conn) sendEvent(event string, payload any) {
	frame, err := NewEnvelope(event, payload)
	if err != nil {
		logger.L().Error("encode event failed", zap.String("event", event), zap.Error(err))
		return
	}
	c.send(frame)
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.sendCh)
}

// readPump consumes inbound frames until the connection drops, then runs
// the leave transition exactly once.
func (c *Conn) readPump() {
	defer func() {
		c.hub.handleLeave(c)
		c.close()
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.settings.MaxMessageLen)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.settings.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.settings.PongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.L().Debug("websocket read error", zap.Error(err))
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendEvent(EventError, ErrorPayload{Message: "malformed message"})
			continue
		}
		switch env.Event {
		case EventJoinProject:
			var req JoinRequest
			if err := json.Unmarshal(env.Data, &req); err != nil || req.Token == "" {
				c.sendEvent(EventError, ErrorPayload{Message: "joinProject requires a token"})
				continue
			}
			c.hub.handleJoin(c, req.Token)
		default:
			c.sendEvent(EventError, ErrorPayload{Message: "unknown event: " + env.Event})
		}
	}
}

// writePump serializes all writes to the socket: queued frames plus
// keepalive pings, each under a write deadline.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.settings.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.sendCh:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.settings.WriteTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.settings.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
