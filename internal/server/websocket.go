package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/randalmurphal/appforge/internal/logging"
	"github.com/randalmurphal/appforge/internal/notify"
)

// Client is one WebSocket observer of a single flow. It receives every
// notification published for the flow while it stays connected
type Client struct {
	conn   *websocket.Conn
	flowID string
	logger *slog.Logger

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	wsBufferSize   = 1024
)

// ErrClientClosed is returned when delivering to a disconnected client
var ErrClientClosed = errors.New("websocket client closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWebSocket(c *gin.Context) {
	flowID := c.Param("flowID")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed",
			logging.FlowID(flowID),
			logging.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		flowID: flowID,
		logger: s.logger,
		done:   make(chan struct{}),
	}

	sub := s.hub.Subscribe(flowID, client)
	if sub == nil {
		client.Close()
		return
	}
	s.registerWebSocket(client)

	go func() {
		defer func() {
			s.hub.Unsubscribe(sub)
			s.unregisterWebSocket(client)
			client.Close()
		}()
		client.run()
	}()
}

// Deliver implements notify.Observer
func (c *Client) Deliver(_ context.Context, _ string, msg notify.Message) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Error("WebSocket write failed",
			logging.FlowID(c.flowID),
			logging.Error(err))
		c.Close()
		return err
	}
	return nil
}

// Close drops the connection. Safe to call more than once
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
}

func (c *Client) run() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	closed := make(chan struct{})
	go c.readMessages(closed)

	for {
		select {
		case <-closed:
			return
		case <-c.done:
			return
		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

// readMessages discards inbound frames; reading keeps pong handling and
// disconnect detection alive
func (c *Client) readMessages(closed chan struct{}) {
	defer close(closed)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) sendPing() bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil) == nil
}
