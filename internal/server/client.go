package server

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"syphon-bridge/pkg/signal"
	"syphon-bridge/pkg/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	readLimit  = 512 * 1024
	sendQueue  = 256
)

// Client is one connected consumer context.
type Client struct {
	Conn   *websocket.Conn
	Send   chan []byte
	PeerID string
	Server *Server
}

func NewClient(conn *websocket.Conn, s *Server) *Client {
	return &Client{
		Conn:   conn,
		Send:   make(chan []byte, sendQueue),
		Server: s,
		PeerID: utils.GenID(),
	}
}

func (c *Client) readPump() {
	defer func() {
		c.Server.unregisterClient(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msgBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Server.logger.Warn("consumer read error", zap.String("peer_id", c.PeerID), zap.Error(err))
			}
			break
		}
		c.handleMessage(msgBytes)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msgBytes []byte) {
	var msg signal.Message
	if err := json.Unmarshal(msgBytes, &msg); err != nil {
		c.SendError("", "invalid message format")
		return
	}

	c.Server.RouteMessage(c, &msg)
}

// enqueue queues b without blocking; a consumer that cannot keep up loses it.
func (c *Client) enqueue(b []byte) {
	select {
	case c.Send <- b:
	default:
		c.Server.metrics.droppedMessage()
		c.Server.logger.Warn("consumer queue full, message dropped", zap.String("peer_id", c.PeerID))
	}
}
