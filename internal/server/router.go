package server

import (
	"encoding/json"

	"go.uber.org/zap"

	"syphon-bridge/pkg/signal"
)

// RouteMessage answers a consumer request.
func (s *Server) RouteMessage(c *Client, msg *signal.Message) {
	s.metrics.requested(msg.Type)
	switch msg.Type {
	case signal.MsgTypeIsListening:
		c.SendResult(msg.RequestID, s.dir.IsListening())
	case signal.MsgTypeGetServers:
		c.SendResult(msg.RequestID, s.dir.Servers())
	default:
		c.SendError(msg.RequestID, "unknown message type: "+string(msg.Type))
	}
}

func (c *Client) SendError(requestID, errMsg string) {
	c.SendJSON(&signal.Message{
		Type:      signal.MsgTypeError,
		RequestID: requestID,
		Error:     errMsg,
	})
}

func (c *Client) SendResult(requestID string, v any) {
	msg, err := signal.Result(requestID, v)
	if err != nil {
		c.SendError(requestID, "encode result: "+err.Error())
		return
	}
	c.SendJSON(msg)
}

func (c *Client) SendJSON(msg *signal.Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		c.Server.logger.Error("SendJSON marshal error", zap.Error(err))
		return
	}
	c.enqueue(b)
}
