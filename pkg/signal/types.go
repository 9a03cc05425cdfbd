package signal

import (
	"encoding/json"

	"syphon-bridge/pkg/syphon"
)

// MessageType is the type field of a message exchanged over the directory channel.
type MessageType string

const (
	MsgTypeIsListening  MessageType = "is_listening"
	MsgTypeGetServers   MessageType = "get_servers"
	MsgTypeResult       MessageType = "result"
	MsgTypeError        MessageType = "error"
	MsgTypeNotification MessageType = "notification"
)

// Message is the envelope for requests, responses and pushed notifications.
// Responses echo the RequestID of the request they answer.
type Message struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Channel   syphon.Channel  `json:"channel,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Notification is the payload pushed for every directory event. Server is set
// for announce, retire and update; Info or Error for diagnostics. Servers is
// always the directory's full set at the time of the event.
type Notification struct {
	Channel syphon.Channel       `json:"-"`
	Server  *syphon.Description  `json:"server,omitempty"`
	Info    string               `json:"info,omitempty"`
	Error   string               `json:"error,omitempty"`
	Servers []syphon.Description `json:"servers"`
}

// NewNotification builds the notification for a raw native event.
func NewNotification(ch syphon.Channel, ev syphon.Event, servers []syphon.Description) Notification {
	n := Notification{Channel: ch, Servers: servers}
	switch ch {
	case syphon.ChannelInfo:
		n.Info = ev.Message
	case syphon.ChannelError:
		n.Error = ev.Message
	default:
		server := ev.Server
		n.Server = &server
	}
	return n
}

// Encode wraps n in a notification message.
func (n Notification) Encode() ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: MsgTypeNotification, Channel: n.Channel, Data: data})
}

// DecodeNotification extracts the notification carried by msg.
func DecodeNotification(msg Message) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		return n, err
	}
	n.Channel = msg.Channel
	return n, nil
}

// Result builds a response to the request identified by requestID.
func Result(requestID string, v any) (*Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Message{Type: MsgTypeResult, RequestID: requestID, Data: data}, nil
}
