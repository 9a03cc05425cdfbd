package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"syphon-bridge/internal/listeners"
	"syphon-bridge/pkg/signal"
	"syphon-bridge/pkg/syphon"
	"syphon-bridge/pkg/utils"
)

const writeWait = 10 * time.Second

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCallTimeout bounds every request that has no earlier context deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) { c.callTimeout = d }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// Client is the consumer end of the directory channel. Requests may be issued
// concurrently; pushed notifications are delivered to listeners from the read
// goroutine in the order the producer sent them.
type Client struct {
	url         string
	dialer      *websocket.Dialer
	logger      *zap.Logger
	callTimeout time.Duration

	ws      *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan signal.Message
	closed  bool
	done    chan struct{}
	once    sync.Once

	listeners *listeners.Registry[syphon.Channel, signal.Notification]
}

// Dial connects to the producer at url.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{
		url:         url,
		dialer:      websocket.DefaultDialer,
		logger:      zap.NewNop(),
		callTimeout: 5 * time.Second,
		pending:     make(map[string]chan signal.Message),
		done:        make(chan struct{}),
		listeners:   listeners.New[syphon.Channel, signal.Notification](),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("client")

	ws, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &BoundaryCallError{Op: "dial", Err: err}
	}
	c.ws = ws
	go c.readLoop()
	return c, nil
}

// IsListening asks whether the producer directory is listening.
func (c *Client) IsListening(ctx context.Context) (bool, error) {
	var listening bool
	err := c.call(ctx, signal.MsgTypeIsListening, &listening)
	return listening, err
}

// GetServers fetches the producer's current server set.
func (c *Client) GetServers(ctx context.Context) ([]syphon.Description, error) {
	var servers []syphon.Description
	if err := c.call(ctx, signal.MsgTypeGetServers, &servers); err != nil {
		return nil, err
	}
	return servers, nil
}

// On registers fn for notifications pushed on ch.
func (c *Client) On(ch syphon.Channel, fn func(signal.Notification)) listeners.ID {
	return c.listeners.Add(ch, fn)
}

// Off removes the given listeners of ch, or all of them when ids is empty.
func (c *Client) Off(ch syphon.Channel, ids ...listeners.ID) {
	c.listeners.Remove(ch, ids...)
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close shuts the connection down. Pending calls return ErrClosed.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	<-c.done
	return err
}

// call performs one request. Every failure, including a panic in the
// transport, comes back as a *BoundaryCallError.
func (c *Client) call(ctx context.Context, t signal.MessageType, out any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &BoundaryCallError{Op: string(t), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := c.roundTrip(ctx, t, out); err != nil {
		return &BoundaryCallError{Op: string(t), Err: err}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, t signal.MessageType, out any) error {
	if _, ok := ctx.Deadline(); !ok && c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	id := utils.GenID()
	reply := make(chan signal.Message, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(signal.Message{Type: t, RequestID: id}); err != nil {
		return err
	}

	select {
	case msg := <-reply:
		if msg.Type == signal.MsgTypeError {
			return fmt.Errorf("%w: %s", ErrRemote, msg.Error)
		}
		return json.Unmarshal(msg.Data, out)
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) write(msg signal.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		c.ws.Close()
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("directory channel read error", zap.Error(err))
			}
			return
		}

		var msg signal.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("parse message", zap.Error(err))
			continue
		}
		switch msg.Type {
		case signal.MsgTypeNotification:
			n, err := signal.DecodeNotification(msg)
			if err != nil {
				c.logger.Warn("decode notification", zap.String("channel", string(msg.Channel)), zap.Error(err))
				continue
			}
			c.listeners.Emit(n.Channel, n)
		case signal.MsgTypeResult, signal.MsgTypeError:
			c.resolve(msg)
		default:
			c.logger.Debug("ignoring message", zap.String("type", string(msg.Type)))
		}
	}
}

func (c *Client) resolve(msg signal.Message) {
	c.mu.Lock()
	reply, ok := c.pending[msg.RequestID]
	c.mu.Unlock()
	if !ok {
		if msg.Type == signal.MsgTypeError {
			c.logger.Warn("producer error", zap.String("error", msg.Error))
		}
		return
	}
	select {
	case reply <- msg:
	default:
	}
}
