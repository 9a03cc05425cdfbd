package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"syphon-bridge/pkg/signal"
	"syphon-bridge/pkg/syphon"
)

// Directory is the producer state answered over the boundary.
type Directory interface {
	IsListening() bool
	Servers() []syphon.Description
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server is the producer end of the directory channel. Every connected
// consumer receives every pushed notification; consumers that connect later
// do not get earlier ones.
type Server struct {
	Clients  map[*Client]bool
	dir      Directory
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *Metrics
}

func NewServer(dir Directory, opts ...Option) *Server {
	s := &Server{
		Clients: make(map[*Client]bool),
		dir:     dir,
		logger:  zap.NewNop(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("boundary")
	return s
}

// ServeWS upgrades the request and starts serving one consumer.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(conn, s)

	s.registerClient(client)

	go client.writePump()
	go client.readPump()
}

// Push sends n to every connected consumer.
func (s *Server) Push(n signal.Notification) {
	b, err := n.Encode()
	if err != nil {
		s.logger.Error("encode notification", zap.String("channel", string(n.Channel)), zap.Error(err))
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.Clients {
		c.enqueue(b)
	}
	s.metrics.pushed(n.Channel)
}

// ClientCount returns the number of connected consumers.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Clients)
}

// Close disconnects every consumer.
func (s *Server) Close() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.Clients {
		c.Conn.Close()
	}
}

func (s *Server) registerClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Clients[c] = true
	s.metrics.connected(len(s.Clients))
	s.logger.Info("consumer connected", zap.String("peer_id", c.PeerID))
}

func (s *Server) unregisterClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Clients[c] {
		return
	}
	delete(s.Clients, c)
	s.metrics.connected(len(s.Clients))
	s.logger.Info("consumer disconnected", zap.String("peer_id", c.PeerID))

	close(c.Send)
}
