// Package discovery finds video servers on the local network. Each server
// broadcasts a small UDP beacon; a Directory listens for beacons and turns
// them into announce, update and retire notifications.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"syphon-bridge/internal/listeners"
	"syphon-bridge/pkg/syphon"
)

// DefaultPort is the UDP port beacons are sent to and read from.
const DefaultPort = 47815

const magic = "syphon-bridge-v1"

// Beacon is the datagram a server broadcasts. Bye is sent once when the
// server goes away.
type Beacon struct {
	Magic   string `json:"magic"`
	UUID    string `json:"uuid"`
	AppName string `json:"app_name"`
	Name    string `json:"name,omitempty"`
	Bye     bool   `json:"bye,omitempty"`
}

func (b Beacon) description() syphon.Description {
	return syphon.Description{UUID: b.UUID, AppName: b.AppName, Name: b.Name}
}

// RunBeacon broadcasts server to target every interval until ctx is done,
// then sends a goodbye. target is a host:port, usually the broadcast address.
func RunBeacon(ctx context.Context, target string, interval time.Duration, server syphon.Description) error {
	if server.UUID == "" || server.AppName == "" {
		return fmt.Errorf("beacon needs a uuid and an app name")
	}
	addr, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return fmt.Errorf("resolve beacon target: %w", err)
	}

	b := Beacon{Magic: magic, UUID: server.UUID, AppName: server.AppName, Name: server.Name}
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	b.Bye = true
	bye, err := json.Marshal(b)
	if err != nil {
		return err
	}

	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.WriteTo(payload, addr); err != nil {
		return fmt.Errorf("send beacon: %w", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_, _ = conn.WriteTo(bye, addr)
			return nil
		case <-ticker.C:
			_, _ = conn.WriteTo(payload, addr)
		}
	}
}

type Option func(*Directory)

// WithAddr sets the local UDP address to listen on, ":47815" by default.
func WithAddr(addr string) Option {
	return func(d *Directory) { d.addr = addr }
}

// WithTTL sets how long a server stays listed without a beacon.
func WithTTL(ttl time.Duration) Option {
	return func(d *Directory) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.logger = l
		}
	}
}

type entry struct {
	desc     syphon.Description
	lastSeen time.Time
}

// Directory is a syphon.Directory fed by beacons. All notifications are
// emitted from a single goroutine, in the order they happen.
type Directory struct {
	addr   string
	ttl    time.Duration
	logger *zap.Logger

	handlers *listeners.Registry[syphon.Channel, syphon.Event]

	mu      sync.Mutex
	conn    net.PacketConn
	order   []string
	entries map[string]*entry
	done    chan struct{}
}

func New(opts ...Option) *Directory {
	d := &Directory{
		addr:     fmt.Sprintf(":%d", DefaultPort),
		ttl:      10 * time.Second,
		logger:   zap.NewNop(),
		handlers: listeners.New[syphon.Channel, syphon.Event](),
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("discovery")
	return d
}

func (d *Directory) Servers() []syphon.Description {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]syphon.Description, 0, len(d.order))
	for _, uuid := range d.order {
		out = append(out, d.entries[uuid].desc)
	}
	return out
}

func (d *Directory) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

func (d *Directory) On(ch syphon.Channel, fn func(syphon.Event)) {
	d.handlers.Add(ch, fn)
}

// Listen binds the UDP socket and starts reading beacons.
func (d *Directory) Listen() error {
	d.mu.Lock()
	if d.conn != nil {
		d.mu.Unlock()
		return nil
	}
	conn, err := net.ListenPacket("udp4", d.addr)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("listen for beacons: %w", err)
	}
	d.conn = conn
	d.done = make(chan struct{})
	done := d.done
	d.mu.Unlock()

	d.logger.Info("listening for beacons", zap.String("addr", conn.LocalAddr().String()))
	go d.readLoop(conn, done)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (d *Directory) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	return d.conn.LocalAddr()
}

// Dispose closes the socket, drops every handler and forgets all servers.
// It may be called more than once.
func (d *Directory) Dispose() error {
	d.mu.Lock()
	conn, done := d.conn, d.done
	d.conn = nil
	d.done = nil
	d.mu.Unlock()

	d.handlers.Clear()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-done

	d.mu.Lock()
	d.order = nil
	d.entries = make(map[string]*entry)
	d.mu.Unlock()
	return err
}

func (d *Directory) readLoop(conn net.PacketConn, done chan struct{}) {
	defer close(done)
	d.emit(syphon.ChannelInfo, syphon.Event{Message: "listening for beacons on " + conn.LocalAddr().String()})

	sweep := d.ttl / 2
	buf := make([]byte, 2048)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(sweep))
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				d.expire(time.Now())
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			d.emit(syphon.ChannelError, syphon.Event{Message: err.Error()})
			continue
		}

		var b Beacon
		if err := json.Unmarshal(buf[:n], &b); err != nil || b.Magic != magic || b.UUID == "" {
			d.logger.Debug("ignoring datagram", zap.Stringer("from", src))
			continue
		}
		d.handle(b, time.Now())
		d.expire(time.Now())
	}
}

func (d *Directory) handle(b Beacon, now time.Time) {
	desc := b.description()

	d.mu.Lock()
	e, known := d.entries[b.UUID]
	switch {
	case b.Bye:
		if !known {
			d.mu.Unlock()
			return
		}
		d.remove(b.UUID)
		d.mu.Unlock()
		d.emit(syphon.ChannelRetire, syphon.Event{Server: e.desc})
	case !known:
		d.entries[b.UUID] = &entry{desc: desc, lastSeen: now}
		d.order = append(d.order, b.UUID)
		d.mu.Unlock()
		d.emit(syphon.ChannelAnnounce, syphon.Event{Server: desc})
	case e.desc != desc:
		e.desc = desc
		e.lastSeen = now
		d.mu.Unlock()
		d.emit(syphon.ChannelUpdate, syphon.Event{Server: desc})
	default:
		e.lastSeen = now
		d.mu.Unlock()
	}
}

func (d *Directory) expire(now time.Time) {
	d.mu.Lock()
	var gone []syphon.Description
	for _, uuid := range append([]string(nil), d.order...) {
		e := d.entries[uuid]
		if now.Sub(e.lastSeen) > d.ttl {
			gone = append(gone, e.desc)
			d.remove(uuid)
		}
	}
	d.mu.Unlock()

	for _, desc := range gone {
		d.logger.Debug("beacon expired", zap.String("uuid", desc.UUID))
		d.emit(syphon.ChannelRetire, syphon.Event{Server: desc})
	}
}

// remove drops uuid. Callers hold mu.
func (d *Directory) remove(uuid string) {
	delete(d.entries, uuid)
	for i, u := range d.order {
		if u == uuid {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (d *Directory) emit(ch syphon.Channel, ev syphon.Event) {
	d.handlers.Emit(ch, ev)
}
