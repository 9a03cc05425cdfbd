// Package directory owns the producer-side view of the native server directory
// and fans its notifications out to local listeners and to connected consumers.
package directory

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"syphon-bridge/internal/listeners"
	"syphon-bridge/pkg/signal"
	"syphon-bridge/pkg/syphon"
)

// Pusher delivers a notification across the process boundary.
type Pusher interface {
	Push(n signal.Notification)
}

type Option func(*Registry)

func WithPusher(p Pusher) Option {
	return func(r *Registry) { r.pusher = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// Registry is the single source of truth for server membership in the
// producer process. Create one per native directory and Dispose it on exit.
type Registry struct {
	native    syphon.Directory
	pusher    Pusher
	logger    *zap.Logger
	listeners *listeners.Registry[syphon.Channel, signal.Notification]

	mu         sync.Mutex
	subscribed bool
	listening  bool
}

func New(native syphon.Directory, opts ...Option) *Registry {
	r := &Registry{
		native:    native,
		logger:    zap.NewNop(),
		listeners: listeners.New[syphon.Channel, signal.Notification](),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("directory")
	return r
}

// SetPusher replaces the boundary pusher. Call it before Listen.
func (r *Registry) SetPusher(p Pusher) {
	r.mu.Lock()
	r.pusher = p
	r.mu.Unlock()
}

// Servers returns a snapshot of the current server set.
func (r *Registry) Servers() []syphon.Description {
	return syphon.Clone(r.native.Servers())
}

// IsRunning reports whether the native directory is running.
func (r *Registry) IsRunning() bool {
	return r.native.IsRunning()
}

// IsListening reports whether Listen has completed.
func (r *Registry) IsListening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// Listen subscribes to the native directory and starts forwarding. Calls after
// the first successful one are no-ops; after a failed native Listen it may be
// retried without subscribing twice.
func (r *Registry) Listen() error {
	r.mu.Lock()
	if r.listening {
		r.mu.Unlock()
		return nil
	}
	if !r.subscribed {
		for _, ch := range syphon.Channels {
			r.native.On(ch, func(ev syphon.Event) { r.forward(ch, ev) })
		}
		r.subscribed = true
	}
	r.mu.Unlock()

	// Natives may emit from inside Listen, and forwarded listeners may call
	// back into the registry, so mu is not held here.
	if err := r.native.Listen(); err != nil {
		return fmt.Errorf("listen native directory: %w", err)
	}

	r.mu.Lock()
	r.listening = true
	r.mu.Unlock()
	r.logger.Info("listening", zap.Int("servers", len(r.native.Servers())))
	return nil
}

// On registers fn for ch. An announce listener registered while listening is
// immediately called once per current server, in order.
func (r *Registry) On(ch syphon.Channel, fn func(signal.Notification)) listeners.ID {
	id := r.listeners.Add(ch, fn)
	if ch == syphon.ChannelAnnounce && r.IsListening() {
		servers := r.Servers()
		for _, s := range servers {
			n := signal.NewNotification(ch, syphon.Event{Server: s}, servers)
			if !r.listeners.Call(ch, id, n) {
				break
			}
		}
	}
	return id
}

// Watch registers fn for ch like On, without the announce replay.
func (r *Registry) Watch(ch syphon.Channel, fn func(signal.Notification)) listeners.ID {
	return r.listeners.Add(ch, fn)
}

// Off removes the given listeners of ch, or all of them when ids is empty.
func (r *Registry) Off(ch syphon.Channel, ids ...listeners.ID) {
	r.listeners.Remove(ch, ids...)
}

// Dispose removes every local listener and releases the native directory,
// which drops its handlers. It may be called more than once.
func (r *Registry) Dispose() error {
	r.mu.Lock()
	r.listening = false
	r.subscribed = false
	r.mu.Unlock()
	for _, ch := range r.listeners.Kinds() {
		r.Off(ch)
	}
	if err := r.native.Dispose(); err != nil {
		return fmt.Errorf("dispose native directory: %w", err)
	}
	return nil
}

func (r *Registry) forward(ch syphon.Channel, ev syphon.Event) {
	n := signal.NewNotification(ch, ev, r.Servers())
	switch ch {
	case syphon.ChannelError:
		r.logger.Warn("native directory error", zap.String("error", ev.Message))
	case syphon.ChannelInfo:
		r.logger.Debug("native directory info", zap.String("info", ev.Message))
	default:
		r.logger.Debug("server "+string(ch), zap.String("uuid", ev.Server.UUID), zap.String("app", ev.Server.AppName))
	}

	r.listeners.Emit(ch, n)
	if r.pusher != nil {
		r.pusher.Push(n)
	}
}
