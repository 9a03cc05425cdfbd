// Package proxy gives a consumer context typed access to the producer
// directory: one subscribe/unsubscribe pair per notification kind plus the
// two boundary queries.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"syphon-bridge/internal/listeners"
	"syphon-bridge/pkg/signal"
	"syphon-bridge/pkg/syphon"
)

// ErrAPINotInstalled means the consumer was wired without a boundary client.
var ErrAPINotInstalled = errors.New("directory API not installed")

// ConfigurationError is returned at first use of a proxy whose API is missing.
type ConfigurationError struct {
	Op string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrAPINotInstalled)
}

func (e *ConfigurationError) Unwrap() error { return ErrAPINotInstalled }

// API is the consumer end of the boundary channel. *client.Client satisfies it.
type API interface {
	IsListening(ctx context.Context) (bool, error)
	GetServers(ctx context.Context) ([]syphon.Description, error)
	On(ch syphon.Channel, fn func(signal.Notification)) listeners.ID
	Off(ch syphon.Channel, ids ...listeners.ID)
}

// Subscription identifies one Subscribe call.
type Subscription struct {
	Channel syphon.Channel
	id      listeners.ID
}

// Valid reports whether s came from a successful Subscribe.
func (s Subscription) Valid() bool { return s.id != 0 }

// Proxy subscribes to one notification kind. Subscribers do not get a replay
// of servers announced before they subscribed.
type Proxy struct {
	api     API
	channel syphon.Channel

	mu   sync.Mutex
	subs map[listeners.ID]struct{}
}

func newProxy(api API, ch syphon.Channel) *Proxy {
	return &Proxy{api: api, channel: ch, subs: make(map[listeners.ID]struct{})}
}

func (p *Proxy) Channel() syphon.Channel { return p.channel }

// Subscribe registers fn for pushed notifications of the proxy's kind.
func (p *Proxy) Subscribe(fn func(signal.Notification)) (Subscription, error) {
	if p.api == nil {
		return Subscription{}, &ConfigurationError{Op: "subscribe " + string(p.channel)}
	}
	id := p.api.On(p.channel, fn)
	p.mu.Lock()
	p.subs[id] = struct{}{}
	p.mu.Unlock()
	return Subscription{Channel: p.channel, id: id}, nil
}

// Unsubscribe removes exactly sub. Unknown or already removed subscriptions
// are ignored.
func (p *Proxy) Unsubscribe(sub Subscription) {
	if p.api == nil || sub.Channel != p.channel {
		return
	}
	p.mu.Lock()
	_, ok := p.subs[sub.id]
	delete(p.subs, sub.id)
	p.mu.Unlock()
	if ok {
		p.api.Off(p.channel, sub.id)
	}
}

// Len returns the number of live subscriptions made through p.
func (p *Proxy) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Directory bundles the per-kind proxies of one consumer context.
type Directory struct {
	api API

	Announce *Proxy
	Retire   *Proxy
	Update   *Proxy
	Info     *Proxy
	Error    *Proxy
}

// NewDirectory may be called with a nil api, e.g. before the boundary client
// is dialed; every operation then fails with a *ConfigurationError.
func NewDirectory(api API) *Directory {
	return &Directory{
		api:      api,
		Announce: newProxy(api, syphon.ChannelAnnounce),
		Retire:   newProxy(api, syphon.ChannelRetire),
		Update:   newProxy(api, syphon.ChannelUpdate),
		Info:     newProxy(api, syphon.ChannelInfo),
		Error:    newProxy(api, syphon.ChannelError),
	}
}

// Installed reports whether d has a boundary client.
func (d *Directory) Installed() bool { return d.api != nil }

func (d *Directory) IsListening(ctx context.Context) (bool, error) {
	if d.api == nil {
		return false, &ConfigurationError{Op: "is listening"}
	}
	return d.api.IsListening(ctx)
}

func (d *Directory) GetServers(ctx context.Context) ([]syphon.Description, error) {
	if d.api == nil {
		return nil, &ConfigurationError{Op: "get servers"}
	}
	return d.api.GetServers(ctx)
}

// Proxy returns the proxy for ch, or nil for an unknown kind.
func (d *Directory) Proxy(ch syphon.Channel) *Proxy {
	switch ch {
	case syphon.ChannelAnnounce:
		return d.Announce
	case syphon.ChannelRetire:
		return d.Retire
	case syphon.ChannelUpdate:
		return d.Update
	case syphon.ChannelInfo:
		return d.Info
	case syphon.ChannelError:
		return d.Error
	}
	return nil
}
