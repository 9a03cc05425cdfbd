// Package selector binds a server collection to an option list and to an
// optional rendering sink, and keeps both in step with directory
// notifications.
package selector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"syphon-bridge/internal/collection"
	"syphon-bridge/internal/listeners"
	"syphon-bridge/internal/proxy"
	"syphon-bridge/pkg/syphon"
)

// ErrNotAttached is returned by Refresh before Attach.
var ErrNotAttached = errors.New("selector not attached")

// Sink renders the frames of the selected server.
type Sink interface {
	BindServer(d syphon.Description)
	Unbind()
}

// SinkResolver finds a sink by id for the canvas attribute.
type SinkResolver func(id string) (Sink, bool)

// Signal is emitted after a structural change of the collection.
type Signal string

const (
	SignalAnnounce Signal = "announce"
	SignalRetire   Signal = "retire"
)

type Option func(*Selector)

// WithPlaceholder sets the text of the "no server" entry.
func WithPlaceholder(text string) Option {
	return func(s *Selector) { s.placeholder = text }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Selector) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithSinkResolver(r SinkResolver) Option {
	return func(s *Selector) { s.resolve = r }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(s *Selector) { s.fetchTimeout = d }
}

// WithTaskDelay sets how long attribute changes wait before being applied.
func WithTaskDelay(d time.Duration) Option {
	return func(s *Selector) { s.taskDelay = d }
}

type subscription struct {
	proxy *proxy.Proxy
	sub   proxy.Subscription
}

// Selector presents one consumer's view of the directory. Notification
// handlers and UI callbacks may run on different goroutines; the Selector
// serializes them and calls sinks and signal listeners without holding its
// lock.
type Selector struct {
	dir          *proxy.Directory
	list         OptionList
	logger       *zap.Logger
	resolve      SinkResolver
	fetchTimeout time.Duration
	taskDelay    time.Duration

	mu          sync.Mutex
	placeholder string
	servers     *collection.Collection
	initialized bool
	subs        []subscription
	sink        Sink
	tasks       map[string]*time.Timer
	journals    map[*journal]struct{}

	signals *listeners.Registry[Signal, syphon.Description]
}

func New(dir *proxy.Directory, list OptionList, opts ...Option) *Selector {
	if list == nil {
		list = NewMemoryList()
	}
	s := &Selector{
		dir:          dir,
		list:         list,
		logger:       zap.NewNop(),
		fetchTimeout: 5 * time.Second,
		servers:      collection.New(nil, -1),
		tasks:        make(map[string]*time.Timer),
		journals:     make(map[*journal]struct{}),
		signals:      listeners.New[Signal, syphon.Description](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("selector")
	return s
}

// Attach subscribes to announce, retire and update, fetches the current
// servers and builds the option list. Attaching an attached Selector is a
// no-op.
func (s *Selector) Attach(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	if err := s.subscribe(); err != nil {
		s.mu.Unlock()
		return err
	}
	j := s.beginJournal()
	s.mu.Unlock()

	servers, err := s.fetch(ctx)

	s.mu.Lock()
	delete(s.journals, j)
	if err != nil {
		s.unsubscribe()
		s.servers.Clear()
		s.mu.Unlock()
		return fmt.Errorf("attach selector: %w", err)
	}
	s.reconcile(servers, j)
	s.list.SetPlaceholder(s.placeholder)
	s.syncList()
	s.list.OnChanged(func(uuid string) { s.Choose(uuid) })
	s.initialized = true
	n := s.servers.Len()
	s.mu.Unlock()

	s.logger.Debug("attached", zap.Int("servers", n))
	return nil
}

// Refresh refetches the server set. Notifications received while the fetch
// is in flight take precedence over the fetched data.
func (s *Selector) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return ErrNotAttached
	}
	j := s.beginJournal()
	s.mu.Unlock()

	servers, err := s.fetch(ctx)

	s.mu.Lock()
	delete(s.journals, j)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("refresh selector: %w", err)
	}
	before, hadSelection := s.servers.Selected()
	s.reconcile(servers, j)
	_, hasSelection := s.servers.Selected()
	if s.initialized {
		s.syncList()
	}
	sink := s.sink
	s.mu.Unlock()

	if hadSelection && !hasSelection && sink != nil {
		s.logger.Debug("selected server gone after refresh", zap.String("uuid", before.UUID))
		sink.Unbind()
	}
	return nil
}

// Detach drops the subscriptions, the list callback, pending attribute tasks
// and the sink association.
func (s *Selector) Detach() {
	s.mu.Lock()
	s.unsubscribe()
	s.list.OnChanged(nil)
	for name, t := range s.tasks {
		t.Stop()
		delete(s.tasks, name)
	}
	sink := s.sink
	s.sink = nil
	s.initialized = false
	s.mu.Unlock()

	if sink != nil {
		sink.Unbind()
	}
}

// BindSink makes sink the only rendering sink. Binding the current sink again
// does nothing; a new sink receives the current selection and the previous
// one is released. A nil sink just releases the previous one.
func (s *Selector) BindSink(sink Sink) {
	s.mu.Lock()
	if sink == s.sink {
		s.mu.Unlock()
		return
	}
	prev := s.sink
	s.sink = sink
	item, ok := s.servers.Selected()
	s.mu.Unlock()

	if prev != nil {
		prev.Unbind()
	}
	if sink != nil && ok {
		sink.BindServer(item.Description)
	}
}

// Choose selects the server with uuid on behalf of the user and forwards it to
// the sink. An empty uuid clears the selection. An unknown uuid changes
// nothing.
func (s *Selector) Choose(uuid string) (collection.Item, bool) {
	s.mu.Lock()
	var (
		item collection.Item
		ok   bool
	)
	if uuid == "" {
		s.servers.Select(collection.None())
	} else if item, ok = s.servers.Select(collection.ByUUID(uuid)); !ok {
		s.mu.Unlock()
		s.logger.Debug("chosen server not in collection", zap.String("uuid", uuid))
		return item, false
	}
	if s.initialized {
		s.list.Select(uuid)
	}
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		if ok {
			sink.BindServer(item.Description)
		} else {
			sink.Unbind()
		}
	}
	return item, ok
}

// On registers fn for sig.
func (s *Selector) On(sig Signal, fn func(syphon.Description)) listeners.ID {
	return s.signals.Add(sig, fn)
}

// Off removes the given listeners of sig, or all of them when ids is empty.
func (s *Selector) Off(sig Signal, ids ...listeners.ID) {
	s.signals.Remove(sig, ids...)
}

func (s *Selector) Selected() (collection.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.servers.Selected()
}

// SelectedIndex returns the collection index of the selection or -1.
func (s *Selector) SelectedIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.servers.SelectedIndex()
}

func (s *Selector) Servers() []collection.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.servers.Items()
}

func (s *Selector) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Subscriptions returns the number of live directory subscriptions.
func (s *Selector) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Selector) subscribe() error {
	handlers := []struct {
		proxy *proxy.Proxy
		fn    func(syphon.Description)
	}{
		{s.dir.Announce, s.onAnnounce},
		{s.dir.Retire, s.onRetire},
		{s.dir.Update, s.onUpdate},
	}
	for _, h := range handlers {
		sub, err := h.proxy.Subscribe(serverHandler(h.fn))
		if err != nil {
			s.unsubscribe()
			return err
		}
		s.subs = append(s.subs, subscription{proxy: h.proxy, sub: sub})
	}
	return nil
}

func (s *Selector) unsubscribe() {
	for _, sub := range s.subs {
		sub.proxy.Unsubscribe(sub.sub)
	}
	s.subs = nil
}

func (s *Selector) fetch(ctx context.Context) ([]syphon.Description, error) {
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}
	return s.dir.GetServers(ctx)
}

// syncList rebuilds the option list from the collection. Callers hold mu.
func (s *Selector) syncList() {
	s.list.SetOptions(options(s.servers))
	if item, ok := s.servers.Selected(); ok {
		s.list.Select(item.UUID)
	} else {
		s.list.Select("")
	}
}

func options(c *collection.Collection) []Entry {
	opts := make([]Entry, 0, c.Len())
	for _, item := range c.All() {
		opts = append(opts, optionFor(item.Description))
	}
	return opts
}

func optionFor(d syphon.Description) Entry {
	return Entry{Value: d.UUID, Text: syphon.FormatName(d)}
}
