// Package screen exposes the local displays as video servers.
package screen

import (
	"fmt"
	"image"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"go.uber.org/zap"

	"syphon-bridge/internal/listeners"
	"syphon-bridge/pkg/syphon"
)

// AppName is the application name of every display server.
const AppName = "Screen"

const uuidPrefix = "screen-"

// Enumerator reports the bounds of every active display, in display order.
type Enumerator func() []image.Rectangle

// ActiveDisplays enumerates displays with the screenshot library.
func ActiveDisplays() []image.Rectangle {
	n := screenshot.NumActiveDisplays()
	out := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, screenshot.GetDisplayBounds(i))
	}
	return out
}

// Describe returns the server for display index.
func Describe(index int, bounds image.Rectangle) syphon.Description {
	return syphon.Description{
		UUID:    uuidPrefix + strconv.Itoa(index),
		AppName: AppName,
		Name:    fmt.Sprintf("Display %d (%dx%d)", index, bounds.Dx(), bounds.Dy()),
	}
}

// DisplayIndex returns the display behind a server created by this package.
func DisplayIndex(d syphon.Description) (int, bool) {
	rest, ok := strings.CutPrefix(d.UUID, uuidPrefix)
	if !ok || d.AppName != AppName {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

type Option func(*Directory)

func WithInterval(d time.Duration) Option {
	return func(dir *Directory) {
		if d > 0 {
			dir.interval = d
		}
	}
}

func WithEnumerator(e Enumerator) Option {
	return func(dir *Directory) {
		if e != nil {
			dir.enumerate = e
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(dir *Directory) {
		if l != nil {
			dir.logger = l
		}
	}
}

// Directory polls the display list and reports displays that appear,
// disappear or change resolution.
type Directory struct {
	interval  time.Duration
	enumerate Enumerator
	logger    *zap.Logger

	handlers *listeners.Registry[syphon.Channel, syphon.Event]

	pollMu  sync.Mutex
	mu      sync.Mutex
	servers []syphon.Description
	stop    chan struct{}
	done    chan struct{}
}

func New(opts ...Option) *Directory {
	d := &Directory{
		interval:  2 * time.Second,
		enumerate: ActiveDisplays,
		logger:    zap.NewNop(),
		handlers:  listeners.New[syphon.Channel, syphon.Event](),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("screen")
	return d
}

func (d *Directory) Servers() []syphon.Description {
	d.mu.Lock()
	defer d.mu.Unlock()
	return syphon.Clone(d.servers)
}

func (d *Directory) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stop != nil
}

func (d *Directory) On(ch syphon.Channel, fn func(syphon.Event)) {
	d.handlers.Add(ch, fn)
}

// Listen takes a first inventory, announcing every display, and starts
// polling.
func (d *Directory) Listen() error {
	d.mu.Lock()
	if d.stop != nil {
		d.mu.Unlock()
		return nil
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	stop, done := d.stop, d.done
	d.mu.Unlock()

	d.handlers.Emit(syphon.ChannelInfo, syphon.Event{Message: "watching displays"})
	d.Poll()
	go d.loop(stop, done)
	return nil
}

// Dispose stops polling and drops every handler. It may be called more than
// once.
func (d *Directory) Dispose() error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	d.handlers.Clear()
	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (d *Directory) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.Poll()
		}
	}
}

// Poll compares the current displays with the last inventory and emits the
// difference.
func (d *Directory) Poll() {
	d.pollMu.Lock()
	defer d.pollMu.Unlock()

	bounds, ok := d.safeEnumerate()
	if !ok {
		return
	}
	current := make([]syphon.Description, 0, len(bounds))
	for i, b := range bounds {
		current = append(current, Describe(i, b))
	}

	d.mu.Lock()
	previous := d.servers
	d.servers = current
	d.mu.Unlock()

	prev := make(map[string]syphon.Description, len(previous))
	for _, s := range previous {
		prev[s.UUID] = s
	}
	seen := make(map[string]bool, len(current))
	for _, s := range current {
		seen[s.UUID] = true
		old, ok := prev[s.UUID]
		switch {
		case !ok:
			d.handlers.Emit(syphon.ChannelAnnounce, syphon.Event{Server: s})
		case old != s:
			d.handlers.Emit(syphon.ChannelUpdate, syphon.Event{Server: s})
		}
	}
	for _, s := range previous {
		if !seen[s.UUID] {
			d.handlers.Emit(syphon.ChannelRetire, syphon.Event{Server: s})
		}
	}
}

func (d *Directory) safeEnumerate() (bounds []image.Rectangle, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("enumerate displays", zap.Any("panic", r))
			d.handlers.Emit(syphon.ChannelError, syphon.Event{Message: fmt.Sprintf("enumerate displays: %v", r)})
			bounds, ok = nil, false
		}
	}()
	return d.enumerate(), true
}
