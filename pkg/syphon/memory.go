package syphon

import (
	"slices"
	"sync"
)

// MemoryDirectory is an in-process Directory whose membership is driven by
// calls to Announce, Retire and Update. It backs tests and demos.
type MemoryDirectory struct {
	mu        sync.Mutex
	servers   []Description
	handlers  map[Channel][]func(Event)
	running   bool
	disposals int
}

func NewMemoryDirectory(servers ...Description) *MemoryDirectory {
	return &MemoryDirectory{
		servers:  Clone(servers),
		handlers: make(map[Channel][]func(Event)),
	}
}

func (d *MemoryDirectory) Servers() []Description {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Clone(d.servers)
}

func (d *MemoryDirectory) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *MemoryDirectory) Listen() error {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()
	return nil
}

func (d *MemoryDirectory) Dispose() error {
	d.mu.Lock()
	d.running = false
	d.handlers = make(map[Channel][]func(Event))
	d.disposals++
	d.mu.Unlock()
	return nil
}

func (d *MemoryDirectory) On(ch Channel, fn func(Event)) {
	d.mu.Lock()
	d.handlers[ch] = append(d.handlers[ch], fn)
	d.mu.Unlock()
}

// HandlerCount returns how many handlers are subscribed to ch.
func (d *MemoryDirectory) HandlerCount(ch Channel) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers[ch])
}

// Disposals returns how many times Dispose was called.
func (d *MemoryDirectory) Disposals() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposals
}

// Announce adds s (or replaces a server with the same UUID) and emits announce.
func (d *MemoryDirectory) Announce(s Description) {
	d.mu.Lock()
	if i := d.indexOf(s.UUID); i >= 0 {
		d.servers[i] = s
	} else {
		d.servers = append(d.servers, s)
	}
	d.mu.Unlock()
	d.emit(ChannelAnnounce, Event{Server: s})
}

// Retire removes the server with s.UUID and emits retire.
func (d *MemoryDirectory) Retire(s Description) {
	d.mu.Lock()
	if i := d.indexOf(s.UUID); i >= 0 {
		d.servers = append(d.servers[:i], d.servers[i+1:]...)
	}
	d.mu.Unlock()
	d.emit(ChannelRetire, Event{Server: s})
}

// Update replaces the metadata of the server with s.UUID and emits update.
func (d *MemoryDirectory) Update(s Description) {
	d.mu.Lock()
	if i := d.indexOf(s.UUID); i >= 0 {
		d.servers[i] = s
	}
	d.mu.Unlock()
	d.emit(ChannelUpdate, Event{Server: s})
}

func (d *MemoryDirectory) Info(msg string) { d.emit(ChannelInfo, Event{Message: msg}) }

func (d *MemoryDirectory) Fail(msg string) { d.emit(ChannelError, Event{Message: msg}) }

func (d *MemoryDirectory) indexOf(uuid string) int {
	for i, s := range d.servers {
		if s.UUID == uuid {
			return i
		}
	}
	return -1
}

func (d *MemoryDirectory) emit(ch Channel, ev Event) {
	d.mu.Lock()
	handlers := slices.Clone(d.handlers[ch])
	d.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}
