package selector

import (
	"go.uber.org/zap"

	"syphon-bridge/internal/collection"
	"syphon-bridge/pkg/signal"
	"syphon-bridge/pkg/syphon"
)

func serverHandler(fn func(syphon.Description)) func(signal.Notification) {
	return func(n signal.Notification) {
		if n.Server == nil {
			return
		}
		fn(*n.Server)
	}
}

func (s *Selector) onAnnounce(d syphon.Description) {
	s.mu.Lock()
	s.record(d, changeAnnounce)
	_, added := s.servers.Add(d, false)
	if added && s.initialized {
		s.list.AddOption(optionFor(d))
	}
	s.mu.Unlock()

	if added {
		s.signals.Emit(SignalAnnounce, d)
	}
}

// onRetire drops d. When d was selected the selection falls back to the
// placeholder, or to nothing, and the sink is released.
func (s *Selector) onRetire(d syphon.Description) {
	s.mu.Lock()
	s.record(d, changeRetire)
	item, exists := s.servers.WithUUID(d.UUID)
	wasSelected := exists && item.Selected
	if wasSelected {
		s.servers.Select(collection.None())
		if s.initialized {
			s.list.Select("")
		}
	}
	_, removed := s.servers.Remove(d)
	if removed && s.initialized {
		s.list.RemoveOption(d.UUID)
	}
	var sink Sink
	if wasSelected {
		sink = s.sink
	}
	s.mu.Unlock()

	if sink != nil {
		sink.Unbind()
	}
	if removed {
		if wasSelected {
			s.logger.Info("selected server retired", zap.String("uuid", d.UUID))
		}
		s.signals.Emit(SignalRetire, d)
	}
}

// onUpdate refreshes names in place and never touches the selection.
func (s *Selector) onUpdate(d syphon.Description) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(d, changeUpdate)
	updated, ok := s.servers.Update(d)
	if ok && s.initialized {
		s.list.UpdateOption(optionFor(updated.Description))
	}
}

type changeKind int

const (
	changeAnnounce changeKind = iota
	changeRetire
	changeUpdate
)

type change struct {
	server    syphon.Description
	announced bool
	retired   bool
}

// journal records notifications received while a fetch is in flight.
type journal struct {
	order   []string
	changes map[string]*change
}

func (s *Selector) beginJournal() *journal {
	j := &journal{changes: make(map[string]*change)}
	s.journals[j] = struct{}{}
	return j
}

func (s *Selector) record(d syphon.Description, kind changeKind) {
	for j := range s.journals {
		j.record(d, kind)
	}
}

func (j *journal) record(d syphon.Description, kind changeKind) {
	c, ok := j.changes[d.UUID]
	if !ok {
		c = &change{}
		j.changes[d.UUID] = c
		j.order = append(j.order, d.UUID)
	}
	switch kind {
	case changeAnnounce:
		c.server = d
		c.announced = true
		c.retired = false
	case changeRetire:
		c.retired = true
		c.announced = false
	case changeUpdate:
		if !c.retired {
			c.server = d
		}
	}
}

// reconcile replaces the collection with fetched, corrected by j: retired
// servers stay out, journaled metadata wins, announced servers are kept and
// the selection follows its UUID. Callers hold mu.
func (s *Selector) reconcile(fetched []syphon.Description, j *journal) {
	selected, hadSelection := s.servers.Selected()

	next := collection.New(nil, -1)
	for _, d := range fetched {
		if c, ok := j.changes[d.UUID]; ok {
			if c.retired {
				continue
			}
			if c.server.UUID != "" {
				d = c.server
			}
		}
		next.Add(d, false)
	}
	for _, uuid := range j.order {
		c := j.changes[uuid]
		if c.announced && !c.retired {
			next.Add(c.server, false)
		}
	}
	if hadSelection {
		next.Select(collection.ByUUID(selected.UUID))
	}
	s.servers = next
}
