package selector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"syphon-bridge/internal/collection"
)

// Attribute names accepted by SetAttribute.
const (
	AttrPlaceholder = "placeholder"
	AttrSelected    = "selected"
	AttrCanvas      = "canvas"
	AttrUUID        = "uuid"
)

// SetAttribute applies a UI attribute change. placeholder takes effect at
// once. selected and canvas run as deferred tasks; a newer change of the same
// attribute cancels a task that has not run yet. uuid is accepted and
// ignored until selections are persisted.
func (s *Selector) SetAttribute(name, value string) error {
	switch name {
	case AttrPlaceholder:
		s.setPlaceholder(strings.TrimSpace(value))
	case AttrSelected:
		if value == "" {
			s.cancel(name)
			return nil
		}
		index, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("selected attribute %q: %w", value, err)
		}
		s.schedule(name, func() { s.applySelected(index) })
	case AttrCanvas:
		if value != "" && s.resolve == nil {
			return fmt.Errorf("canvas attribute %q: no sink resolver", value)
		}
		s.schedule(name, func() { s.applyCanvas(value) })
	case AttrUUID:
		s.logger.Debug("uuid attribute ignored", zap.String("uuid", value))
	default:
		return fmt.Errorf("unknown attribute %q", name)
	}
	return nil
}

// PendingTasks returns the number of deferred attribute tasks not yet run.
func (s *Selector) PendingTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Selector) setPlaceholder(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placeholder = text
	if !s.initialized {
		return
	}
	s.list.SetPlaceholder(text)
	if _, ok := s.servers.Selected(); !ok {
		s.list.Select("")
	}
}

func (s *Selector) schedule(name string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[name]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(s.taskDelay, func() {
		s.mu.Lock()
		if s.tasks[name] != t {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, name)
		s.mu.Unlock()
		fn()
	})
	s.tasks[name] = t
}

func (s *Selector) cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[name]; ok {
		t.Stop()
		delete(s.tasks, name)
	}
}

// applySelected selects the server at collection index. An empty collection
// is filled from the directory first.
func (s *Selector) applySelected(index int) {
	s.mu.Lock()
	empty := s.servers.Len() == 0
	s.mu.Unlock()

	if empty {
		servers, err := s.fetch(context.Background())
		if err != nil {
			s.logger.Warn("fetch servers for selected attribute", zap.Error(err))
			return
		}
		s.mu.Lock()
		if s.servers.Len() == 0 {
			for i, d := range servers {
				s.servers.Add(d, i == index)
			}
			if s.initialized {
				s.syncList()
			}
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	item, ok := s.servers.Select(collection.ByIndex(index))
	if ok && s.initialized {
		s.list.Select(item.UUID)
	}
	sink := s.sink
	s.mu.Unlock()

	if !ok {
		s.logger.Debug("selected attribute out of range", zap.Int("index", index))
		return
	}
	if sink != nil {
		sink.BindServer(item.Description)
	}
}

func (s *Selector) applyCanvas(id string) {
	if id == "" {
		s.BindSink(nil)
		return
	}
	sink, ok := s.resolve(id)
	if !ok {
		s.logger.Warn("canvas not found", zap.String("canvas", id))
		return
	}
	s.BindSink(sink)
}
