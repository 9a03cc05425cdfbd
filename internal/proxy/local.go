package proxy

import (
	"context"

	"syphon-bridge/internal/directory"
	"syphon-bridge/internal/listeners"
	"syphon-bridge/pkg/signal"
	"syphon-bridge/pkg/syphon"
)

// Local serves a consumer living in the producer process straight from the
// registry, without a websocket in between.
type Local struct {
	reg *directory.Registry
}

func NewLocal(reg *directory.Registry) *Local {
	return &Local{reg: reg}
}

func (l *Local) IsListening(context.Context) (bool, error) {
	return l.reg.IsListening(), nil
}

func (l *Local) GetServers(context.Context) ([]syphon.Description, error) {
	return l.reg.Servers(), nil
}

func (l *Local) On(ch syphon.Channel, fn func(signal.Notification)) listeners.ID {
	return l.reg.Watch(ch, fn)
}

func (l *Local) Off(ch syphon.Channel, ids ...listeners.ID) {
	if len(ids) == 0 {
		return
	}
	l.reg.Off(ch, ids...)
}
