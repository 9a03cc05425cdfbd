package syphon

// Event is a raw notification emitted by a native directory.
// Server is set for announce, retire and update; Message for info and error.
type Event struct {
	Server  Description
	Message string
}

// Directory is the native discovery subsystem. It enumerates servers and
// emits raw notifications; callers must not assume Servers is a live view.
type Directory interface {
	Servers() []Description
	IsRunning() bool
	Listen() error
	Dispose() error
	On(ch Channel, fn func(Event))
}
