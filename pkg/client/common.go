package client

import (
	"context"
	"errors"
	"fmt"

	"syphon-bridge/pkg/syphon"
)

// DefaultURL is the directory channel address used when none is given.
const DefaultURL = "ws://127.0.0.1:8080/ws"

var (
	// ErrClosed is returned by calls made on, or interrupted by, a closed channel.
	ErrClosed = errors.New("directory channel closed")
	// ErrRemote wraps an error answered by the producer.
	ErrRemote = errors.New("producer returned an error")
)

// BoundaryCallError is the value returned when a request across the process
// boundary fails for any reason.
type BoundaryCallError struct {
	Op  string
	Err error
}

func (e *BoundaryCallError) Error() string {
	return fmt.Sprintf("directory %s: %v", e.Op, e.Err)
}

func (e *BoundaryCallError) Unwrap() error { return e.Err }

// FetchServers dials url, fetches the current server list and disconnects.
func FetchServers(ctx context.Context, url string, opts ...Option) ([]syphon.Description, error) {
	if url == "" {
		url = DefaultURL
	}
	c, err := Dial(ctx, url, opts...)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.GetServers(ctx)
}
