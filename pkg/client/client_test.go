package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"syphon-bridge/internal/directory"
	"syphon-bridge/internal/server"
	"syphon-bridge/pkg/signal"
	"syphon-bridge/pkg/syphon"
)

var (
	serverA = syphon.Description{UUID: "a", AppName: "Resolume", Name: "Main"}
	serverB = syphon.Description{UUID: "b", AppName: "VDMX"}
)

type producer struct {
	native *syphon.MemoryDirectory
	reg    *directory.Registry
	srv    *server.Server
	url    string
}

func startProducer(t *testing.T, servers ...syphon.Description) *producer {
	t.Helper()
	native := syphon.NewMemoryDirectory(servers...)
	reg := directory.New(native)
	srv := server.NewServer(reg)
	reg.SetPusher(srv)
	require.NoError(t, reg.Listen())

	ts := httptest.NewServer(server.NewRouter(srv, nil))
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
		_ = reg.Dispose()
	})
	return &producer{
		native: native,
		reg:    reg,
		srv:    srv,
		url:    "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, WithCallTimeout(2*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRequests(t *testing.T) {
	p := startProducer(t, serverA, serverB)
	c := dial(t, p.url)
	ctx := context.Background()

	listening, err := c.IsListening(ctx)
	require.NoError(t, err)
	require.True(t, listening)

	servers, err := c.GetServers(ctx)
	require.NoError(t, err)
	require.Equal(t, []syphon.Description{serverA, serverB}, servers)
}

func TestConcurrentRequestsAreCorrelated(t *testing.T) {
	p := startProducer(t, serverA)
	c := dial(t, p.url)

	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func(i int) {
			if i%2 == 0 {
				ok, err := c.IsListening(context.Background())
				if err == nil && !ok {
					err = errors.New("not listening")
				}
				errs <- err
				return
			}
			servers, err := c.GetServers(context.Background())
			if err == nil && len(servers) != 1 {
				err = errors.New("wrong server count")
			}
			errs <- err
		}(i)
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-errs)
	}
}

func TestNotificationsArePushed(t *testing.T) {
	p := startProducer(t, serverA)
	c := dial(t, p.url)

	got := make(chan signal.Notification, 4)
	c.On(syphon.ChannelAnnounce, func(n signal.Notification) { got <- n })
	c.On(syphon.ChannelRetire, func(n signal.Notification) { got <- n })

	// A completed round trip guarantees the producer has registered us.
	_, err := c.GetServers(context.Background())
	require.NoError(t, err)

	p.native.Announce(serverB)
	p.native.Retire(serverA)

	n := waitNotification(t, got)
	require.Equal(t, syphon.ChannelAnnounce, n.Channel)
	require.Equal(t, serverB, *n.Server)
	require.Equal(t, []syphon.Description{serverA, serverB}, n.Servers)

	n = waitNotification(t, got)
	require.Equal(t, syphon.ChannelRetire, n.Channel)
	require.Equal(t, serverA, *n.Server)
	require.Equal(t, []syphon.Description{serverB}, n.Servers)
}

func TestOffStopsDelivery(t *testing.T) {
	p := startProducer(t)
	c := dial(t, p.url)

	got := make(chan signal.Notification, 4)
	id := c.On(syphon.ChannelInfo, func(n signal.Notification) { got <- n })
	c.On(syphon.ChannelError, func(n signal.Notification) { got <- n })
	_, err := c.GetServers(context.Background())
	require.NoError(t, err)

	c.Off(syphon.ChannelInfo, id)
	p.native.Info("ignored")
	p.native.Fail("boom")

	n := waitNotification(t, got)
	require.Equal(t, syphon.ChannelError, n.Channel)
	require.Equal(t, "boom", n.Error)
}

func TestRemoteErrorIsReturnedAsValue(t *testing.T) {
	p := startProducer(t)
	c := dial(t, p.url)

	var out any
	err := c.call(context.Background(), signal.MessageType("bogus"), &out)
	var callErr *BoundaryCallError
	require.ErrorAs(t, err, &callErr)
	require.Equal(t, "bogus", callErr.Op)
	require.ErrorIs(t, err, ErrRemote)
}

func TestCallsAfterCloseFail(t *testing.T) {
	p := startProducer(t, serverA)
	c := dial(t, p.url)
	require.NoError(t, c.Close())

	servers, err := c.GetServers(context.Background())
	require.Nil(t, servers)
	var callErr *BoundaryCallError
	require.ErrorAs(t, err, &callErr)
	require.ErrorIs(t, err, ErrClosed)

	_, err = c.IsListening(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestDialFailureIsBoundaryError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Dial(ctx, "ws://127.0.0.1:1/ws")
	var callErr *BoundaryCallError
	require.ErrorAs(t, err, &callErr)
	require.Equal(t, "dial", callErr.Op)
}

func TestFetchServers(t *testing.T) {
	p := startProducer(t, serverB)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	servers, err := FetchServers(ctx, p.url)
	require.NoError(t, err)
	require.Equal(t, []syphon.Description{serverB}, servers)
}

func waitNotification(t *testing.T, ch <-chan signal.Notification) signal.Notification {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for notification")
		return signal.Notification{}
	}
}
