package proxy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"syphon-bridge/internal/directory"
	"syphon-bridge/pkg/signal"
	"syphon-bridge/pkg/syphon"
)

var serverA = syphon.Description{UUID: "a", AppName: "Resolume", Name: "Main"}

func newLocal(t *testing.T, servers ...syphon.Description) (*syphon.MemoryDirectory, *Directory) {
	t.Helper()
	native := syphon.NewMemoryDirectory(servers...)
	reg := directory.New(native)
	require.NoError(t, reg.Listen())
	t.Cleanup(func() { _ = reg.Dispose() })
	return native, NewDirectory(NewLocal(reg))
}

func TestSubscribeHasNoReplay(t *testing.T) {
	native, dir := newLocal(t, serverA)

	var got []string
	_, err := dir.Announce.Subscribe(func(n signal.Notification) { got = append(got, n.Server.UUID) })
	require.NoError(t, err)
	require.Empty(t, got)

	b := syphon.Description{UUID: "b", AppName: "VDMX"}
	native.Announce(b)
	require.Equal(t, []string{"b"}, got)
}

func TestUnsubscribeRemovesOnlyThatSubscription(t *testing.T) {
	native, dir := newLocal(t)

	var first, second int
	sub1, err := dir.Info.Subscribe(func(signal.Notification) { first++ })
	require.NoError(t, err)
	_, err = dir.Info.Subscribe(func(signal.Notification) { second++ })
	require.NoError(t, err)
	require.Equal(t, 2, dir.Info.Len())

	dir.Info.Unsubscribe(sub1)
	dir.Info.Unsubscribe(sub1)
	dir.Info.Unsubscribe(Subscription{})
	dir.Retire.Unsubscribe(sub1)

	native.Info("hello")
	require.Zero(t, first)
	require.Equal(t, 1, second)
	require.Equal(t, 1, dir.Info.Len())
}

func TestMissingAPI(t *testing.T) {
	dir := NewDirectory(nil)
	require.False(t, dir.Installed())

	_, err := dir.Announce.Subscribe(func(signal.Notification) {})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.True(t, errors.Is(err, ErrAPINotInstalled))

	_, err = dir.GetServers(context.Background())
	require.ErrorIs(t, err, ErrAPINotInstalled)
	_, err = dir.IsListening(context.Background())
	require.ErrorIs(t, err, ErrAPINotInstalled)

	dir.Announce.Unsubscribe(Subscription{Channel: syphon.ChannelAnnounce})
}

func TestPassThroughQueries(t *testing.T) {
	_, dir := newLocal(t, serverA)

	listening, err := dir.IsListening(context.Background())
	require.NoError(t, err)
	require.True(t, listening)

	servers, err := dir.GetServers(context.Background())
	require.NoError(t, err)
	require.Equal(t, []syphon.Description{serverA}, servers)

	for _, ch := range syphon.Channels {
		require.Equal(t, ch, dir.Proxy(ch).Channel())
	}
	require.Nil(t, dir.Proxy("bogus"))
}
