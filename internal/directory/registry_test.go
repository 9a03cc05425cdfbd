package directory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"syphon-bridge/pkg/signal"
	"syphon-bridge/pkg/syphon"
)

type recordingPusher struct {
	pushed []signal.Notification
}

func (p *recordingPusher) Push(n signal.Notification) { p.pushed = append(p.pushed, n) }

var (
	serverA = syphon.Description{UUID: "a", AppName: "Resolume", Name: "Main"}
	serverB = syphon.Description{UUID: "b", AppName: "VDMX"}
)

func TestListenIsIdempotent(t *testing.T) {
	native := syphon.NewMemoryDirectory()
	pusher := &recordingPusher{}
	r := New(native, WithPusher(pusher))

	require.NoError(t, r.Listen())
	require.NoError(t, r.Listen())
	require.True(t, r.IsListening())
	require.True(t, r.IsRunning())

	for _, ch := range syphon.Channels {
		require.Equal(t, 1, native.HandlerCount(ch), string(ch))
	}

	var local int
	r.On(syphon.ChannelAnnounce, func(signal.Notification) { local++ })
	native.Announce(serverA)
	require.Equal(t, 1, local)
	require.Len(t, pusher.pushed, 1)
}

func TestLocalListenersRunBeforePush(t *testing.T) {
	native := syphon.NewMemoryDirectory()
	var order []string
	pusher := pushFunc(func(signal.Notification) { order = append(order, "push") })
	r := New(native, WithPusher(pusher))
	require.NoError(t, r.Listen())

	r.On(syphon.ChannelRetire, func(signal.Notification) { order = append(order, "local") })
	native.Announce(serverA)
	native.Retire(serverA)
	require.Equal(t, []string{"push", "local", "push"}, order)
}

type pushFunc func(signal.Notification)

func (f pushFunc) Push(n signal.Notification) { f(n) }

func TestLateAnnounceListenerGetsReplay(t *testing.T) {
	native := syphon.NewMemoryDirectory(serverA, serverB)
	r := New(native)
	require.NoError(t, r.Listen())

	var got []string
	r.On(syphon.ChannelAnnounce, func(n signal.Notification) {
		require.NotNil(t, n.Server)
		require.Len(t, n.Servers, 2)
		got = append(got, n.Server.UUID)
	})
	require.Equal(t, []string{"a", "b"}, got)
}

func TestNoReplayBeforeListen(t *testing.T) {
	r := New(syphon.NewMemoryDirectory(serverA))
	calls := 0
	r.On(syphon.ChannelAnnounce, func(signal.Notification) { calls++ })
	require.Zero(t, calls)
}

func TestReplayOnlyTargetsNewListener(t *testing.T) {
	native := syphon.NewMemoryDirectory(serverA)
	r := New(native)
	require.NoError(t, r.Listen())

	first := 0
	r.On(syphon.ChannelAnnounce, func(signal.Notification) { first++ })
	r.On(syphon.ChannelAnnounce, func(signal.Notification) {})
	require.Equal(t, 1, first)
}

func TestForwardedPayloads(t *testing.T) {
	native := syphon.NewMemoryDirectory()
	pusher := &recordingPusher{}
	r := New(native, WithPusher(pusher))
	require.NoError(t, r.Listen())

	native.Announce(serverA)
	native.Info("scan complete")
	native.Fail("native crashed")

	require.Len(t, pusher.pushed, 3)
	require.Equal(t, syphon.ChannelAnnounce, pusher.pushed[0].Channel)
	require.Equal(t, serverA, *pusher.pushed[0].Server)
	require.Equal(t, []syphon.Description{serverA}, pusher.pushed[0].Servers)
	require.Equal(t, "scan complete", pusher.pushed[1].Info)
	require.Equal(t, "native crashed", pusher.pushed[2].Error)
	require.Equal(t, []syphon.Description{serverA}, pusher.pushed[2].Servers)
}

func TestOffRemovesOneOrAll(t *testing.T) {
	native := syphon.NewMemoryDirectory()
	r := New(native)
	require.NoError(t, r.Listen())

	var a, b int
	idA := r.On(syphon.ChannelUpdate, func(signal.Notification) { a++ })
	r.On(syphon.ChannelUpdate, func(signal.Notification) { b++ })

	r.Off(syphon.ChannelUpdate, idA)
	native.Update(serverA)
	require.Equal(t, 0, a)
	require.Equal(t, 1, b)

	r.Off(syphon.ChannelUpdate)
	native.Update(serverA)
	require.Equal(t, 1, b)
}

func TestDisposeIsRepeatable(t *testing.T) {
	native := syphon.NewMemoryDirectory()
	r := New(native)
	require.NoError(t, r.Listen())

	calls := 0
	r.On(syphon.ChannelAnnounce, func(signal.Notification) { calls++ })
	require.NoError(t, r.Dispose())
	require.NoError(t, r.Dispose())
	require.Equal(t, 2, native.Disposals())

	native.Announce(serverA)
	require.Zero(t, calls)
	require.False(t, r.IsListening())
}

// flakyDirectory fails its first Listen, like a discovery port still in use.
type flakyDirectory struct {
	*syphon.MemoryDirectory
	failures int
}

func (d *flakyDirectory) Listen() error {
	if d.failures > 0 {
		d.failures--
		return errors.New("address already in use")
	}
	return d.MemoryDirectory.Listen()
}

func TestListenRetryDoesNotSubscribeTwice(t *testing.T) {
	native := &flakyDirectory{MemoryDirectory: syphon.NewMemoryDirectory(), failures: 1}
	pusher := &recordingPusher{}
	r := New(native, WithPusher(pusher))

	require.Error(t, r.Listen())
	require.False(t, r.IsListening())
	require.NoError(t, r.Listen())
	require.True(t, r.IsListening())

	for _, ch := range syphon.Channels {
		require.Equal(t, 1, native.HandlerCount(ch), string(ch))
	}

	var local int
	r.On(syphon.ChannelAnnounce, func(signal.Notification) { local++ })
	native.Announce(serverA)
	require.Equal(t, 1, local)
	require.Len(t, pusher.pushed, 1)
}

func TestListenAfterDisposeResubscribes(t *testing.T) {
	native := syphon.NewMemoryDirectory()
	r := New(native)
	require.NoError(t, r.Listen())
	require.NoError(t, r.Dispose())
	require.False(t, r.IsListening())

	require.NoError(t, r.Listen())
	require.True(t, r.IsListening())
	for _, ch := range syphon.Channels {
		require.Equal(t, 1, native.HandlerCount(ch), string(ch))
	}
}

// eagerDirectory announces its servers from inside Listen, as the screen
// directory does.
type eagerDirectory struct {
	*syphon.MemoryDirectory
	initial syphon.Description
}

func (d *eagerDirectory) Listen() error {
	if err := d.MemoryDirectory.Listen(); err != nil {
		return err
	}
	d.Announce(d.initial)
	return nil
}

func TestListenerMayRegisterDuringNativeListen(t *testing.T) {
	native := &eagerDirectory{MemoryDirectory: syphon.NewMemoryDirectory(), initial: serverA}
	r := New(native)

	var late []string
	registered := false
	r.Watch(syphon.ChannelAnnounce, func(signal.Notification) {
		if registered {
			return
		}
		registered = true
		r.On(syphon.ChannelAnnounce, func(n signal.Notification) { late = append(late, n.Server.UUID) })
	})

	done := make(chan error, 1)
	go func() { done <- r.Listen() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return")
	}
	require.True(t, r.IsListening())

	native.Announce(serverB)
	require.Equal(t, []string{"b"}, late)
}
