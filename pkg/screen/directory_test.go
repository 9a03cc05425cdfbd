package screen

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"syphon-bridge/pkg/syphon"
)

type fakeDisplays struct {
	mu     sync.Mutex
	bounds []image.Rectangle
	panics bool
}

func (f *fakeDisplays) set(bounds ...image.Rectangle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bounds = bounds
}

func (f *fakeDisplays) enumerate() []image.Rectangle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("display server gone")
	}
	return append([]image.Rectangle(nil), f.bounds...)
}

var (
	hd  = image.Rect(0, 0, 1920, 1080)
	uhd = image.Rect(1920, 0, 1920+3840, 2160)
)

func TestPollReportsChanges(t *testing.T) {
	displays := &fakeDisplays{}
	displays.set(hd)
	d := New(WithEnumerator(displays.enumerate), WithInterval(time.Hour))

	var got []string
	for _, ch := range syphon.Channels {
		d.On(ch, func(ev syphon.Event) { got = append(got, string(ch)+":"+ev.Server.UUID) })
	}
	require.NoError(t, d.Listen())
	defer d.Dispose()
	require.Equal(t, []string{"info:", "announce:screen-0"}, got)

	got = nil
	displays.set(hd, uhd)
	d.Poll()
	require.Equal(t, []string{"announce:screen-1"}, got)
	require.Equal(t, "Display 1 (3840x2160)", d.Servers()[1].Name)

	got = nil
	displays.set(uhd)
	d.Poll()
	require.Equal(t, []string{"update:screen-0", "retire:screen-1"}, got)
	require.Len(t, d.Servers(), 1)
}

func TestEnumeratePanicBecomesError(t *testing.T) {
	displays := &fakeDisplays{}
	displays.set(hd)
	d := New(WithEnumerator(displays.enumerate), WithInterval(time.Hour))

	var errs []string
	d.On(syphon.ChannelError, func(ev syphon.Event) { errs = append(errs, ev.Message) })
	require.NoError(t, d.Listen())
	defer d.Dispose()

	displays.mu.Lock()
	displays.panics = true
	displays.mu.Unlock()
	d.Poll()

	require.Len(t, errs, 1)
	require.Len(t, d.Servers(), 1, "a failed poll keeps the last inventory")
}

func TestDisplayIndex(t *testing.T) {
	i, ok := DisplayIndex(Describe(3, hd))
	require.True(t, ok)
	require.Equal(t, 3, i)

	_, ok = DisplayIndex(syphon.Description{UUID: "screen-1", AppName: "Other"})
	require.False(t, ok)
	_, ok = DisplayIndex(syphon.Description{UUID: "screen-x", AppName: AppName})
	require.False(t, ok)
}

func TestDisposeIsRepeatable(t *testing.T) {
	d := New(WithEnumerator(func() []image.Rectangle { return nil }), WithInterval(10*time.Millisecond))
	require.NoError(t, d.Listen())
	require.True(t, d.IsRunning())
	require.NoError(t, d.Dispose())
	require.NoError(t, d.Dispose())
	require.False(t, d.IsRunning())
}
