package syphon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatName(t *testing.T) {
	require.Equal(t, "Resolume - Main", FormatName(Description{UUID: "a", AppName: "Resolume", Name: "Main"}))
	require.Equal(t, "Resolume", FormatName(Description{UUID: "a", AppName: "Resolume"}))
}

func TestChannelStructural(t *testing.T) {
	for _, ch := range Channels {
		want := ch == ChannelAnnounce || ch == ChannelRetire || ch == ChannelUpdate
		require.Equal(t, want, ch.Structural(), string(ch))
	}
}

func TestMemoryDirectoryMembership(t *testing.T) {
	d := NewMemoryDirectory(Description{UUID: "a", AppName: "A"})
	var got []Channel
	for _, ch := range Channels {
		d.On(ch, func(Event) { got = append(got, ch) })
	}

	d.Announce(Description{UUID: "b", AppName: "B"})
	d.Update(Description{UUID: "a", AppName: "A2"})
	d.Retire(Description{UUID: "b"})
	d.Info("hello")
	d.Fail("boom")

	require.Equal(t, []Description{{UUID: "a", AppName: "A2"}}, d.Servers())
	require.Equal(t, []Channel{ChannelAnnounce, ChannelUpdate, ChannelRetire, ChannelInfo, ChannelError}, got)

	require.NoError(t, d.Dispose())
	require.Zero(t, d.HandlerCount(ChannelAnnounce))
	require.Equal(t, 1, d.Disposals())
}

func TestMemoryDirectoryEmitUsesSnapshot(t *testing.T) {
	d := NewMemoryDirectory()
	calls := 0
	d.On(ChannelAnnounce, func(Event) {
		calls++
		d.On(ChannelAnnounce, func(Event) { calls += 10 })
	})

	d.Announce(Description{UUID: "a", AppName: "A"})
	require.Equal(t, 1, calls)
	require.Equal(t, 2, d.HandlerCount(ChannelAnnounce))
}
