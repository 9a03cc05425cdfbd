package syphon

// Description identifies one discoverable video server.
// A Description is a value: an update produces a new value with the same UUID.
type Description struct {
	UUID    string `json:"uuid"`
	AppName string `json:"app_name"`
	Name    string `json:"name,omitempty"`
}

// FormatName returns the text shown for a server, "<app> - <name>" or just "<app>".
func FormatName(d Description) string {
	if d.Name == "" {
		return d.AppName
	}
	return d.AppName + " - " + d.Name
}

// Channel is the kind of a directory notification.
type Channel string

const (
	ChannelInfo     Channel = "info"
	ChannelError    Channel = "error"
	ChannelAnnounce Channel = "announce"
	ChannelRetire   Channel = "retire"
	ChannelUpdate   Channel = "update"
)

// Channels lists every notification kind in forwarding order.
var Channels = []Channel{ChannelInfo, ChannelError, ChannelAnnounce, ChannelRetire, ChannelUpdate}

// Structural reports whether the channel carries a server (announce, retire, update).
func (c Channel) Structural() bool {
	switch c {
	case ChannelAnnounce, ChannelRetire, ChannelUpdate:
		return true
	}
	return false
}

// Clone returns a copy of servers that the caller may keep.
func Clone(servers []Description) []Description {
	out := make([]Description, len(servers))
	copy(out, servers)
	return out
}
