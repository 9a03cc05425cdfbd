package discovery

import (
	"fmt"
	"net"
)

// BroadcastTarget returns the limited broadcast address for port.
func BroadcastTarget(port int) string {
	return fmt.Sprintf("%s:%d", net.IPv4bcast, port)
}

// LocalIPv4 returns the first non-loopback IPv4 address of an interface that
// is up, or "".
func LocalIPv4() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&(net.FlagUp|net.FlagLoopback) != net.FlagUp {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if ip = ip.To4(); ip != nil {
				return ip.String()
			}
		}
	}
	return ""
}
