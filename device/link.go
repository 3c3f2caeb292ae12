package device

import "net"

// Link reports whether the device has a usable network attachment.
type Link interface {
	Connected() bool
}

// HostLink treats any up, non-loopback interface with an address as
// attached.
type HostLink struct{}

func (HostLink) Connected() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// StaticLink is a Link with a fixed answer.
type StaticLink bool

func (l StaticLink) Connected() bool { return bool(l) }
