package tool

import (
	"net"
	"strings"
)

var unsupportedInterfacePrefixes = []string{"tun", "tap", "utun", "wg", "docker", "veth", "br-", "zt", "tailscale"}

// RejectUnsupportNetworkInterface reports whether iface should be skipped
// for multicast: down, loopback, no multicast flag or a tunnel/bridge device.
func RejectUnsupportNetworkInterface(iface *net.Interface) bool {
	if iface == nil {
		return true
	}
	if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagMulticast == 0 {
		return true
	}
	name := strings.ToLower(iface.Name)
	for _, prefix := range unsupportedInterfacePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
