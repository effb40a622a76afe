package types

import "slices"

// DefaultCapabilities are advertised by a full (listening) instance.
var DefaultCapabilities = []string{"clipboard", "file"}

// Device describes a peer instance seen on the network.
// ID is stable per installation, InstanceID changes on every process start.
type Device struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	IP           string   `json:"ip"`
	Port         uint16   `json:"port"`
	InstanceID   uint64   `json:"instance_id"`
	Capabilities []string `json:"capabilities"`
}

// Listening reports whether the device serves the clipboard API.
// A pure scanner runs with port 0.
func (d Device) Listening() bool {
	return d.Port > 0
}

// Clone returns a deep copy so callers never share the capabilities slice.
func (d Device) Clone() Device {
	d.Capabilities = slices.Clone(d.Capabilities)
	return d
}

// DiscoveryMethod records how a device entry was learned.
type DiscoveryMethod int

const (
	MethodMulticast DiscoveryMethod = iota // UDP multicast announcement
	MethodMDNS                             // mDNS browse
)

func (m DiscoveryMethod) String() string {
	switch m {
	case MethodMulticast:
		return "multicast"
	case MethodMDNS:
		return "mdns"
	default:
		return "unknown"
	}
}
