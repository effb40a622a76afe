package share

import (
	"net"
	"sort"
	"sync"
	"time"

	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/types"
)

// RegisterResult tells the caller what a Register call changed.
type RegisterResult int

const (
	// Refreshed means the device was already known with the same instance id.
	Refreshed RegisterResult = iota
	// NewDevice means the device id was not in the registry.
	NewDevice
	// Restarted means the device id was known under a different instance id.
	Restarted
)

func (r RegisterResult) String() string {
	switch r {
	case NewDevice:
		return "new"
	case Restarted:
		return "restarted"
	default:
		return "refreshed"
	}
}

type deviceEntry struct {
	device   types.Device
	lastSeen time.Time
	method   types.DiscoveryMethod
}

// DeviceRegistry is the in-memory table of peers keyed by device id.
// The lock is held only while the map is touched, callers get copies.
type DeviceRegistry struct {
	mu      sync.Mutex
	devices map[string]*deviceEntry
	now     func() time.Time
}

func NewDeviceRegistry() *DeviceRegistry {
	return NewDeviceRegistryWithClock(time.Now)
}

// NewDeviceRegistryWithClock is NewDeviceRegistry with an injected clock.
func NewDeviceRegistryWithClock(now func() time.Time) *DeviceRegistry {
	if now == nil {
		now = time.Now
	}
	return &DeviceRegistry{
		devices: make(map[string]*deviceEntry),
		now:     now,
	}
}

// Register inserts or refreshes device and reports whether it is new or restarted.
func (r *DeviceRegistry) Register(device types.Device, method types.DiscoveryMethod) RegisterResult {
	now := r.now()
	device = device.Clone()

	r.mu.Lock()
	entry, ok := r.devices[device.ID]
	result := Refreshed
	switch {
	case !ok:
		result = NewDevice
		r.devices[device.ID] = &deviceEntry{device: device, lastSeen: now, method: method}
	default:
		if entry.device.InstanceID != device.InstanceID {
			result = Restarted
		}
		entry.device = device
		entry.method = method
		if now.After(entry.lastSeen) {
			entry.lastSeen = now
		}
	}
	r.mu.Unlock()

	switch result {
	case NewDevice:
		tool.DefaultLogger.Infof("[Discovery] new device %s (%s) at %s:%d via %s", device.Name, device.ID, device.IP, device.Port, method)
	case Restarted:
		tool.DefaultLogger.Infof("[Discovery] device %s (%s) restarted, instance %d", device.Name, device.ID, device.InstanceID)
	}
	return result
}

// List returns a snapshot of all devices sorted by name then id.
func (r *DeviceRegistry) List() []types.Device {
	r.mu.Lock()
	result := make([]types.Device, 0, len(r.devices))
	for _, entry := range r.devices {
		result = append(result, entry.device.Clone())
	}
	r.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Get returns a copy of a single device.
func (r *DeviceRegistry) Get(id string) (types.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.devices[id]
	if !ok {
		return types.Device{}, false
	}
	return entry.device.Clone(), true
}

// EvictExpired removes every entry with now - lastSeen >= ttl.
func (r *DeviceRegistry) EvictExpired(ttl time.Duration) int {
	now := r.now()
	var removed []string

	r.mu.Lock()
	for id, entry := range r.devices {
		if now.Sub(entry.lastSeen) >= ttl {
			delete(r.devices, id)
			removed = append(removed, id)
		}
	}
	r.mu.Unlock()

	for _, id := range removed {
		tool.DefaultLogger.Debugf("[Discovery] evicted device %s", id)
	}
	return len(removed)
}

func (r *DeviceRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// SelfNetworkInfo represents one local IPv4 address usable for multicast.
type SelfNetworkInfo struct {
	InterfaceName string `json:"interface_name"` // network interface name
	Index         int    `json:"index"`          // interface index
	IPAddress     string `json:"ip_address"`     // ip address
}

// GetSelfNetworkInfos returns every IPv4 address on an interface usable for
// multicast. It ignores tun/vpn interfaces and loopback interfaces.
func GetSelfNetworkInfos() []SelfNetworkInfo {
	var result []SelfNetworkInfo

	interfaces, err := net.Interfaces()
	if err != nil {
		tool.DefaultLogger.Errorf("Failed to get network interfaces: %v", err)
		return result
	}

	for _, iface := range interfaces {
		if tool.RejectUnsupportNetworkInterface(&iface) {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}

			ip := ipnet.IP.To4()
			if ip == nil || ip.IsLoopback() {
				continue
			}

			result = append(result, SelfNetworkInfo{
				InterfaceName: iface.Name,
				Index:         iface.Index,
				IPAddress:     ip.String(),
			})
		}
	}

	return result
}
