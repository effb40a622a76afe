package models

import (
	"sort"
	"time"

	ttlworker "github.com/FloatTech/ttl"
)

// DefaultClientWindow is how long a client stays listed after its last request.
const DefaultClientWindow = 5 * time.Minute

// ConnectedClient is one HTTP client seen recently.
type ConnectedClient struct {
	IP         string    `json:"ip"`
	DeviceName string    `json:"device_name"`
	UserAgent  string    `json:"user_agent"`
	LastSeen   time.Time `json:"last_seen"`
}

// ClientTracker remembers clients for a sliding window.
type ClientTracker struct {
	window time.Duration
	cache  *ttlworker.Cache[string, ConnectedClient]
}

func NewClientTracker(window time.Duration) *ClientTracker {
	if window <= 0 {
		window = DefaultClientWindow
	}
	return &ClientTracker{
		window: window,
		cache:  ttlworker.NewCache[string, ConnectedClient](window),
	}
}

// Touch records a request from ip. Clients are keyed by ip and device name.
func (t *ClientTracker) Touch(ip, deviceName, userAgent string) {
	if ip == "" {
		return
	}
	t.cache.Set(ip+"|"+deviceName, ConnectedClient{
		IP:         ip,
		DeviceName: deviceName,
		UserAgent:  userAgent,
		LastSeen:   time.Now(),
	})
}

// List returns clients seen within the window, most recent first.
func (t *ClientTracker) List() []ConnectedClient {
	cutoff := time.Now().Add(-t.window)
	clients := make([]ConnectedClient, 0)
	_ = t.cache.Range(func(_ string, v ConnectedClient) error {
		if v.LastSeen.After(cutoff) {
			clients = append(clients, v)
		}
		return nil
	})
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].LastSeen.After(clients[j].LastSeen)
	})
	return clients
}
