package boardcast

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"

	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/types"
)

const (
	MDNSService = "_syncclipboard._tcp"
	MDNSDomain  = "local."
)

// MDNSAdvertiser keeps the zeroconf registration alive until Shutdown.
type MDNSAdvertiser struct {
	server *zeroconf.Server
}

// AdvertiseMDNS registers self as an instance of MDNSService.
func AdvertiseMDNS(self types.Device, version string) (*MDNSAdvertiser, error) {
	if !self.Listening() {
		return nil, fmt.Errorf("cannot advertise a device without port")
	}
	server, err := zeroconf.Register(self.Name, MDNSService, MDNSDomain, int(self.Port), mdnsText(self, version), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	tool.DefaultLogger.Infof("[Discovery] mDNS service %s registered as %q on port %d", MDNSService, self.Name, self.Port)
	return &MDNSAdvertiser{server: server}, nil
}

func (a *MDNSAdvertiser) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

func mdnsText(self types.Device, version string) []string {
	return []string{
		"device_id=" + self.ID,
		"instance_id=" + strconv.FormatUint(self.InstanceID, 10),
		"version=" + version,
		"capabilities=" + strings.Join(self.Capabilities, ","),
	}
}

// deviceFromTXT rebuilds a Device from a TXT record set. ok is false when
// the record carries no device id.
func deviceFromTXT(name, ip string, port int, txt []string) (types.Device, bool) {
	d := types.Device{Name: name, IP: ip, Port: uint16(port)}
	for _, kv := range txt {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			continue
		}
		switch key {
		case "device_id":
			d.ID = value
		case "instance_id":
			d.InstanceID, _ = strconv.ParseUint(value, 10, 64)
		case "capabilities":
			if value != "" {
				d.Capabilities = strings.Split(value, ",")
			}
		}
	}
	return d, d.ID != ""
}

// MDNSBrowser implements Browser with zeroconf.
type MDNSBrowser struct{}

func (MDNSBrowser) Browse(ctx context.Context, onDevice func(types.Device)) error {
	resolver, err := zeroconf.NewResolver(zeroconf.SelectIPTraffic(zeroconf.IPv4))
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	entries := make(chan *zeroconf.ServiceEntry, 16)
	if err := resolver.Browse(ctx, MDNSService, MDNSDomain, entries); err != nil {
		return fmt.Errorf("failed to browse mDNS: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-entries:
			if !ok {
				return nil
			}
			if entry == nil || len(entry.AddrIPv4) == 0 {
				continue
			}
			d, ok := deviceFromTXT(entry.Instance, entry.AddrIPv4[0].String(), entry.Port, entry.Text)
			if !ok {
				tool.DefaultLogger.Debugf("[Discovery] mDNS entry %q without device_id", entry.Instance)
				continue
			}
			onDevice(d)
		}
	}
}
