package boardcast

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/types"
)

// ProbeResult is the reachability of one discovered device.
type ProbeResult struct {
	Device     types.Device  `json:"device"`
	Reachable  bool          `json:"reachable"`
	PacketLoss float64       `json:"packet_loss"`
	AvgRtt     time.Duration `json:"avg_rtt"`
}

// Probe pings each device a few times. privileged selects raw ICMP sockets.
func Probe(ctx context.Context, devices []types.Device, count int, privileged bool) []ProbeResult {
	if count <= 0 {
		count = 3
	}
	results := make([]ProbeResult, 0, len(devices))
	for _, d := range devices {
		res := ProbeResult{Device: d}
		stats, err := pingOnce(ctx, d.IP, count, privileged)
		if err != nil {
			tool.DefaultLogger.Debugf("[Discovery] ping %s failed: %v", d.IP, err)
			res.PacketLoss = 100
		} else {
			res.Reachable = stats.PacketsRecv > 0
			res.PacketLoss = stats.PacketLoss
			res.AvgRtt = stats.AvgRtt
		}
		results = append(results, res)
	}
	return results
}

func pingOnce(ctx context.Context, ip string, count int, privileged bool) (*probing.Statistics, error) {
	if ip == "" {
		return nil, fmt.Errorf("device has no address")
	}
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return nil, fmt.Errorf("failed to create pinger: %w", err)
	}
	pinger.Count = count
	pinger.Timeout = time.Duration(count) * time.Second
	pinger.SetPrivileged(privileged)
	if err := pinger.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to run pinger: %w", err)
	}
	return pinger.Statistics(), nil
}
