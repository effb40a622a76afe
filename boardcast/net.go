package boardcast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/time/rate"

	"github.com/moyoez/syncclipboard-go/share"
	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/types"
)

const (
	DefaultMulticastAddress = "224.0.0.168"
	DefaultMulticastPort    = 5354
	multicastTTL            = 32
	readBufferSize          = 2048
)

// ErrNoInterfaces is returned when the group could not be joined on any interface.
var ErrNoInterfaces = errors.New("failed to join multicast group on any interface")

// TransportConfig holds the multicast group and the version string put on the wire.
type TransportConfig struct {
	Address string
	Port    int
	Version string
}

func (c TransportConfig) groupAddr() (*net.UDPAddr, error) {
	address := c.Address
	if address == "" {
		address = DefaultMulticastAddress
	}
	port := c.Port
	if port == 0 {
		port = DefaultMulticastPort
	}
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	return addr, nil
}

// sendFunc delivers one encoded packet to the group.
type sendFunc func(payload []byte) error

// Transport sends and receives discovery packets on the multicast group.
type Transport struct {
	self    types.Device
	version string
	group   *net.UDPAddr

	conn    net.PacketConn
	send    sendFunc
	limiter *rate.Limiter

	closeOnce sync.Once
}

// NewTransport binds the group port and joins the group on every usable
// IPv4 interface. It fails only if no interface could join.
func NewTransport(ctx context.Context, self types.Device, cfg TransportConfig) (*Transport, error) {
	group, err := cfg.groupAddr()
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{Control: reuseControl}
	conn, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf("0.0.0.0:%d", group.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on multicast UDP port %d: %w", group.Port, err)
	}

	pc := ipv4.NewPacketConn(conn)
	joined, err := joinInterfaces(share.GetSelfNetworkInfos(), func(info share.SelfNetworkInfo) error {
		iface, err := net.InterfaceByIndex(info.Index)
		if err != nil {
			return fmt.Errorf("interface vanished: %w", err)
		}
		return pc.JoinGroup(iface, &net.UDPAddr{IP: group.IP})
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = pc.SetMulticastLoopback(true)

	tool.DefaultLogger.Infof("[Discovery] listening on multicast UDP address: %s (%d interfaces)", group.String(), joined)
	return newTransport(self, cfg.Version, group, conn, func(payload []byte) error {
		return sendOnAllInterfaces(group, payload)
	}), nil
}

func newTransport(self types.Device, version string, group *net.UDPAddr, conn net.PacketConn, send sendFunc) *Transport {
	return &Transport{
		self:    self.Clone(),
		version: version,
		group:   group,
		conn:    conn,
		send:    send,
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}
}

// Announce advertises self on every interface.
func (t *Transport) Announce() error {
	payload, err := types.EncodePacket(types.AnnouncementFor(t.self, t.version))
	if err != nil {
		return fmt.Errorf("failed to marshal announcement: %w", err)
	}
	return t.send(payload)
}

// Search asks listening peers to announce themselves.
func (t *Transport) Search() error {
	payload, err := types.EncodePacket(types.NewSearchPacket(t.version))
	if err != nil {
		return fmt.Errorf("failed to marshal search: %w", err)
	}
	return t.send(payload)
}

// Listen reads packets until ctx is cancelled or the socket fails.
// Announcements from other devices are passed to onDevice; searches are
// answered with an announcement when self is listening.
func (t *Transport) Listen(ctx context.Context, onDevice func(types.Device)) error {
	stop := context.AfterFunc(ctx, func() { t.Close() })
	defer stop()

	buf := make([]byte, readBufferSize)
	for {
		n, addr, err := t.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("multicast receive failed: %w", err)
		}
		t.handle(buf[:n], addr, onDevice)
	}
}

func (t *Transport) handle(data []byte, addr net.Addr, onDevice func(types.Device)) {
	packet, err := types.DecodePacket(data)
	if err != nil {
		tool.DefaultLogger.Debugf("[Discovery] dropped packet from %v: %v", addr, err)
		return
	}

	if announcement, ok := packet.Announcement(); ok {
		if announcement.DeviceID == t.self.ID {
			return
		}
		ip := ""
		if udpAddr, ok := addr.(*net.UDPAddr); ok {
			ip = udpAddr.IP.String()
		}
		if onDevice != nil {
			onDevice(announcement.ToDevice(ip))
		}
		return
	}

	// Pure scanners stay silent so they never see each other.
	if !t.self.Listening() {
		return
	}
	if !t.limiter.Allow() {
		tool.DefaultLogger.Debugf("[Discovery] search from %v rate limited", addr)
		return
	}
	if err := t.Announce(); err != nil {
		tool.DefaultLogger.Warnf("[Discovery] failed to answer search from %v: %v", addr, err)
	}
}

func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() { err = t.conn.Close() })
	return err
}

// interfaceFunc performs one join or send on a single interface.
type interfaceFunc func(info share.SelfNetworkInfo) error

// joinInterfaces runs join on every interface and reports how many
// succeeded. It returns ErrNoInterfaces only when none did.
func joinInterfaces(infos []share.SelfNetworkInfo, join interfaceFunc) (int, error) {
	joined := 0
	for _, info := range infos {
		if err := join(info); err != nil {
			tool.DefaultLogger.Warnf("[Discovery] failed to join group on %s: %v", info.InterfaceName, err)
			continue
		}
		tool.DefaultLogger.Debugf("[Discovery] joined group on %s (%s)", info.InterfaceName, info.IPAddress)
		joined++
	}
	if joined == 0 {
		return 0, ErrNoInterfaces
	}
	return joined, nil
}

// sendOnInterfaces calls send for every interface. Failure on one interface
// is logged and does not stop the rest; an error is returned only when
// every interface failed.
func sendOnInterfaces(infos []share.SelfNetworkInfo, send interfaceFunc) error {
	if len(infos) == 0 {
		return ErrNoInterfaces
	}
	sent := 0
	var lastErr error
	for _, info := range infos {
		if err := send(info); err != nil {
			tool.DefaultLogger.Warnf("[Discovery] send on %s (%s) failed: %v", info.InterfaceName, info.IPAddress, err)
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 {
		return fmt.Errorf("multicast send failed on every interface: %w", lastErr)
	}
	return nil
}

// sendOnAllInterfaces writes payload through a one-shot socket bound to
// each interface address.
func sendOnAllInterfaces(group *net.UDPAddr, payload []byte) error {
	return sendOnInterfaces(share.GetSelfNetworkInfos(), func(info share.SelfNetworkInfo) error {
		return sendOnInterface(info, group, payload)
	})
}

func sendOnInterface(info share.SelfNetworkInfo, group *net.UDPAddr, payload []byte) error {
	c, err := net.ListenPacket("udp4", net.JoinHostPort(info.IPAddress, "0"))
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", info.IPAddress, err)
	}
	defer c.Close()

	pc := ipv4.NewPacketConn(c)
	if err := pc.SetMulticastTTL(multicastTTL); err != nil {
		return fmt.Errorf("failed to set multicast TTL: %w", err)
	}
	if iface, err := net.InterfaceByIndex(info.Index); err == nil {
		_ = pc.SetMulticastInterface(iface)
	}
	if _, err := pc.WriteTo(payload, nil, group); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}
