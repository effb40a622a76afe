package boardcast

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/syncclipboard-go/share"
	"github.com/moyoez/syncclipboard-go/types"
)

type recordingSender struct {
	sent chan []byte
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(chan []byte, 16)}
}

func (r *recordingSender) send(payload []byte) error {
	r.sent <- append([]byte(nil), payload...)
	return nil
}

func newLoopbackTransport(t *testing.T, self types.Device) (*Transport, *recordingSender, net.Addr) {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	sender := newRecordingSender()
	group := &net.UDPAddr{IP: net.ParseIP(DefaultMulticastAddress), Port: DefaultMulticastPort}
	tr := newTransport(self, "1.0.0", group, conn, sender.send)
	t.Cleanup(func() { tr.Close() })
	return tr, sender, conn.LocalAddr()
}

func sendTo(t *testing.T, addr net.Addr, packet types.DiscoveryPacket) {
	t.Helper()
	payload, err := types.EncodePacket(packet)
	require.NoError(t, err)
	sendRaw(t, addr, payload)
}

func sendRaw(t *testing.T, addr net.Addr, payload []byte) {
	t.Helper()
	c, err := net.Dial("udp4", addr.String())
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Write(payload)
	require.NoError(t, err)
}

func runListener(t *testing.T, tr *Transport) (chan types.Device, context.CancelFunc, chan error) {
	devices := make(chan types.Device, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tr.Listen(ctx, func(d types.Device) { devices <- d })
	}()
	return devices, cancel, done
}

func TestListenSkipsMalformedAndSelf(t *testing.T) {
	self := types.Device{ID: "self", Name: "me", Port: 5033, InstanceID: 1}
	tr, _, addr := newLoopbackTransport(t, self)
	devices, cancel, done := runListener(t, tr)
	defer cancel()

	sendRaw(t, addr, []byte("not json"))
	sendTo(t, addr, types.AnnouncementFor(self, "1.0.0"))
	sendTo(t, addr, types.NewAnnouncementPacket(types.AnnouncementPacket{DeviceID: "peer", Alias: "phone", Port: 5033, InstanceID: 7}))

	select {
	case d := <-devices:
		assert.Equal(t, "peer", d.ID)
		assert.Equal(t, "phone", d.Name)
		assert.Equal(t, "127.0.0.1", d.IP)
		assert.EqualValues(t, 7, d.InstanceID)
	case <-time.After(2 * time.Second):
		t.Fatal("announcement not delivered")
	}
	assert.Empty(t, devices)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListenAnswersSearchWhenListening(t *testing.T) {
	self := types.Device{ID: "self", Name: "me", Port: 5033, InstanceID: 1}
	tr, sender, addr := newLoopbackTransport(t, self)
	_, cancel, _ := runListener(t, tr)
	defer cancel()

	sendTo(t, addr, types.NewSearchPacket("1.0.0"))

	select {
	case payload := <-sender.sent:
		packet, err := types.DecodePacket(payload)
		require.NoError(t, err)
		a, ok := packet.Announcement()
		require.True(t, ok)
		assert.Equal(t, "self", a.DeviceID)
		assert.EqualValues(t, 5033, a.Port)
	case <-time.After(2 * time.Second):
		t.Fatal("search was not answered")
	}
}

func TestScannerNeverAnswersSearch(t *testing.T) {
	self := types.Device{ID: "scanner", Name: "cli", Port: 0}
	tr, sender, addr := newLoopbackTransport(t, self)
	devices, cancel, _ := runListener(t, tr)
	defer cancel()

	sendTo(t, addr, types.NewSearchPacket(""))
	// A following announcement proves the search was already processed.
	sendTo(t, addr, types.NewAnnouncementPacket(types.AnnouncementPacket{DeviceID: "peer", Port: 1}))

	select {
	case <-devices:
	case <-time.After(2 * time.Second):
		t.Fatal("announcement not delivered")
	}
	assert.Empty(t, sender.sent)
}

func TestSearchRepliesAreRateLimited(t *testing.T) {
	self := types.Device{ID: "self", Port: 5033}
	tr, sender, addr := newLoopbackTransport(t, self)
	devices, cancel, _ := runListener(t, tr)
	defer cancel()

	for i := 0; i < 10; i++ {
		sendTo(t, addr, types.NewSearchPacket(""))
	}
	sendTo(t, addr, types.NewAnnouncementPacket(types.AnnouncementPacket{DeviceID: "peer", Port: 1}))
	select {
	case <-devices:
	case <-time.After(2 * time.Second):
		t.Fatal("announcement not delivered")
	}
	assert.LessOrEqual(t, len(sender.sent), 4)
	assert.GreaterOrEqual(t, len(sender.sent), 1)
}

func TestAnnounceAndSearchEncode(t *testing.T) {
	self := types.Device{ID: "self", Name: "me", Port: 5033, InstanceID: 9, Capabilities: types.DefaultCapabilities}
	tr, sender, _ := newLoopbackTransport(t, self)

	require.NoError(t, tr.Announce())
	require.NoError(t, tr.Search())

	announce := <-sender.sent
	assert.JSONEq(t, `{"type":"announcement","device_id":"self","alias":"me","port":5033,"instance_id":9,"version":"1.0.0","capabilities":["clipboard","file"]}`, string(announce))
	search := <-sender.sent
	assert.JSONEq(t, `{"type":"search","version":"1.0.0"}`, string(search))
}

func TestListenSurfacesSocketError(t *testing.T) {
	tr, _, _ := newLoopbackTransport(t, types.Device{ID: "self"})
	_, cancel, done := runListener(t, tr)
	defer cancel()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, tr.conn.Close())
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not fail")
	}
}

func testInterfaces(names ...string) []share.SelfNetworkInfo {
	infos := make([]share.SelfNetworkInfo, 0, len(names))
	for i, name := range names {
		infos = append(infos, share.SelfNetworkInfo{InterfaceName: name, Index: i + 1, IPAddress: "192.168.0." + string(rune('1'+i))})
	}
	return infos
}

func failOn(failing ...string) (interfaceFunc, *[]string) {
	var visited []string
	return func(info share.SelfNetworkInfo) error {
		visited = append(visited, info.InterfaceName)
		for _, name := range failing {
			if name == info.InterfaceName {
				return errors.New("boom on " + name)
			}
		}
		return nil
	}, &visited
}

func TestJoinInterfaces(t *testing.T) {
	cases := []struct {
		name    string
		ifaces  []string
		failing []string
		joined  int
		err     error
	}{
		{"all join", []string{"eth0", "wlan0"}, nil, 2, nil},
		{"one of three fails", []string{"eth0", "wlan0", "eth1"}, []string{"wlan0"}, 2, nil},
		{"only last joins", []string{"eth0", "wlan0"}, []string{"eth0"}, 1, nil},
		{"every join fails", []string{"eth0", "wlan0"}, []string{"eth0", "wlan0"}, 0, ErrNoInterfaces},
		{"no interfaces", nil, nil, 0, ErrNoInterfaces},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			join, visited := failOn(tc.failing...)
			joined, err := joinInterfaces(testInterfaces(tc.ifaces...), join)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.joined, joined)
			assert.Len(t, *visited, len(tc.ifaces), "every interface must be attempted")
		})
	}
}

func TestSendOnInterfacesContinuesPastFailures(t *testing.T) {
	cases := []struct {
		name    string
		ifaces  []string
		failing []string
		wantErr bool
	}{
		{"all succeed", []string{"eth0", "wlan0", "eth1"}, nil, false},
		{"first fails", []string{"eth0", "wlan0", "eth1"}, []string{"eth0"}, false},
		{"middle fails", []string{"eth0", "wlan0", "eth1"}, []string{"wlan0"}, false},
		{"every send fails", []string{"eth0", "wlan0"}, []string{"eth0", "wlan0"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			send, visited := failOn(tc.failing...)
			err := sendOnInterfaces(testInterfaces(tc.ifaces...), send)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.ifaces, *visited)
		})
	}
}

func TestSendOnInterfacesWithoutInterfaces(t *testing.T) {
	send, visited := failOn()
	assert.ErrorIs(t, sendOnInterfaces(nil, send), ErrNoInterfaces)
	assert.Empty(t, *visited)
}
