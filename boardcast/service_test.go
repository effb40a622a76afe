package boardcast

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/syncclipboard-go/share"
	"github.com/moyoez/syncclipboard-go/types"
)

type fakeTransport struct {
	announces atomic.Int32
	searches  atomic.Int32

	mu       sync.Mutex
	onDevice func(types.Device)
	ready    chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{ready: make(chan struct{})}
}

func (f *fakeTransport) Announce() error { f.announces.Add(1); return nil }
func (f *fakeTransport) Search() error   { f.searches.Add(1); return nil }
func (f *fakeTransport) Close() error    { return nil }

func (f *fakeTransport) Listen(ctx context.Context, onDevice func(types.Device)) error {
	f.mu.Lock()
	f.onDevice = onDevice
	f.mu.Unlock()
	close(f.ready)
	<-ctx.Done()
	return nil
}

func (f *fakeTransport) deliver(d types.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDevice(d)
}

type fakeBrowser struct {
	devices []types.Device
}

func (b fakeBrowser) Browse(ctx context.Context, onDevice func(types.Device)) error {
	for _, d := range b.devices {
		onDevice(d)
	}
	<-ctx.Done()
	return nil
}

func TestServiceAnnouncesPeriodically(t *testing.T) {
	tr := newFakeTransport()
	svc := NewService(types.Device{ID: "self", Port: 5033}, tr, share.NewDeviceRegistry(), nil,
		ServiceConfig{AnnounceInterval: 20 * time.Millisecond, CleanupInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	assert.Eventually(t, func() bool { return tr.announces.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestServiceScannerDoesNotAnnounce(t *testing.T) {
	tr := newFakeTransport()
	svc := NewService(types.Device{ID: "scanner"}, tr, share.NewDeviceRegistry(), nil,
		ServiceConfig{AnnounceInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)
	<-tr.ready

	tr.deliver(types.Device{ID: "peer", Name: "desk", Port: 5033})
	devices, err := svc.Scan(ctx, 30*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "peer", devices[0].ID)
	assert.EqualValues(t, 1, tr.searches.Load())
	assert.Zero(t, tr.announces.Load())
}

func TestServiceEvictsExpiredDevices(t *testing.T) {
	tr := newFakeTransport()
	registry := share.NewDeviceRegistry()
	svc := NewService(types.Device{ID: "self", Port: 1}, tr, registry, nil, ServiceConfig{
		AnnounceInterval: time.Hour,
		CleanupInterval:  10 * time.Millisecond,
		DeviceTTL:        30 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)
	<-tr.ready

	tr.deliver(types.Device{ID: "peer"})
	assert.Equal(t, 1, registry.Count())
	assert.Eventually(t, func() bool { return registry.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServiceRegistersBrowsedDevices(t *testing.T) {
	tr := newFakeTransport()
	registry := share.NewDeviceRegistry()
	browser := fakeBrowser{devices: []types.Device{{ID: "self"}, {ID: "mdns-peer", Port: 5033}}}
	svc := NewService(types.Device{ID: "self", Port: 5033}, tr, registry, browser, ServiceConfig{AnnounceInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)

	assert.Eventually(t, func() bool { return registry.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	_, ok := registry.Get("mdns-peer")
	assert.True(t, ok)
}

func TestScanHonoursContext(t *testing.T) {
	svc := NewService(types.Device{ID: "scanner"}, newFakeTransport(), share.NewDeviceRegistry(), nil, ServiceConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Scan(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
