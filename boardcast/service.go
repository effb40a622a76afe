package boardcast

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/moyoez/syncclipboard-go/share"
	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/types"
)

const (
	DefaultAnnounceInterval = 30 * time.Second
	DefaultCleanupInterval  = 60 * time.Second
	DefaultDeviceTTL        = 3 * DefaultAnnounceInterval
	DefaultScanWindow       = 2 * time.Second
)

// PacketTransport is what the Service needs from the multicast layer.
type PacketTransport interface {
	Announce() error
	Search() error
	Listen(ctx context.Context, onDevice func(types.Device)) error
	Close() error
}

// Browser discovers peers through a secondary mechanism such as mDNS.
type Browser interface {
	Browse(ctx context.Context, onDevice func(types.Device)) error
}

type ServiceConfig struct {
	AnnounceInterval time.Duration
	CleanupInterval  time.Duration
	DeviceTTL        time.Duration
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.AnnounceInterval <= 0 {
		c.AnnounceInterval = DefaultAnnounceInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.DeviceTTL <= 0 {
		c.DeviceTTL = 3 * c.AnnounceInterval
	}
	return c
}

// Service wires a PacketTransport to a DeviceRegistry and runs the
// periodic announce, listen and cleanup tasks.
type Service struct {
	self      types.Device
	transport PacketTransport
	registry  *share.DeviceRegistry
	browser   Browser
	cfg       ServiceConfig
}

// NewService creates a Service. browser may be nil.
func NewService(self types.Device, transport PacketTransport, registry *share.DeviceRegistry, browser Browser, cfg ServiceConfig) *Service {
	return &Service{
		self:      self.Clone(),
		transport: transport,
		registry:  registry,
		browser:   browser,
		cfg:       cfg.withDefaults(),
	}
}

// Start blocks until ctx is cancelled or the listener fails.
// A pure scanner (port 0) does not announce periodically.
func (s *Service) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.self.Listening() {
		g.Go(func() error {
			s.announceLoop(ctx)
			return nil
		})
	}
	g.Go(func() error {
		return s.transport.Listen(ctx, func(d types.Device) {
			s.registry.Register(d, types.MethodMulticast)
		})
	})
	g.Go(func() error {
		s.cleanupLoop(ctx)
		return nil
	})
	if s.browser != nil {
		g.Go(func() error {
			if err := s.browser.Browse(ctx, func(d types.Device) {
				if d.ID != s.self.ID {
					s.registry.Register(d, types.MethodMDNS)
				}
			}); err != nil {
				tool.DefaultLogger.Warnf("[Discovery] mDNS browse stopped: %v", err)
			}
			return nil
		})
	}

	tool.DefaultLogger.Infof("[Discovery] started as %s (%s), port %d", s.self.Name, s.self.ID, s.self.Port)
	return g.Wait()
}

func (s *Service) announceLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.AnnounceInterval)
	defer ticker.Stop()
	for {
		if err := s.transport.Announce(); err != nil {
			tool.DefaultLogger.Warnf("[Discovery] announce failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.registry.EvictExpired(s.cfg.DeviceTTL); n > 0 {
				tool.DefaultLogger.Infof("[Discovery] removed %d expired devices", n)
			}
		}
	}
}

// Scan broadcasts one search and returns the registry after window.
// The listener must already be running via Start.
func (s *Service) Scan(ctx context.Context, window time.Duration) ([]types.Device, error) {
	if window <= 0 {
		window = DefaultScanWindow
	}
	if err := s.transport.Search(); err != nil {
		return nil, err
	}
	timer := time.NewTimer(window)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return s.registry.List(), ctx.Err()
	case <-timer.C:
	}
	return s.registry.List(), nil
}

func (s *Service) Close() error {
	return s.transport.Close()
}
