package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/moyoez/syncclipboard-go/api"
	"github.com/moyoez/syncclipboard-go/boardcast"
	"github.com/moyoez/syncclipboard-go/clipboard"
	"github.com/moyoez/syncclipboard-go/notify"
	"github.com/moyoez/syncclipboard-go/share"
	"github.com/moyoez/syncclipboard-go/store"
	"github.com/moyoez/syncclipboard-go/syncer"
	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/transfer"
	"github.com/moyoez/syncclipboard-go/types"
)

const shutdownTimeout = 5 * time.Second

// roles selects which parts of the app a command runs.
type roles struct {
	server bool
	client bool
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the parts enabled in the config (server, client, discovery)",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			return runApp(appCfg, roles{server: appCfg.Server.Enabled, client: appCfg.Client.Enabled})
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run only the clipboard server and discovery",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			return runApp(appCfg, roles{server: true})
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run only the clipboard sync client against the remote server",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			return runApp(appCfg, roles{client: true})
		},
	}
}

func runApp(appCfg tool.AppConfig, r roles) error {
	if !r.server && !r.client {
		return errors.New("neither server nor client is enabled")
	}
	tool.InitLogger("")
	tool.SetLogLevel(overrides.Log)

	ctx, stop := signalContext()
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	port := 0
	if r.server {
		port = appCfg.Server.Port
	}
	self := buildSelfDevice(appCfg, port)
	registry := share.NewDeviceRegistry()

	if appCfg.Discovery.Enabled {
		startDiscovery(ctx, g, appCfg, self, registry)
	}
	if r.server {
		if err := startServer(ctx, g, appCfg, self, registry); err != nil {
			return err
		}
	}
	if r.client {
		startClient(ctx, g, appCfg)
	}

	err := g.Wait()
	tool.DefaultLogger.Info("shut down")
	return err
}

// startDiscovery is best effort: without a usable interface the rest of the
// app still runs.
func startDiscovery(ctx context.Context, g *errgroup.Group, appCfg tool.AppConfig, self types.Device, registry *share.DeviceRegistry) {
	transport, err := boardcast.NewTransport(ctx, self, boardcast.TransportConfig{
		Address: appCfg.Discovery.MulticastAddress,
		Port:    appCfg.Discovery.MulticastPort,
		Version: version,
	})
	if err != nil {
		tool.DefaultLogger.Warnf("[Discovery] disabled: %v", err)
		return
	}
	var browser boardcast.Browser
	if appCfg.Discovery.MDNS {
		browser = boardcast.MDNSBrowser{}
	}
	svc := boardcast.NewService(self, transport, registry, browser, boardcast.ServiceConfig{})
	g.Go(func() error {
		defer svc.Close()
		if err := svc.Start(ctx); err != nil && ctx.Err() == nil {
			tool.DefaultLogger.Warnf("[Discovery] stopped: %v", err)
		}
		return nil
	})
}

func startServer(ctx context.Context, g *errgroup.Group, appCfg tool.AppConfig, self types.Device, registry *share.DeviceRegistry) error {
	st, err := store.Open(appCfg.History.DBPath, appCfg.History.MaxCount)
	if err != nil {
		return err
	}
	tlsCfg, err := tool.LoadTLSConfig(appCfg.Server.TLS.Cert, appCfg.Server.TLS.Key, appCfg.Server.TLS.SelfSigned, appCfg.General.DeviceName)
	if err != nil {
		st.Close()
		return err
	}

	srv := api.NewServer(api.Options{
		Host:      appCfg.Server.Host,
		Port:      appCfg.Server.Port,
		Token:     appCfg.Auth.Token,
		UploadDir: appCfg.Server.UploadDir,
		WebDAV:    appCfg.Server.WebDAVEnabled,
		TLS:       tlsCfg,
		Self:      self,
		Version:   version,
	}, st, notify.NewBroker(), registry, &notify.Webhook{
		URL:     appCfg.Notify.URL,
		Method:  appCfg.Notify.Method,
		Headers: appCfg.Notify.Headers,
		Timeout: appCfg.Notify.Timeout,
	})

	var adv *boardcast.MDNSAdvertiser
	if appCfg.Discovery.Enabled && appCfg.Discovery.MDNS {
		adv, err = boardcast.AdvertiseMDNS(self, version)
		if err != nil {
			tool.DefaultLogger.Warnf("[Discovery] mDNS advertise failed: %v", err)
		}
	}

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		if adv != nil {
			adv.Shutdown()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if closeErr := st.Close(); closeErr != nil {
			tool.DefaultLogger.Errorf("[Store] close failed: %v", closeErr)
		}
		return err
	})
	return nil
}

func newRemote(appCfg tool.AppConfig) *transfer.Client {
	return transfer.NewClient(transfer.RemoteConfig{
		Scheme:     appCfg.Client.Scheme,
		Host:       appCfg.Client.RemoteHost,
		Port:       appCfg.Client.RemotePort,
		Token:      appCfg.Auth.Token,
		DeviceName: appCfg.General.DeviceName,
	})
}

// systemClipboard falls back to an in-memory clipboard on headless hosts.
func systemClipboard() clipboard.Backend {
	cb, err := clipboard.NewSystem()
	if err != nil {
		tool.DefaultLogger.Warnf("[Sync] system clipboard unavailable, using memory clipboard: %v", err)
		return clipboard.NewMemory()
	}
	return cb
}

func startClient(ctx context.Context, g *errgroup.Group, appCfg tool.AppConfig) {
	remote := newRemote(appCfg)
	engine := syncer.NewEngine(systemClipboard(), remote, syncer.Options{
		DeviceName: appCfg.General.DeviceName,
		Password:   appCfg.Auth.EncryptPassword,
	})
	tool.DefaultLogger.Infof("[Sync] syncing with %s", remote.BaseURL())
	g.Go(func() error {
		return engine.Run(ctx)
	})
}
