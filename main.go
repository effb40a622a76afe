package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/moyoez/syncclipboard-go/share"
	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/types"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

var overrides tool.Overrides

// loadAppConfig reads the config file and applies CLI overrides on top.
func loadAppConfig() (tool.AppConfig, error) {
	appCfg, err := tool.LoadConfig(overrides.UseConfigPath)
	if err != nil {
		return appCfg, err
	}
	overrides.Apply(&appCfg)
	return appCfg, nil
}

// buildSelfDevice describes this process on the network. A scanner passes
// port 0 so it never announces itself.
func buildSelfDevice(appCfg tool.AppConfig, port int) types.Device {
	self := types.Device{
		ID:           appCfg.General.DeviceID,
		Name:         appCfg.General.DeviceName,
		Port:         uint16(port),
		InstanceID:   uint64(time.Now().UnixNano()),
		Capabilities: types.DefaultCapabilities,
	}
	if infos := share.GetSelfNetworkInfos(); len(infos) > 0 {
		self.IP = infos[0].IPAddress
	}
	return self
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "syncclipboard",
		Short:         "Clipboard sync server and client for the local network",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			tool.SetLogLevel(overrides.Log)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&overrides.UseConfigPath, "config", "c", "", "config file path (default: config.yaml next to the executable)")
	flags.StringVar(&overrides.Log, "log", "", "log mode: dev, prod or none")
	flags.StringVar(&overrides.UseMultcastAddress, "multicast-address", "", "discovery multicast group")
	flags.IntVar(&overrides.UseMultcastPort, "multicast-port", 0, "discovery multicast port")
	flags.IntVarP(&overrides.Port, "port", "p", 0, "server listen port")
	flags.StringVar(&overrides.RemoteHost, "remote-host", "", "remote server host for the client")
	flags.IntVar(&overrides.RemotePort, "remote-port", 0, "remote server port for the client")
	flags.StringVar(&overrides.Token, "token", "", "bearer token")
	flags.StringVar(&overrides.DeviceName, "name", "", "device name")

	root.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newSyncCmd(),
		newGetCmd(),
		newSetCmd(),
		newSendFileCmd(),
		newHistoryCmd(),
		newScanCmd(),
		newQRCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
}
