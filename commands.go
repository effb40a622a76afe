package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/moyoez/syncclipboard-go/boardcast"
	"github.com/moyoez/syncclipboard-go/clipboard"
	"github.com/moyoez/syncclipboard-go/envelope"
	"github.com/moyoez/syncclipboard-go/share"
	"github.com/moyoez/syncclipboard-go/syncer"
	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/transfer"
	"github.com/moyoez/syncclipboard-go/types"
)

const commandTimeout = 30 * time.Second

func newGetCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the current remote clipboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			remote := newRemote(appCfg)
			entry, id, err := remote.GetEntry(ctx, 0, -1)
			if errors.Is(err, transfer.ErrNotFound) {
				return errors.New("remote clipboard is empty")
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch e := entry.(type) {
			case types.TextEntry:
				text, err := envelope.OpenField(e.Content, appCfg.Auth.EncryptPassword)
				if err != nil {
					return fmt.Errorf("failed to decrypt entry %d: %w", id, err)
				}
				fmt.Fprintln(out, text)
			case types.ImageEntry:
				return printBlobEntry(ctx, cmd, remote, "image", e.Filename, output)
			case types.FileEntry:
				return printBlobEntry(ctx, cmd, remote, "file", e.Filename, output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "download image or file entries into this directory")
	return cmd
}

func printBlobEntry(ctx context.Context, cmd *cobra.Command, remote *transfer.Client, kind, name, dir string) error {
	if dir == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", kind, name)
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := remote.GetFile(ctx, name, f)
	if err != nil {
		os.Remove(path)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d bytes)\n", path, n)
	return nil
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [text]",
		Short: "Replace the remote clipboard with text (read from stdin when omitted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			if len(args) == 0 {
				if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
					return errors.New("no text given: pass it as an argument or pipe it on stdin")
				}
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = strings.TrimSuffix(string(data), "\n")
			}
			if text == "" {
				return errors.New("nothing to set")
			}
			if appCfg.Auth.EncryptPassword != "" {
				text, err = envelope.SealField(text, appCfg.Auth.EncryptPassword)
				if err != nil {
					return err
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			return newRemote(appCfg).PutEntry(ctx, types.TextEntry{Content: text, Device: appCfg.General.DeviceName})
		},
	}
}

func newSendFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-file <path>",
		Short: "Upload a file and publish it as the remote clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			engine := syncer.NewEngine(clipboard.NewMemory(), newRemote(appCfg), syncer.Options{
				DeviceName: appCfg.General.DeviceName,
				Password:   appCfg.Auth.EncryptPassword,
			})
			entry, err := engine.UploadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", entry.Filename)
			return nil
		},
	}
}

func preview(rec types.HistoryRecord, password string) string {
	switch rec.Type {
	case types.KindText:
		text, err := envelope.OpenField(rec.Content, password)
		if err != nil {
			return "<encrypted>"
		}
		text = strings.ReplaceAll(text, "\n", " ")
		if r := []rune(text); len(r) > 60 {
			text = string(r[:60]) + "..."
		}
		return text
	default:
		return rec.File
	}
}

func newHistoryCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the remote clipboard history",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			records, err := newRemote(appCfg).History(ctx, limit, offset)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tPINNED\tDEVICE\tTIME\tCONTENT")
			for _, rec := range records {
				fmt.Fprintf(w, "%d\t%s\t%t\t%s\t%s\t%s\n", rec.ID, rec.Type, rec.Pinned, rec.Device,
					rec.Timestamp.Local().Format("2006-01-02 15:04:05"), preview(rec, appCfg.Auth.EncryptPassword))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "number of records")
	cmd.Flags().IntVar(&offset, "offset", 0, "records to skip")
	return cmd
}

func newScanCmd() *cobra.Command {
	var (
		window     time.Duration
		ping       bool
		privileged bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Search the local network for clipboard servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			self := buildSelfDevice(appCfg, 0)
			transport, err := boardcast.NewTransport(ctx, self, boardcast.TransportConfig{
				Address: appCfg.Discovery.MulticastAddress,
				Port:    appCfg.Discovery.MulticastPort,
				Version: version,
			})
			if err != nil {
				return err
			}
			var browser boardcast.Browser
			if appCfg.Discovery.MDNS {
				browser = boardcast.MDNSBrowser{}
			}
			svc := boardcast.NewService(self, transport, share.NewDeviceRegistry(), browser, boardcast.ServiceConfig{})
			defer svc.Close()
			go func() {
				if err := svc.Start(ctx); err != nil && ctx.Err() == nil {
					tool.DefaultLogger.Warnf("[Discovery] scan listener stopped: %v", err)
				}
			}()

			devices, err := svc.Scan(ctx, window)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "no devices found")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			if !ping {
				fmt.Fprintln(w, "NAME\tID\tADDRESS\tCAPABILITIES")
				for _, d := range devices {
					fmt.Fprintf(w, "%s\t%s\t%s:%d\t%s\n", d.Name, d.ID, d.IP, d.Port, strings.Join(d.Capabilities, ","))
				}
				return w.Flush()
			}
			fmt.Fprintln(w, "NAME\tADDRESS\tREACHABLE\tLOSS\tRTT")
			for _, res := range boardcast.Probe(ctx, devices, 3, privileged) {
				fmt.Fprintf(w, "%s\t%s:%d\t%t\t%.0f%%\t%s\n", res.Device.Name, res.Device.IP, res.Device.Port,
					res.Reachable, res.PacketLoss, res.AvgRtt.Round(time.Microsecond))
			}
			return w.Flush()
		},
	}
	cmd.Flags().DurationVar(&window, "window", boardcast.DefaultScanWindow, "how long to collect answers")
	cmd.Flags().BoolVar(&ping, "ping", false, "ping every device found")
	cmd.Flags().BoolVar(&privileged, "privileged", false, "use raw ICMP sockets for --ping")
	return cmd
}

func newQRCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Write a QR code with this server's URL for pairing a phone",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			scheme := "http"
			if appCfg.Server.TLS.SelfSigned || appCfg.Server.TLS.Cert != "" {
				scheme = "https"
			}
			self := buildSelfDevice(appCfg, appCfg.Server.Port)
			host := self.IP
			if host == "" {
				host = "127.0.0.1"
			}
			url := tool.BuildBaseURL(scheme, host, appCfg.Server.Port)
			if err := qrcode.WriteFile(url, qrcode.Medium, 256, output); err != nil {
				return fmt.Errorf("failed to write qrcode: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nQR code written to %s\n", url, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "syncclipboard-qr.png", "PNG output path")
	return cmd
}
