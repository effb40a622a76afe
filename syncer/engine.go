// Package syncer keeps the local clipboard and a remote clipboard server
// in step.
package syncer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/moyoez/syncclipboard-go/clipboard"
	"github.com/moyoez/syncclipboard-go/envelope"
	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/transfer"
	"github.com/moyoez/syncclipboard-go/types"
)

const (
	DefaultPollWait     = 30 * time.Second
	DefaultErrorBackoff = 5 * time.Second
	DefaultIdleDelay    = 100 * time.Millisecond

	uploadTimeout = 30 * time.Second
)

// Remote is the server API the engine uses. *transfer.Client implements it.
type Remote interface {
	PutEntry(ctx context.Context, entry types.ClipboardEntry) error
	GetEntry(ctx context.Context, wait time.Duration, lastID int64) (types.ClipboardEntry, int64, error)
	PutFile(ctx context.Context, name string, r io.Reader, size int64) error
	HasFile(ctx context.Context, name string) (bool, error)
}

type Options struct {
	DeviceName string
	// Password enables the E2EE envelope on text and HTML when non-empty.
	Password     string
	PollWait     time.Duration
	ErrorBackoff time.Duration
	IdleDelay    time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollWait <= 0 {
		o.PollWait = DefaultPollWait
	}
	if o.ErrorBackoff <= 0 {
		o.ErrorBackoff = DefaultErrorBackoff
	}
	if o.IdleDelay <= 0 {
		o.IdleDelay = DefaultIdleDelay
	}
	return o
}

// Engine runs the client sync loop. Baselines hold the last text, HTML and
// image hash that were either uploaded or applied locally, so nothing is
// echoed back in either direction.
type Engine struct {
	cb     clipboard.Backend
	remote Remote
	opts   Options

	// mu serializes clipboard access with baseline updates.
	mu            sync.Mutex
	lastText      string
	lastHTML      string
	lastImageHash string
	lastID        int64
}

func NewEngine(cb clipboard.Backend, remote Remote, opts Options) *Engine {
	return &Engine{
		cb:     cb,
		remote: remote,
		opts:   opts.withDefaults(),
		lastID: -1,
	}
}

// Cursor returns the last server id seen.
func (e *Engine) Cursor() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastID
}

// Run performs the initial sync, then pushes local changes and pulls
// remote ones until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.InitialSync(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			if err := e.PushLocal(ctx); err != nil {
				tool.DefaultLogger.Errorf("[Sync] upload failed: %v", err)
			}
			if !sleep(ctx, e.opts.IdleDelay) {
				return nil
			}
		}
	})
	g.Go(func() error {
		for {
			delay := e.opts.IdleDelay
			if err := e.PullRemote(ctx, e.opts.PollWait); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				tool.DefaultLogger.Warnf("[Sync] failed to fetch from server: %v", err)
				delay = e.opts.ErrorBackoff
			}
			if !sleep(ctx, delay) {
				return nil
			}
		}
	})
	return g.Wait()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// InitialSync seeds the baselines and cursor from the server without
// touching the local clipboard, so a restart does not re-upload.
func (e *Engine) InitialSync(ctx context.Context) {
	tool.DefaultLogger.Info("[Sync] performing initial sync check...")
	entry, id, err := e.remote.GetEntry(ctx, 0, -1)
	if errors.Is(err, transfer.ErrNotFound) {
		tool.DefaultLogger.Info("[Sync] initial sync: server empty")
		return
	}
	if err != nil {
		tool.DefaultLogger.Warnf("[Sync] initial sync failed (offline?): %v", err)
		return
	}
	entry = e.openEntry(entry, id)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastID = id
	switch v := entry.(type) {
	case types.TextEntry:
		e.lastText, e.lastHTML = v.Content, v.HTML
		tool.DefaultLogger.Infof("[Sync] initial sync: loaded text from server (id=%d)", id)
	case types.ImageEntry:
		if v.Hash != "" {
			e.lastImageHash = v.Hash
			tool.DefaultLogger.Infof("[Sync] initial sync: loaded image hash from server (id=%d)", id)
		}
	}
}

// PushLocal uploads the local text/HTML and image when they differ from
// the baselines. Baselines move only after a successful upload.
func (e *Engine) PushLocal(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	textErr := e.pushText(ctx)
	imageErr := e.pushImage(ctx)
	return errors.Join(textErr, imageErr)
}

func (e *Engine) pushText(ctx context.Context) error {
	text, _ := e.cb.Text()
	html, _ := e.cb.HTML()

	textChanged := text != "" && text != e.lastText
	htmlChanged := html != "" && html != e.lastHTML
	if !textChanged && !htmlChanged {
		return nil
	}
	tool.DefaultLogger.Infof("[Sync] local clipboard changed (text: %t, html: %t), uploading...", textChanged, htmlChanged)

	entry, err := e.sealText(text, html)
	if err != nil {
		return err
	}
	if err := e.remote.PutEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to upload text: %w", err)
	}
	e.lastText, e.lastHTML = text, html
	return nil
}

func (e *Engine) sealText(text, html string) (types.TextEntry, error) {
	entry := types.TextEntry{Content: text, HTML: html, Device: e.opts.DeviceName}
	if e.opts.Password == "" {
		return entry, nil
	}
	var err error
	if entry.Content, err = envelope.SealField(text, e.opts.Password); err != nil {
		return entry, fmt.Errorf("encryption failed: %w", err)
	}
	if html != "" {
		if entry.HTML, err = envelope.SealField(html, e.opts.Password); err != nil {
			return entry, fmt.Errorf("html encryption failed: %w", err)
		}
	}
	return entry, nil
}

func (e *Engine) pushImage(ctx context.Context) error {
	png, err := e.cb.Image()
	if err != nil || len(png) == 0 {
		return nil
	}
	sum := sha256.Sum256(png)
	hash := hex.EncodeToString(sum[:])
	if hash == e.lastImageHash {
		return nil
	}
	filename := hash + ".png"
	if err := e.uploadBlob(ctx, filename, bytes.NewReader(png), int64(len(png))); err != nil {
		return fmt.Errorf("failed to upload image: %w", err)
	}
	entry := types.ImageEntry{Hash: hash, Filename: filename, Device: e.opts.DeviceName}
	if err := e.remote.PutEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to upload image metadata: %w", err)
	}
	tool.DefaultLogger.Infof("[Sync] uploaded image %s", filename)
	e.lastImageHash = hash
	return nil
}

// uploadBlob skips the transfer when the server already has name.
func (e *Engine) uploadBlob(ctx context.Context, name string, r io.Reader, size int64) error {
	if ok, err := e.remote.HasFile(ctx, name); err == nil && ok {
		tool.DefaultLogger.Debugf("[Sync] server already has %s", name)
		return nil
	}
	return e.remote.PutFile(ctx, name, r, size)
}

// PullRemote long-polls the server once and applies a newer entry.
// The cursor always advances to the id the server reports.
func (e *Engine) PullRemote(ctx context.Context, wait time.Duration) error {
	entry, id, err := e.remote.GetEntry(ctx, wait, e.Cursor())
	if errors.Is(err, transfer.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	entry = e.openEntry(entry, id)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastID = id

	switch v := entry.(type) {
	case types.TextEntry:
		if v.Content == e.lastText && v.HTML == e.lastHTML {
			return nil
		}
		tool.DefaultLogger.Infof("[Sync] server update (id=%d) from %q, updating local...", id, v.Device)
		var err error
		if v.HTML != "" {
			err = e.cb.SetHTML(v.HTML, v.Content)
		} else {
			err = e.cb.SetText(v.Content)
		}
		if err != nil {
			tool.DefaultLogger.Errorf("[Sync] failed to set clipboard: %v", err)
			return nil
		}
		e.lastText, e.lastHTML = v.Content, v.HTML
	case types.ImageEntry:
		// Pixels are not pulled; the hash keeps a later local copy from bouncing back.
		if v.Hash != "" {
			e.lastImageHash = v.Hash
		}
	case types.FileEntry:
		tool.DefaultLogger.Debugf("[Sync] file %s available on server (id=%d)", v.Filename, id)
	}
	return nil
}

// openEntry removes the envelope from text fields. On failure the sealed
// value is kept as-is and a warning is logged.
func (e *Engine) openEntry(entry types.ClipboardEntry, id int64) types.ClipboardEntry {
	text, ok := entry.(types.TextEntry)
	if !ok {
		return entry
	}
	text.Content = e.openField(text.Content, "content", id)
	text.HTML = e.openField(text.HTML, "html", id)
	return text
}

func (e *Engine) openField(value, field string, id int64) string {
	if !envelope.IsSealed(value) {
		return value
	}
	if e.opts.Password == "" {
		tool.DefaultLogger.Warnf("[Sync] entry %d %s is encrypted but no password is configured", id, field)
		return value
	}
	plain, err := envelope.OpenField(value, e.opts.Password)
	if err != nil {
		tool.DefaultLogger.Warnf("[Sync] failed to decrypt entry %d %s: %v", id, field, err)
		return value
	}
	return plain
}

// UploadFile streams the file at path to the server as <sha256>.<ext> and
// publishes a File entry for it.
func (e *Engine) UploadFile(ctx context.Context, path string) (types.FileEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.FileEntry{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return types.FileEntry{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return types.FileEntry{}, fmt.Errorf("failed to rewind %s: %w", path, err)
	}

	hash := hex.EncodeToString(h.Sum(nil))
	name := hash
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		name = hash + "." + ext
	}
	if err := e.uploadBlob(ctx, name, f, size); err != nil {
		return types.FileEntry{}, fmt.Errorf("failed to upload %s: %w", path, err)
	}
	entry := types.FileEntry{Hash: hash, Filename: name, Device: e.opts.DeviceName}
	if err := e.remote.PutEntry(ctx, entry); err != nil {
		return types.FileEntry{}, fmt.Errorf("failed to publish file entry: %w", err)
	}
	tool.DefaultLogger.Infof("[Sync] uploaded file %s as %s (%d bytes)", filepath.Base(path), name, size)
	return entry, nil
}
