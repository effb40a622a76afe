// Package transfer is the HTTP client side of the clipboard protocol.
package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/types"
)

const (
	HeaderClipboardID = "X-Clipboard-Id"
	HeaderDeviceName  = "X-Device-Name"

	// pollGrace is added to the long-poll wait for the request deadline.
	pollGrace = 15 * time.Second
)

var (
	ErrUnauthorized   = errors.New("unauthorized: bearer token missing or rejected")
	ErrNotFound       = errors.New("not found on remote")
	// ErrBadClipboardID means the response carried no usable X-Clipboard-Id.
	ErrBadClipboardID = errors.New("missing or invalid " + HeaderClipboardID + " header")
)

// RemoteConfig describes the server a Client talks to.
type RemoteConfig struct {
	Scheme     string
	Host       string
	Port       int
	Token      string
	DeviceName string
}

// Client talks to one remote clipboard server.
type Client struct {
	base       string
	token      string
	deviceName string
	http       *http.Client
}

func NewClient(cfg RemoteConfig) *Client {
	return &Client{
		base:       tool.BuildBaseURL(cfg.Scheme, cfg.Host, cfg.Port),
		token:      cfg.Token,
		deviceName: cfg.DeviceName,
		http:       tool.NewStreamingHTTPClient(cfg.Scheme),
	}
}

// NewClientForURL is NewClient with an explicit base URL such as an httptest server.
func NewClientForURL(base, token, deviceName string) *Client {
	return &Client{
		base:       base,
		token:      token,
		deviceName: deviceName,
		http:       tool.NewStreamingHTTPClient("http"),
	}
}

func (c *Client) BaseURL() string {
	return c.base
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.deviceName != "" {
		req.Header.Set(HeaderDeviceName, c.deviceName)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s %s: %w", req.Method, req.URL.Path, err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return resp, nil
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s %s failed: %s %s", req.Method, req.URL.Path, resp.Status, bytes.TrimSpace(body))
	}
}

// PutEntry uploads a clipboard entry.
func (c *Client) PutEntry(ctx context.Context, entry types.ClipboardEntry) error {
	payload, err := types.EncodeEntry(entry)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPut, c.base+tool.ClipboardPath, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// GetEntry fetches the latest entry. With wait > 0 the server holds the
// request until an entry newer than lastID exists or wait elapses.
// It returns ErrNotFound when the server has no entry yet.
func (c *Client) GetEntry(ctx context.Context, wait time.Duration, lastID int64) (types.ClipboardEntry, int64, error) {
	url, err := tool.BuildClipboardURL(c.base, wait, lastID)
	if err != nil {
		return nil, 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, wait+pollGrace)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read clipboard response: %w", err)
	}
	entry, err := types.DecodeEntry(body)
	if err != nil {
		return nil, 0, err
	}
	raw := resp.Header.Get(HeaderClipboardID)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return nil, 0, fmt.Errorf("%w: %q", ErrBadClipboardID, raw)
	}
	return entry, id, nil
}

// PutFile streams r to /file/<name>. size < 0 means unknown.
func (c *Client) PutFile(ctx context.Context, name string, r io.Reader, size int64) error {
	url, err := tool.BuildFileURL(c.base, name)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPut, url, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if size >= 0 {
		req.ContentLength = size
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// HasFile issues HEAD /file/<name>.
func (c *Client) HasFile(ctx context.Context, name string) (bool, error) {
	url, err := tool.BuildFileURL(c.base, name)
	if err != nil {
		return false, err
	}
	req, err := c.newRequest(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.do(req)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return true, nil
}

// GetFile streams /file/<name> into w.
func (c *Client) GetFile(ctx context.Context, name string, w io.Writer) (int64, error) {
	url, err := tool.BuildFileURL(c.base, name)
	if err != nil {
		return 0, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to download %s: %w", name, err)
	}
	return n, nil
}

// History lists stored records, pinned first.
func (c *Client) History(ctx context.Context, limit, offset int) ([]types.HistoryRecord, error) {
	url, err := tool.BuildHistoryURL(c.base, limit, offset)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read history response: %w", err)
	}
	var records []types.HistoryRecord
	if err := sonic.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to parse history response: %w", err)
	}
	return records, nil
}
