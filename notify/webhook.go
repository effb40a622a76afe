package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"

	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/types"
)

const EventClipboardUpdate = "clipboard_update"

// Notification represents a notification message structure
type Notification struct {
	Type string         `json:"type,omitempty"` // e.g. "clipboard_update"
	Data map[string]any `json:"data,omitempty"`
}

// Options contains options for sending notifications
type Options struct {
	URL     string            // Target URL
	Method  string            // HTTP method, defaults to POST
	Headers map[string]string // Custom HTTP headers
	Timeout time.Duration     // 0 means tool.DefaultTimeout
}

// SendNotification posts notification as JSON to options.URL.
// If notification is nil, an empty JSON object will be sent
func SendNotification(ctx context.Context, notification *Notification, options Options) error {
	if options.URL == "" {
		return fmt.Errorf("notification URL cannot be empty")
	}

	parsedURL, err := url.Parse(options.URL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	protocol := parsedURL.Scheme
	if protocol == "" {
		protocol = "http"
	}

	method := options.Method
	if method == "" {
		method = http.MethodPost
	}

	payload := []byte("{}")
	if notification != nil {
		payload, err = sonic.Marshal(notification)
		if err != nil {
			return fmt.Errorf("failed to serialize notification data: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, options.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range options.Headers {
		req.Header.Set(key, value)
	}

	client := tool.NewHTTPClient(protocol)
	if options.Timeout > 0 {
		client.Timeout = options.Timeout
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		tool.DefaultLogger.Debugf("failed to read response body: %v", readErr)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notification send failed, HTTP status code: %d, response: %s", resp.StatusCode, string(body))
	}

	if notification != nil {
		tool.DefaultLogger.Debugf("notification successfully sent to %s: %s", options.URL, notification.Type)
	}
	return nil
}

// ClipboardNotification builds the webhook payload for a saved record.
func ClipboardNotification(rec types.HistoryRecord) *Notification {
	return &Notification{
		Type: EventClipboardUpdate,
		Data: map[string]any{
			"id":     rec.ID,
			"kind":   string(rec.Type),
			"device": rec.Device,
		},
	}
}

// Webhook forwards saved records to a URL without blocking the caller.
type Webhook struct {
	URL     string
	Method  string
	Headers map[string]string
	Timeout time.Duration
}

func (w *Webhook) options() Options {
	return Options{URL: w.URL, Method: w.Method, Headers: w.Headers, Timeout: w.Timeout}
}

// ClipboardUpdated is a no-op when URL is empty.
func (w *Webhook) ClipboardUpdated(rec types.HistoryRecord) {
	if w == nil || w.URL == "" {
		return
	}
	go func() {
		timeout := w.Timeout
		if timeout <= 0 {
			timeout = tool.DefaultTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := SendNotification(ctx, ClipboardNotification(rec), w.options()); err != nil {
			tool.DefaultLogger.Warnf("[API] webhook for record %d failed: %v", rec.ID, err)
		}
	}()
}
