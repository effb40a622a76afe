package tool

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

const (
	ClipboardPath  = "/SyncClipboard.json"
	FilePathPrefix = "/file/"
	HistoryPath    = "/history"
)

// BuildBaseURL joins scheme, host and port. scheme defaults to http.
func BuildBaseURL(scheme, host string, port int) string {
	if scheme == "" {
		scheme = "http"
	}
	if port == 0 {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}

// BuildClipboardURL builds the /SyncClipboard.json URL with wait and last_id query parameters.
func BuildClipboardURL(base string, wait time.Duration, lastID int64) (string, error) {
	u, err := url.Parse(base + ClipboardPath)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}
	q := u.Query()
	if wait > 0 {
		q.Set("wait", strconv.Itoa(int(wait/time.Second)))
	}
	q.Set("last_id", strconv.FormatInt(lastID, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// BuildFileURL builds the /file/<name> URL.
func BuildFileURL(base, name string) (string, error) {
	u, err := url.Parse(base + FilePathPrefix)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}
	return u.JoinPath(name).String(), nil
}

// BuildHistoryURL builds the /history URL with limit and offset query parameters.
func BuildHistoryURL(base string, limit, offset int) (string, error) {
	u, err := url.Parse(base + HistoryPath)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
