package transfer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/syncclipboard-go/types"
)

func TestClientSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "laptop", r.Header.Get(HeaderDeviceName))
		assert.Equal(t, "/SyncClipboard.json", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"Type":"Text","Clipboard":"hello"}`, string(body))
	}))
	defer srv.Close()

	c := NewClientForURL(srv.URL, "secret", "laptop")
	require.NoError(t, c.PutEntry(context.Background(), types.TextEntry{Content: "hello"}))
}

func TestGetEntryParsesIDAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("wait"))
		assert.Equal(t, "7", r.URL.Query().Get("last_id"))
		w.Header().Set(HeaderClipboardID, "8")
		io.WriteString(w, `{"Type":"Text","Clipboard":"world"}`)
	}))
	defer srv.Close()

	c := NewClientForURL(srv.URL, "", "")
	entry, id, err := c.GetEntry(context.Background(), 3*time.Second, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 8, id)
	assert.Equal(t, types.TextEntry{Content: "world"}, entry)
}

func TestGetEntryRejectsBadClipboardID(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not a number", "abc"},
		{"negative", "-3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.header != "" {
					w.Header().Set(HeaderClipboardID, tc.header)
				}
				io.WriteString(w, `{"Type":"Text","Clipboard":"world"}`)
			}))
			defer srv.Close()

			c := NewClientForURL(srv.URL, "", "")
			entry, id, err := c.GetEntry(context.Background(), 0, -1)
			assert.ErrorIs(t, err, ErrBadClipboardID)
			assert.Nil(t, entry)
			assert.Zero(t, id)
		})
	}
}

func TestStatusMapping(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusUnauthorized)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()
	c := NewClientForURL(srv.URL, "", "")

	_, _, err := c.GetEntry(context.Background(), 0, -1)
	assert.ErrorIs(t, err, ErrUnauthorized)

	status.Store(http.StatusNotFound)
	_, _, err = c.GetEntry(context.Background(), 0, -1)
	assert.ErrorIs(t, err, ErrNotFound)
	ok, err := c.HasFile(context.Background(), "x.png")
	require.NoError(t, err)
	assert.False(t, ok)

	status.Store(http.StatusInternalServerError)
	err = c.PutFile(context.Background(), "x.png", strings.NewReader("data"), 4)
	assert.Error(t, err)
}

func TestFileRoundTrip(t *testing.T) {
	var mu sync.Mutex
	var stored []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/file/abc.png", r.URL.Path)
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			stored, _ = io.ReadAll(r.Body)
		case http.MethodGet:
			w.Write(stored)
		case http.MethodHead:
		}
	}))
	defer srv.Close()
	c := NewClientForURL(srv.URL, "", "")

	require.NoError(t, c.PutFile(context.Background(), "abc.png", strings.NewReader("pixels"), -1))
	ok, err := c.HasFile(context.Background(), "abc.png")
	require.NoError(t, err)
	assert.True(t, ok)

	var sb strings.Builder
	n, err := c.GetFile(context.Background(), "abc.png", &sb)
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)
	assert.Equal(t, "pixels", sb.String())
}
