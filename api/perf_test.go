package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/moyoez/syncclipboard-go/notify"
	"github.com/moyoez/syncclipboard-go/store"
	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/types"
)

const defaultBenchUploadSize = 1 << 20 // 1 MiB

func benchUploadSize() int {
	if value := os.Getenv("BENCH_UPLOAD_SIZE"); value != "" {
		size, err := strconv.Atoi(value)
		if err == nil && size > 0 {
			return size
		}
	}
	return defaultBenchUploadSize
}

func setupBenchmarkServer(b *testing.B) http.Handler {
	b.Helper()
	tool.DefaultLogger.SetLevel(log.ErrorLevel)
	tool.DefaultLogger.SetReportCaller(false)
	dir := b.TempDir()
	st, err := store.Open(filepath.Join(dir, "history.db"), store.DefaultMaxCount)
	if err != nil {
		b.Fatalf("failed to open store: %v", err)
	}
	b.Cleanup(func() { st.Close() })
	server := NewServer(Options{UploadDir: filepath.Join(dir, "uploads")}, st, notify.NewBroker(), nil, nil)
	return server.Handler()
}

func putClipboard(b *testing.B, handler http.Handler, body []byte) {
	req := httptest.NewRequest(http.MethodPut, tool.ClipboardPath, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		b.Fatalf("put clipboard failed: status=%d body=%s", recorder.Code, recorder.Body.String())
	}
}

func BenchmarkPutClipboard(b *testing.B) {
	handler := setupBenchmarkServer(b)
	body, err := types.EncodeEntry(types.TextEntry{Content: "benchmark clipboard text", Device: "bench"})
	if err != nil {
		b.Fatalf("failed to encode entry: %v", err)
	}

	b.SetBytes(int64(len(body)))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		putClipboard(b, handler, body)
	}
}

func BenchmarkGetClipboard(b *testing.B) {
	handler := setupBenchmarkServer(b)
	body, err := types.EncodeEntry(types.TextEntry{Content: "benchmark clipboard text", Device: "bench"})
	if err != nil {
		b.Fatalf("failed to encode entry: %v", err)
	}
	putClipboard(b, handler, body)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, tool.ClipboardPath, nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusOK {
			b.Fatalf("get clipboard failed: status=%d body=%s", recorder.Code, recorder.Body.String())
		}
	}
}

func BenchmarkUploadFile(b *testing.B) {
	handler := setupBenchmarkServer(b)

	payload := bytes.Repeat([]byte("a"), benchUploadSize())
	hash := sha256.Sum256(payload)
	prefix := hex.EncodeToString(hash[:8])

	b.SetBytes(int64(len(payload)))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/file/%s-%d.bin", prefix, i), bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/octet-stream")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusOK {
			b.Fatalf("upload failed: status=%d body=%s", recorder.Code, recorder.Body.String())
		}
	}
}
