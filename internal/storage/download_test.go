package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"genvoy/internal/domain"
)

// failingThenOKTransport fails the first n round trips at the transport level,
// then forwards to the real transport.
type failingThenOKTransport struct {
	failures int32
	next     http.RoundTripper
}

func (t *failingThenOKTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if atomic.AddInt32(&t.failures, -1) >= 0 {
		return nil, errors.New("connection reset by peer")
	}
	return t.next.RoundTrip(req)
}

func shortBackoff(t *testing.T) {
	t.Helper()
	saved := downloadBackoff
	downloadBackoff = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	t.Cleanup(func() { downloadBackoff = saved })
}

func TestDownloadWritesAssetAndFixesExtension(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("pngbytes"))
	}))
	defer srv.Close()

	ws := newTestWorkspace(t)
	d := NewDownloader(ws, DownloaderOptions{Logger: zerolog.Nop()})

	dest := filepath.Join(ws.Root(), "hero")
	result, err := d.Download(context.Background(), srv.URL+"/asset", dest, map[string]string{"Authorization": "Key test"})
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if gotAuth != "Key test" {
		t.Fatalf("Authorization header = %q, want forwarded key", gotAuth)
	}
	if filepath.Base(result.Path) != "hero.png" {
		t.Fatalf("path = %q, want content-type extension applied", result.Path)
	}
	if result.Media != domain.MediaImage {
		t.Fatalf("media = %q, want image", result.Media)
	}
	if result.SizeBytes != int64(len("pngbytes")) {
		t.Fatalf("size = %d", result.SizeBytes)
	}
	data, err := os.ReadFile(result.Path)
	if err != nil || string(data) != "pngbytes" {
		t.Fatalf("content = %q, %v", data, err)
	}
}

func TestDownloadExpiredLinkNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	shortBackoff(t)
	ws := newTestWorkspace(t)
	d := NewDownloader(ws, DownloaderOptions{Logger: zerolog.Nop()})

	_, err := d.Download(context.Background(), srv.URL, filepath.Join(ws.Root(), "out.png"), nil)
	if !domain.IsCode(err, domain.CodeCDNExpired) {
		t.Fatalf("code = %q, want %q", domain.CodeOf(err), domain.CodeCDNExpired)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, expired links must not be retried", got)
	}
}

func TestDownloadServerErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	shortBackoff(t)
	ws := newTestWorkspace(t)
	d := NewDownloader(ws, DownloaderOptions{Logger: zerolog.Nop()})

	_, err := d.Download(context.Background(), srv.URL, filepath.Join(ws.Root(), "out.png"), nil)
	if !domain.IsCode(err, domain.CodeDownloadFailed) {
		t.Fatalf("code = %q, want %q", domain.CodeOf(err), domain.CodeDownloadFailed)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, HTTP errors must not be retried", got)
	}
}

func TestDownloadRetriesTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	shortBackoff(t)
	ws := newTestWorkspace(t)
	d := NewDownloader(ws, DownloaderOptions{
		HTTPClient: &http.Client{Transport: &failingThenOKTransport{failures: 2, next: http.DefaultTransport}},
		Logger:     zerolog.Nop(),
	})

	result, err := d.Download(context.Background(), srv.URL, filepath.Join(ws.Root(), "out.bin"), nil)
	if err != nil {
		t.Fatalf("download after retries: %v", err)
	}
	if result.SizeBytes != 2 {
		t.Fatalf("size = %d", result.SizeBytes)
	}
}

func TestDownloadRetriesExhausted(t *testing.T) {
	shortBackoff(t)
	ws := newTestWorkspace(t)
	d := NewDownloader(ws, DownloaderOptions{
		HTTPClient: &http.Client{Transport: &failingThenOKTransport{failures: 100, next: http.DefaultTransport}},
		Logger:     zerolog.Nop(),
	})

	_, err := d.Download(context.Background(), "http://127.0.0.1:0/never", filepath.Join(ws.Root(), "out.bin"), nil)
	if !domain.IsCode(err, domain.CodeDownloadFailed) {
		t.Fatalf("code = %q, want %q after exhausting retries", domain.CodeOf(err), domain.CodeDownloadFailed)
	}
}

func TestDownloadExtensionCollisionDisambiguated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	ws := newTestWorkspace(t)
	if err := os.WriteFile(filepath.Join(ws.Root(), "hero.png"), []byte("old"), 0o644); err != nil {
		t.Fatalf("seed existing: %v", err)
	}
	d := NewDownloader(ws, DownloaderOptions{Logger: zerolog.Nop()})

	result, err := d.Download(context.Background(), srv.URL, filepath.Join(ws.Root(), "hero"), nil)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if filepath.Base(result.Path) != "hero_1.png" {
		t.Fatalf("path = %q, want hero_1.png", result.Path)
	}
}
