package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"genvoy/internal/domain"
	"genvoy/internal/media"
)

// Transport-level failures are retried on this fixed backoff schedule.
// Classified HTTP responses (expired links, non-2xx statuses) are not.
var downloadBackoff = []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}

// Downloader streams remote assets to disk through a Workspace. Bodies are
// never buffered whole in memory.
type Downloader struct {
	ws         *Workspace
	httpClient *http.Client
	logger     zerolog.Logger
}

// DownloaderOptions configures a Downloader.
type DownloaderOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// NewDownloader constructs a Downloader with sane defaults.
func NewDownloader(ws *Workspace, opts DownloaderOptions) *Downloader {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Downloader{ws: ws, httpClient: httpClient, logger: opts.Logger}
}

// Download fetches rawURL into dest. When dest lacks an extension the
// response content type decides one before the first byte is written, and
// the traversal check is re-applied after the rename. HTTP 403/404 mean the
// CDN link expired and are not retried.
func (d *Downloader) Download(ctx context.Context, rawURL, dest string, headers map[string]string) (*domain.DownloadResult, error) {
	attempt := 0
	for {
		result, err := d.downloadOnce(ctx, rawURL, dest, headers)
		if err == nil {
			return result, nil
		}
		if !domain.IsCode(err, domain.CodeNetworkError) {
			return nil, err
		}
		if attempt >= len(downloadBackoff) {
			return nil, domain.WrapError(domain.CodeDownloadFailed,
				fmt.Sprintf("CDN download failed: %v", err), err)
		}
		d.logger.Warn().Err(err).Int("attempt", attempt+1).Str("url", rawURL).
			Msg("download transport failure, retrying")
		select {
		case <-time.After(downloadBackoff[attempt]):
		case <-ctx.Done():
			return nil, domain.WrapError(domain.CodeDownloadFailed,
				fmt.Sprintf("CDN download aborted: %v", ctx.Err()), ctx.Err())
		}
		attempt++
	}
}

func (d *Downloader) downloadOnce(ctx context.Context, rawURL, dest string, headers map[string]string) (*domain.DownloadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, domain.Errf(domain.CodeDownloadFailed, "invalid download URL: %v", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.CodeNetworkError,
			fmt.Sprintf("download request failed: %v", err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewToolError(domain.CodeCDNExpired, "CDN URL expired or inaccessible")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.Errf(domain.CodeDownloadFailed,
			"CDN download failed: unexpected status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, ext := media.Detect(rawURL, contentType)
	path := dest
	if filepath.Ext(path) == "" && ext != "" {
		path = uniquePath(path + ext)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure directory: %w", err)
	}
	path, err = d.ws.EnsureSafe(path)
	if err != nil {
		return nil, err
	}

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("storage: create output: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, domain.WrapError(domain.CodeNetworkError,
			fmt.Sprintf("download interrupted: %v", err), err)
	}

	d.logger.Debug().Str("url", rawURL).Str("path", path).Int64("bytes", written).
		Msg("asset downloaded")
	return &domain.DownloadResult{
		Path:        path,
		Media:       mediaType,
		SizeBytes:   written,
		ContentType: contentType,
	}, nil
}
