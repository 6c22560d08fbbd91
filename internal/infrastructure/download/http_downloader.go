package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/narwhalmedia/deadarchive/internal/domain/download"
)

// HTTPFetcher downloads track files over HTTP with ranged resume
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	interval  time.Duration
	logger    *zap.Logger
}

var _ download.Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a new HTTP fetcher
func NewHTTPFetcher(userAgent string, logger *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: 0, // bounded by the caller's context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				DisableCompression:  true,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: userAgent,
		interval:  time.Second,
		logger:    logger.Named("http-fetcher"),
	}
}

// Fetch writes source into destination. With offset > 0 it asks for the
// remaining range; a server that ignores the range restarts the file.
func (f *HTTPFetcher) Fetch(ctx context.Context, source string, destination io.WriteSeeker, offset int64, progress chan<- download.Progress) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to start download: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case offset > 0 && resp.StatusCode == http.StatusPartialContent:
	case resp.StatusCode == http.StatusOK:
		if offset > 0 {
			f.logger.Debug("server ignored range, restarting", zap.String("url", source))
			offset = 0
			if t, ok := destination.(truncater); ok {
				if err := t.Truncate(0); err != nil {
					return fmt.Errorf("failed to truncate partial file: %w", err)
				}
			}
		}
	case offset > 0 && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// complete only when the partial file already holds every byte
		total := parseContentRange(resp.Header.Get("Content-Range"))
		if total != offset {
			return fmt.Errorf("range not satisfiable: have %d bytes, remote size %d", offset, total)
		}
		return nil
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if _, err := destination.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to offset %d: %w", offset, err)
	}

	totalSize := int64(0)
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		totalSize = parseContentRange(cr)
	}
	if totalSize == 0 && resp.ContentLength > 0 {
		totalSize = resp.ContentLength + offset
	}

	pw := &progressWriter{
		writer:     destination,
		progress:   progress,
		offset:     offset,
		totalSize:  totalSize,
		interval:   f.interval,
		lastReport: time.Now(),
	}

	written, err := io.CopyBuffer(pw, resp.Body, make([]byte, 32*1024))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("download failed after %d bytes: %w", written, err)
	}
	if totalSize > 0 && offset+written < totalSize {
		return fmt.Errorf("download truncated at %d of %d bytes", offset+written, totalSize)
	}

	if progress != nil {
		final := download.Progress{BytesDownloaded: offset + written, TotalBytes: totalSize}
		if final.TotalBytes == 0 {
			final.TotalBytes = final.BytesDownloaded
		}
		select {
		case progress <- final:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// truncater is implemented by *os.File
type truncater interface {
	Truncate(size int64) error
}

// progressWriter reports transfer progress at most once per interval
type progressWriter struct {
	writer       io.Writer
	progress     chan<- download.Progress
	offset       int64
	totalSize    int64
	bytesWritten int64
	interval     time.Duration
	lastReport   time.Time
	lastBytes    int64
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	if err != nil {
		return n, err
	}
	pw.bytesWritten += int64(n)

	if pw.progress != nil && time.Since(pw.lastReport) >= pw.interval {
		elapsed := time.Since(pw.lastReport).Seconds()
		prog := download.Progress{
			BytesDownloaded: pw.offset + pw.bytesWritten,
			TotalBytes:      pw.totalSize,
			Speed:           int64(float64(pw.bytesWritten-pw.lastBytes) / elapsed),
		}
		select {
		case pw.progress <- prog:
		default:
			// a slow consumer only misses intermediate reports
		}
		pw.lastReport = time.Now()
		pw.lastBytes = pw.bytesWritten
	}
	return n, nil
}

// parseContentRange returns the total size of "bytes 200-1023/1024"
func parseContentRange(contentRange string) int64 {
	_, total, ok := strings.Cut(contentRange, "/")
	if !ok {
		return 0
	}
	size, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil {
		return 0
	}
	return size
}
