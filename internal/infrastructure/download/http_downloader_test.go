package download

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func openPartial(t *testing.T, content []byte) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.mp3"+partialSuffix)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })
	return file
}

func readAll(t *testing.T, file *os.File) []byte {
	t.Helper()
	got, err := os.ReadFile(file.Name())
	require.NoError(t, err)
	return got
}

func TestHTTPFetcher_IgnoredRangeRestartsFile(t *testing.T) {
	body := payload(1000)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// answers every request with the whole file
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
	defer ts.Close()

	// the stale partial file is longer than the new body
	file := openPartial(t, bytes.Repeat([]byte{0xff}, 1500))
	fetcher := NewHTTPFetcher("deadarchive-test", zaptest.NewLogger(t))

	require.NoError(t, fetcher.Fetch(context.Background(), ts.URL+"/track.mp3", file, 1500, nil))
	assert.Equal(t, body, readAll(t, file))
}

func TestHTTPFetcher_RangeNotSatisfiable(t *testing.T) {
	body := payload(1000)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "track.mp3", time.Time{}, bytes.NewReader(body))
	}))
	defer ts.Close()
	fetcher := NewHTTPFetcher("deadarchive-test", zaptest.NewLogger(t))

	t.Run("partial file is complete", func(t *testing.T) {
		file := openPartial(t, body)
		require.NoError(t, fetcher.Fetch(context.Background(), ts.URL, file, int64(len(body)), nil))
		assert.Equal(t, body, readAll(t, file))
	})

	t.Run("partial file is larger than the remote", func(t *testing.T) {
		file := openPartial(t, payload(1200))
		err := fetcher.Fetch(context.Background(), ts.URL, file, 1200, nil)
		assert.ErrorContains(t, err, "range not satisfiable")
	})
}

func TestHTTPFetcher_ResumesFromOffset(t *testing.T) {
	body := payload(2048)
	ranges := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ranges <- r.Header.Get("Range")
		http.ServeContent(w, r, "track.mp3", time.Time{}, bytes.NewReader(body))
	}))
	defer ts.Close()

	file := openPartial(t, body[:512])
	fetcher := NewHTTPFetcher("deadarchive-test", zaptest.NewLogger(t))

	require.NoError(t, fetcher.Fetch(context.Background(), ts.URL, file, 512, nil))
	assert.Equal(t, "bytes=512-", <-ranges)
	assert.Equal(t, body, readAll(t, file))
}
