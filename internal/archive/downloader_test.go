package archive

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/siteclone/internal/hash/sha256"
	"github.com/JakeFAU/siteclone/internal/retry"
)

func newTestDownloader(t *testing.T, opts ...DownloaderOption) (*Downloader, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	opts = append([]DownloaderOption{
		WithRetryPolicy(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}),
	}, opts...)
	return NewDownloader(store, opts...), dir
}

func TestDownloaderFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sites/example_com.zip" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("zip-bytes"))
	}))
	defer srv.Close()
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	var bar bytes.Buffer
	d, _ := newTestDownloader(t, WithProgress(&bar), WithHTTPClient(srv.Client()))
	saved, ok, err := d.Fetch(context.Background(), base, "example_com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(len("zip-bytes")), saved.Bytes)
	require.Equal(t, sha256.Of([]byte("zip-bytes")), saved.SHA256)

	data, err := os.ReadFile(saved.Path)
	require.NoError(t, err)
	require.Equal(t, "zip-bytes", string(data))
}

func TestDownloaderFetchDottedNames(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	d, dir := newTestDownloader(t)
	for _, name := range []string{"foo.", "a..b"} {
		saved, ok, err := d.Fetch(context.Background(), base, name)
		require.NoError(t, err, name)
		require.True(t, ok)
		require.Equal(t, filepath.Join(dir, name+".zip"), saved.Path)

		data, err := os.ReadFile(saved.Path)
		require.NoError(t, err)
		require.Equal(t, "/sites/"+name+".zip", string(data))
	}
}

func TestDownloaderFetchWebSocketBase(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sites/site.zip" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("zip-bytes"))
	}))
	defer srv.Close()
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	base.Scheme = "ws"

	d, _ := newTestDownloader(t)
	saved, ok, err := d.Fetch(context.Background(), base, "site")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(len("zip-bytes")), saved.Bytes)
}

func TestDownloaderRejectsUnsafeName(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	d, _ := newTestDownloader(t)
	saved, ok, err := d.Fetch(context.Background(), base, "../etc/passwd")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, saved.Path)
	require.Zero(t, hits.Load())
}

func TestDownloaderRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	d, _ := newTestDownloader(t)
	_, ok, err := d.Fetch(context.Background(), base, "site")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(2), hits.Load())
}

func TestDownloaderDoesNotRetryNotFound(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	d, dir := newTestDownloader(t)
	_, ok, err := d.Fetch(context.Background(), base, "missing")
	require.True(t, ok)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	require.Equal(t, int32(1), hits.Load())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
