package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/siteclone/internal/hash/sha256"
	"github.com/JakeFAU/siteclone/internal/metrics"
	"github.com/JakeFAU/siteclone/internal/retry"
)

// ErrUnexpectedStatus is returned when the archive endpoint answers with a
// non-200 status.
var ErrUnexpectedStatus = errors.New("unexpected archive status")

// Saved describes an archive written to the store.
type Saved struct {
	Path   string
	Bytes  int64
	SHA256 string
}

// Downloader retrieves finished archives from the service.
type Downloader struct {
	client   *http.Client
	store    Store
	policy   retry.Policy
	logger   *zap.Logger
	progress io.Writer
}

// DownloaderOption customizes a Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient sets the HTTP client used for retrieval.
func WithHTTPClient(c *http.Client) DownloaderOption {
	return func(d *Downloader) {
		if c != nil {
			d.client = c
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p retry.Policy) DownloaderOption {
	return func(d *Downloader) {
		d.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) DownloaderOption {
	return func(d *Downloader) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithProgress renders a byte progress bar to w while downloading.
func WithProgress(w io.Writer) DownloaderOption {
	return func(d *Downloader) {
		d.progress = w
	}
}

// NewDownloader builds a Downloader that saves archives into store.
func NewDownloader(store Store, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client: &http.Client{Timeout: 10 * time.Minute},
		store:  store,
		policy: retry.Default(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("archive")
	return d
}

// Fetch downloads the archive for filename from base. When filename is
// unsafe, Fetch does nothing and reports ok=false with a nil error.
func (d *Downloader) Fetch(ctx context.Context, base *url.URL, filename string) (Saved, bool, error) {
	target, ok := URL(base, filename)
	if !ok {
		d.logger.Debug("archive filename rejected", zap.String("filename", filename))
		metrics.ObserveArchive("rejected", 0)
		return Saved{}, false, nil
	}

	var saved Saved
	err := d.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		var err error
		saved, err = d.fetchOnce(ctx, target, filename)
		if err != nil {
			d.logger.Warn("archive download attempt failed",
				zap.String("url", target),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	})
	if err != nil {
		metrics.ObserveArchive("error", 0)
		return Saved{}, true, fmt.Errorf("download %s: %w", target, err)
	}

	metrics.ObserveArchive("ok", saved.Bytes)
	d.logger.Info("archive saved",
		zap.String("path", saved.Path),
		zap.Int64("bytes", saved.Bytes),
		zap.String("sha256", saved.SHA256),
	)
	return saved, true, nil
}

func (d *Downloader) fetchOnce(ctx context.Context, target, filename string) (Saved, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return Saved{}, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return Saved{}, fmt.Errorf("get archive: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			d.logger.Debug("close archive body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		if resp.StatusCode < http.StatusInternalServerError {
			return Saved{}, retry.Permanent(err)
		}
		return Saved{}, err
	}

	digest := sha256.New()
	var body io.Reader = io.TeeReader(resp.Body, digest)
	var bar *progressbar.ProgressBar
	if d.progress != nil {
		bar = progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(d.progress),
			progressbar.OptionSetDescription(LocalName(filename)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		body = io.TeeReader(body, bar)
	}

	path, err := d.store.Put(ctx, LocalName(filename), body)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		if errors.Is(err, ErrNotArchive) || errors.Is(err, ErrPathTraversal) {
			return Saved{}, retry.Permanent(err)
		}
		return Saved{}, err
	}
	return Saved{Path: path, Bytes: digest.Size(), SHA256: digest.Sum()}, nil
}
